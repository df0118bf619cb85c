package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/taxdesk/internal/agent"
	"github.com/hyperjump/taxdesk/internal/cli"
)

var processCmd = &cobra.Command{
	Use:   "process FILE...",
	Short: "Run the full pipeline on local files",
	Long: `Extracts text from the given files, matches the client, selects a template,
extracts its fields and fills it. With --out the generated document is written
to that path.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runProcess,
}

var matchCmd = &cobra.Command{
	Use:   "match FILE...",
	Short: "Identify the client the given files belong to",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMatch,
}

func init() {
	for _, c := range []*cobra.Command{processCmd, matchCmd} {
		c.Flags().StringP("output", "o", "text", "output format: text or json")
		c.Flags().String("model", "", "preferred text model for this run")
		rootCmd.AddCommand(c)
	}
	processCmd.Flags().String("out", "", "write the generated document to this path")
}

// readUploads loads local files as pipeline uploads.
func readUploads(paths []string) ([]agent.Upload, error) {
	uploads := make([]agent.Upload, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		uploads = append(uploads, agent.Upload{
			Filename:    filepath.Base(p),
			ContentType: mime.TypeByExtension(strings.ToLower(filepath.Ext(p))),
			Content:     data,
		})
	}
	return uploads, nil
}

func pipelineFlags(cmd *cobra.Command) (cli.OutputFormat, agent.Preferences, error) {
	out, _ := cmd.Flags().GetString("output")
	format, err := cli.ParseFormat(out)
	if err != nil {
		return "", agent.Preferences{}, err
	}
	model, _ := cmd.Flags().GetString("model")
	return format, agent.Preferences{PreferredTextModel: model}, nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	format, prefs, err := pipelineFlags(cmd)
	if err != nil {
		return err
	}
	uploads, err := readUploads(args)
	if err != nil {
		return err
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	res := components.Agent.Process(context.Background(), uploads, nil, prefs)
	if err := cli.WriteProcessResult(cmd.OutOrStdout(), res, format); err != nil {
		return err
	}
	if outPath, _ := cmd.Flags().GetString("out"); outPath != "" {
		gen := res.DocumentGeneration
		if gen == nil || !gen.Success {
			return fmt.Errorf("no document was generated")
		}
		if err := os.WriteFile(outPath, gen.Content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", outPath, err)
		}
	}
	if !res.Success {
		return fmt.Errorf("%s", res.Error)
	}
	return nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	format, prefs, err := pipelineFlags(cmd)
	if err != nil {
		return err
	}
	uploads, err := readUploads(args)
	if err != nil {
		return err
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	res := components.Agent.PreviewMatch(context.Background(), uploads, prefs)
	if err := cli.WriteMatchPreview(cmd.OutOrStdout(), res, format); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s", res.Error)
	}
	return nil
}
