package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperjump/taxdesk/internal/archive"
	"github.com/hyperjump/taxdesk/internal/cli"
	"github.com/hyperjump/taxdesk/internal/llm"
	"github.com/hyperjump/taxdesk/internal/storage"
)

type statusResponse struct {
	Clients          int64      `json:"clients"`
	Documents        int64      `json:"documents"`
	ArchivedDocs     uint64     `json:"archived_documents"`
	DiskUsageBytes   *int64     `json:"disk_usage_bytes,omitempty"`
	DatabaseDriver   string     `json:"database_driver"`
	ArchiveIndexPath string     `json:"archive_index_path,omitempty"`
	LLM              llm.Status `json:"llm"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database, archive and LLM status",
	RunE:  runStatus,
}

var searchCmd = &cobra.Command{
	Use:   "search QUERY...",
	Short: "Full-text search over archived documents",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSearch,
}

func init() {
	statusCmd.Flags().StringP("output", "o", "text", "output format: text or json")
	searchCmd.Flags().StringP("output", "o", "text", "output format: text or json")
	searchCmd.Flags().Int("limit", 20, "maximum results")
	searchCmd.Flags().Bool("fuzzy", false, "tolerate typos")
	searchCmd.Flags().Int64("work-order", 0, "only documents of this work order")
	rootCmd.AddCommand(statusCmd, searchCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("output")
	format, err := cli.ParseFormat(out)
	if err != nil {
		return err
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	ctx := context.Background()
	status := statusResponse{
		DatabaseDriver:   components.Store.Driver(),
		ArchiveIndexPath: cfg.Storage.ArchiveIndexPath,
	}
	if status.Clients, err = components.Store.CountClients(ctx); err != nil {
		return fmt.Errorf("count clients: %w", err)
	}
	if status.Documents, err = components.Store.CountDocuments(ctx); err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	if status.ArchivedDocs, err = components.Archive.Count(); err != nil {
		return fmt.Errorf("count archive: %w", err)
	}
	if n, err := storage.DiskUsageBytes(cfg.Storage.DatabasePath, cfg.Storage.UploadDir, cfg.Storage.ArchiveIndexPath); err == nil {
		status.DiskUsageBytes = &n
	}
	status.LLM = components.LLM.Status(ctx)

	w := cmd.OutOrStdout()
	if format == cli.OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}
	fmt.Fprintf(w, "clients:            %d\n", status.Clients)
	fmt.Fprintf(w, "documents:          %d\n", status.Documents)
	fmt.Fprintf(w, "archived_documents: %d\n", status.ArchivedDocs)
	if status.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # database + uploads + archive\n", *status.DiskUsageBytes)
	}
	fmt.Fprintf(w, "database_driver:    %s\n", status.DatabaseDriver)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# llm")
	if status.LLM.Installed {
		fmt.Fprintf(w, "available:          true (%s)\n", status.LLM.Version)
		names := make([]string, 0, len(status.LLM.Models))
		for _, m := range status.LLM.Models {
			names = append(names, m.Name)
		}
		fmt.Fprintf(w, "models:             %s\n", strings.Join(names, ", "))
	} else {
		fmt.Fprintf(w, "available:          false (%s)\n", status.LLM.Error)
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	out, _ := cmd.Flags().GetString("output")
	format, err := cli.ParseFormat(out)
	if err != nil {
		return err
	}
	query := buildSearchQuery(args)
	if query == "" {
		return fmt.Errorf("empty query")
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()

	opts := archiveOptions(cmd)
	hits, err := components.Archive.Search(context.Background(), query, opts)
	if err != nil {
		return err
	}
	return cli.WriteHits(cmd.OutOrStdout(), query, hits, format)
}

// buildSearchQuery joins args with spaces; blank args yield "".
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

func archiveOptions(cmd *cobra.Command) archive.SearchOptions {
	limit, _ := cmd.Flags().GetInt("limit")
	fuzzy, _ := cmd.Flags().GetBool("fuzzy")
	workOrder, _ := cmd.Flags().GetInt64("work-order")
	return archive.SearchOptions{Limit: limit, Fuzzy: fuzzy, WorkOrderID: workOrder}
}
