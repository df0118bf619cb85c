// Package main is the taxdesk CLI entry point.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/config"
	"github.com/hyperjump/taxdesk/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/taxdesk/config.yaml"

var (
	configPath string
	debugFlag  bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "taxdesk",
	Short: "Document intake for tax advisory offices",
	Long: `taxdesk reads uploaded client documents, identifies the client they belong to,
picks a matching document template, extracts its fields with a local LLM and
fills the template.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" {
			return nil
		}
		c, resolved, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c
		debug := cfg.Debug || debugFlag
		l, err := utils.NewLogger(debug)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		logger = l
		logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debug))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "taxdesk version %s\n", version)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", defaultConfigPath, "config file path")
	pf.BoolVar(&debugFlag, "debug", false, "enable debug logging")
	rootCmd.AddCommand(versionCmd)
}

// loadConfig loads config from path. When path is the default, config.yaml in the current
// directory wins if present, and a missing default file falls back to built-in defaults.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			local := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(local); statErr == nil {
				c, loadErr := config.Load(local)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return c, local, nil
			}
			if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
				return config.Default(cwd), "", nil
			}
		}
	}
	c, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return c, path, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
