package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hyperjump/taxdesk/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		if port, _ := cmd.Flags().GetInt("port"); port > 0 {
			cfg.Server.Port = port
		}
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			return err
		}
		defer components.Close()

		srv := server.NewServer(server.Deps{
			Pipeline: components.Agent,
			Store:    components.Store,
			Files:    components.Files,
			Archive:  components.Archive,
			LLM:      components.LLM,
		}, cfg, version, logger)

		watchCtx, watchCancel := context.WithCancel(context.Background())
		defer watchCancel()
		if cfg.Inbox.Enabled {
			if err := startInbox(watchCtx, components); err != nil {
				return err
			}
		}

		errCh := make(chan error, 1)
		go func() {
			if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigChan:
		case err := <-errCh:
			if err != nil {
				logger.Error("Server failed", zap.Error(err))
				return err
			}
		}

		logger.Info("Shutting down...")
		watchCancel()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Stop(ctx)
	},
}

func init() {
	serveCmd.Flags().Int("port", 0, "listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
