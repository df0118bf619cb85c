package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hyperjump/taxdesk/internal/inbox"
)

var inboxCmd = &cobra.Command{
	Use:   "inbox",
	Short: "Watch the inbox folder and create a work order per dropped file",
	Long: `Watches the configured inbox directory. Every settled file runs through the
create-workflow pipeline and is moved to processed/ or failed/ afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
			cfg.Inbox.Directory = dir
		}
		components, err := initializeComponents(cfg, logger)
		if err != nil {
			return err
		}
		defer components.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		in, err := newInbox(components)
		if err != nil {
			return err
		}
		if err := in.Start(ctx); err != nil {
			return err
		}
		<-ctx.Done()
		in.Wait()
		return nil
	},
}

func init() {
	inboxCmd.Flags().String("dir", "", "inbox directory (overrides config)")
	rootCmd.AddCommand(inboxCmd)
}

func newInbox(c *Components) (*inbox.Inbox, error) {
	return inbox.New(cfg.Inbox, c.Agent, logger)
}

func startInbox(ctx context.Context, c *Components) error {
	in, err := newInbox(c)
	if err != nil {
		return err
	}
	return in.Start(ctx)
}
