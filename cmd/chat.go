package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/crystaldolphin/confidant/internal/bus"
	"github.com/crystaldolphin/confidant/internal/channels"
	"github.com/crystaldolphin/confidant/internal/dependency"
	"github.com/crystaldolphin/confidant/internal/schema"
)

var (
	chatExportDir string
	chatLogs      bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the persona in the terminal",
	Long:  "Runs the full conversation engine against a console transport. Commands such as /slot and /export work as in Telegram.",
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatExportDir, "export-dir", ".", "Directory /export writes to")
	chatCmd.Flags().BoolVar(&chatLogs, "logs", false, "Show runtime logs")
}

func runChat(_ *cobra.Command, _ []string) error {
	if !chatLogs && !verbose {
		slog.SetDefault(slog.New(slog.DiscardHandler))
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	// No idle reminders in the terminal, and the gateway's ledger stays untouched.
	cfg.Reengagement.Enabled = false
	cfg.Reengagement.PersistDeadlines = false

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	container, err := dependency.New(ctx, cfg, func(b bus.Bus) schema.Channel {
		return channels.NewConsoleChannel(b, os.Stdin, os.Stdout, cfg.Agents.Defaults.PersonaName, chatExportDir)
	})
	if err != nil {
		return err
	}
	defer func() { _ = container.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return container.Engine().Run(gctx) })
	g.Go(func() error {
		// The console returns nil on exit; stop the engine with it.
		defer cancel()
		return container.Channel().Start(gctx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("chat: %w", err)
	}
	return nil
}
