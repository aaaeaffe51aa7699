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
	"github.com/crystaldolphin/confidant/internal/shared/cmdutils"
)

var gatewayPort int

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Run the Telegram bot with the time zone endpoint and metrics",
	RunE:  runGateway,
}

func init() {
	gatewayCmd.Flags().IntVarP(&gatewayPort, "port", "p", 0, "HTTP port (overrides config and PORT)")
}

func runGateway(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if gatewayPort > 0 {
		cfg.Gateway.Port = gatewayPort
	}
	if err := cfg.ValidateGateway(); err != nil {
		return err
	}
	if cfg.Gateway.WebAppURL == "" {
		slog.Warn("gateway: web app URL not set, /time is disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var tg *channels.TelegramChannel
	container, err := dependency.New(ctx, cfg, func(b bus.Bus) schema.Channel {
		tg = channels.NewTelegramChannel(&cfg.Channels.Telegram, b)
		return tg
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := container.Close(); err != nil {
			slog.Warn("gateway: storage close", "err", err)
		}
	}()

	if err := tg.Connect(); err != nil {
		return err
	}

	fmt.Printf("%s Starting confidant gateway on %s:%d...\n", cmdutils.Logo(), cfg.Gateway.Host, cfg.Gateway.Port)

	// Saved deadlines must be armed before the first message can rewrite them.
	if n := container.Scheduler().Restore(); n > 0 {
		slog.Info("gateway: idle timers restored", "count", n)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return container.Scheduler().Start(gctx) })
	g.Go(func() error { return container.Reloader().Start(gctx) })
	g.Go(func() error { return container.Engine().Run(gctx) })
	g.Go(func() error { return container.HTTP().Start(gctx) })
	g.Go(func() error { return container.Channel().Start(gctx) })

	fmt.Printf("%s Gateway running. Press Ctrl+C to stop.\n", cmdutils.Logo())

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "gateway error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}
