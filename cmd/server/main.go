package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"syncwire/server/internal/app"
)

func main() {
	cfg := app.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:           "syncwire-server",
		Short:         "Real-time state replication server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx, cfg)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flags.IntVar(&cfg.Engine.TickRate, "tick-rate", cfg.Engine.TickRate, "simulation ticks per second")
	flags.IntVar(&cfg.Engine.MaxPacketSize, "max-packet-size", cfg.Engine.MaxPacketSize, "transport frame budget in bytes")
	flags.Float64Var(&cfg.Engine.PingInterval, "ping-interval", cfg.Engine.PingInterval, "seconds between ping probes")
	flags.StringVar(&cfg.SceneName, "scene", cfg.SceneName, "scene name clients spawn into")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
