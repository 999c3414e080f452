package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"netcode-csp/internal/app"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cfg, loadErr := app.LoadConfig()
	cmd := &cobra.Command{
		Use:          "csp-server",
		Short:        "Authoritative server for the client-side prediction demo",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if loadErr != nil {
				return loadErr
			}
			logger := app.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogColor)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := app.RunServer(ctx, cfg, logger); err != nil {
				logger.Error().Err(err).Msg("server failed")
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	flags.IntVar(&cfg.TickRate, "tick-rate", cfg.TickRate, "simulation ticks per second")
	flags.IntVar(&cfg.FrameRate, "frame-rate", cfg.FrameRate, "loop wake-ups per second")
	flags.StringVar(&cfg.Scene, "scene", cfg.Scene, "default scene for connections that do not name one")
	flags.Float64Var(&cfg.InputRate, "input-rate", cfg.InputRate, "max input messages per second per connection, 0 disables")
	flags.IntVar(&cfg.InputBurst, "input-burst", cfg.InputBurst, "input rate limiter burst")
	flags.StringVar(&cfg.RedisAddr, "redis", cfg.RedisAddr, "redis address for the snapshot store, empty keeps snapshots in memory")
	flags.StringVar(&cfg.StatsdAddr, "statsd", cfg.StatsdAddr, "dogstatsd address, empty disables")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "process log level")
	flags.StringVar(&cfg.LogSinks, "log-sinks", cfg.LogSinks, "comma separated event sinks: console, json, memory")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "file for the json event sink")
	flags.StringVar(&cfg.Profile, "profile", cfg.Profile, "profile mode: cpu, mem or trace")
	return cmd
}
