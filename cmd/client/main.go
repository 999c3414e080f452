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
		Use:          "csp-client",
		Short:        "Headless predicting client driving a scripted avatar",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if loadErr != nil {
				return loadErr
			}
			logger := app.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogColor)
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			summary, err := app.RunClient(ctx, cfg, logger)
			logger.Info().
				Str("player", summary.PlayerID).
				Uint64("ticks", summary.Ticks).
				Int("reconciled", summary.Reconciled).
				Int("replayed", summary.Replayed).
				Int("desyncs", summary.Desyncs).
				Uint32("server_id", summary.LastServer).
				Int("pending", summary.PendingLeft).
				Msg("client finished")
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "websocket url of the server")
	flags.StringVar(&cfg.PlayerID, "id", cfg.PlayerID, "player id, random when empty")
	flags.StringVar(&cfg.Scene, "scene", cfg.Scene, "scene to join")
	flags.IntVar(&cfg.TickRate, "tick-rate", cfg.TickRate, "simulation ticks per second, must match the server")
	flags.IntVar(&cfg.FrameRate, "frame-rate", cfg.FrameRate, "loop wake-ups per second")
	flags.BoolVar(&cfg.RebuildOnDesync, "rebuild-on-desync", cfg.RebuildOnDesync, "create objects the server sends that are missing locally")
	flags.IntVar(&cfg.RunSeconds, "duration", cfg.RunSeconds, "seconds to run, 0 runs until interrupted")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "process log level")
	flags.StringVar(&cfg.LogSinks, "log-sinks", cfg.LogSinks, "comma separated event sinks: console, json, memory")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "file for the json event sink")
	flags.StringVar(&cfg.Profile, "profile", cfg.Profile, "profile mode: cpu, mem or trace")
	return cmd
}
