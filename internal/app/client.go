package app

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"netcode-csp/internal/demo"
	cspnet "netcode-csp/internal/net"
	"netcode-csp/internal/net/ws"
	"netcode-csp/internal/observability"
	"netcode-csp/internal/predict"
	"netcode-csp/internal/scene"
	"netcode-csp/internal/tick"
)

// ClientSummary is what RunClient observed.
type ClientSummary struct {
	PlayerID    string
	Ticks       uint64
	Reconciled  int
	Replayed    int
	Desyncs     int
	LastServer  uint32
	PendingLeft int
}

// RunClient connects to a server, drives the scripted input pattern and
// reconciles until ctx is cancelled, the configured run time elapses or the
// server goes away.
func RunClient(ctx context.Context, cfg Config, logger zerolog.Logger) (ClientSummary, error) {
	if err := cfg.Validate(); err != nil {
		return ClientSummary{}, err
	}
	profiler := observability.Start(cfg.Observability())
	defer profiler.Stop()

	if cfg.RunSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.RunSeconds)*time.Second)
		defer cancel()
	}
	ctx, stop := context.WithCancel(ctx)
	defer stop()

	obs, err := newObservers(cfg, "client", logger)
	if err != nil {
		return ClientSummary{}, err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := obs.close(closeCtx); cerr != nil {
			logger.Warn().Err(cerr).Msg("shutdown")
		}
	}()

	playerID := cfg.PlayerID
	if playerID == "" {
		playerID = uuid.NewString()
	}
	summary := ClientSummary{PlayerID: playerID}

	inbox := cspnet.NewInbox(cfg.InboxCapacity, obs.metrics)
	session, err := ws.Dial(ctx, ws.DialConfig{
		URL:       cfg.ServerURL,
		PlayerID:  playerID,
		Scene:     cfg.Scene,
		WriteWait: cfg.WriteWait(),
		Logger:    logger,
	}, inbox)
	if err != nil {
		return summary, err
	}
	defer session.Close()

	registry := scene.NewRegistry()
	demo.RegisterComponents(registry)
	sc := scene.New(cfg.Scene)

	client := predict.NewClient(sc, session, demo.LocalAvatar{Scene: sc, Owner: playerID}, predict.ClientConfig{
		TickRate:        cfg.TickRate,
		RebuildOnDesync: cfg.RebuildOnDesync,
	}, predict.ClientHooks{
		OnReconciled: func(r predict.ReconcileResult) {
			summary.Reconciled++
			summary.Replayed += r.Replayed
			summary.LastServer = uint32(r.ServerID)
		},
		OnDesync: func(r predict.DesyncReport) {
			summary.Desyncs++
			logger.Debug().Int("missing", len(r.Missing)).Bool("rebuilt", r.Rebuilt).Msg("desync")
		},
	}, predict.Deps{
		Publisher: obs.router,
		Metrics:   obs.metrics,
		Registry:  registry,
	})

	dispatcher := &cspnet.ClientDispatcher{
		Client: client,
		OnDisconnect: func(reason string) {
			logger.Info().Str("reason", reason).Msg("server connection closed")
			stop()
		},
		Logger: logger,
	}

	// Stats are logged from the loop goroutine, which owns the client and scene.
	interval := cfg.StatsInterval()
	nextStats := time.Now().Add(interval)
	logStats := func() {
		serverID, _ := client.ServerID()
		event := logger.Info().
			Uint32("server_id", uint32(serverID)).
			Uint32("next_id", uint32(client.NextID())).
			Int("pending", len(client.Pending()))
		if avatar := demo.FindAvatar(sc, playerID); avatar != nil {
			pos := demo.Position(avatar)
			event = event.Floats64("position", pos[:])
		}
		event.Msg("client stats")
	}

	loop := tick.NewLoop(tick.Config{TickRate: cfg.TickRate, FrameRate: cfg.FrameRate}, tick.Hooks{
		Frame: func(now time.Time) {
			dispatcher.Dispatch(ctx, inbox.Drain())
			if interval > 0 && now.After(nextStats) {
				logStats()
				nextStats = now.Add(interval)
			}
		},
		Tick: func(t uint64) {
			client.OnTick(t)
			summary.Ticks = t
			if _, err := client.AddInput(demo.Scripted(t)); err != nil {
				logger.Warn().Err(err).Msg("send input")
			}
		},
	}, tick.WithMetrics(obs.metrics))

	logger.Info().Str("player", playerID).Str("server", cfg.ServerURL).Msg("client connected")

	err = loop.Run(ctx)
	summary.PendingLeft = len(client.Pending())
	return summary, err
}
