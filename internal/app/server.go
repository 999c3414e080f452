package app

import (
	"context"
	nethttp "net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"netcode-csp/internal/demo"
	cspnet "netcode-csp/internal/net"
	"netcode-csp/internal/net/ws"
	"netcode-csp/internal/observability"
	"netcode-csp/internal/predict"
	"netcode-csp/internal/scene"
	"netcode-csp/internal/snapshot"
	"netcode-csp/internal/tick"
)

// RunServer serves the demo scene until ctx is cancelled.
func RunServer(ctx context.Context, cfg Config, logger zerolog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	profiler := observability.Start(cfg.Observability())
	defer profiler.Stop()

	obs, err := newObservers(cfg, "server", logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := obs.close(closeCtx); cerr != nil {
			logger.Warn().Err(cerr).Msg("shutdown")
		}
	}()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := scene.NewRegistry()
	demo.RegisterComponents(registry)
	sc := scene.New(cfg.Scene)

	srv := predict.NewServer(predict.ServerConfig{
		TickRate:   cfg.TickRate,
		InputRate:  cfg.InputRate,
		InputBurst: cfg.InputBurst,
	}, demo.Avatars{Scene: sc}, nil, store, predict.Deps{
		Publisher: obs.router,
		Metrics:   obs.metrics,
		Registry:  registry,
	})
	if err := srv.AddScene(sc); err != nil {
		return err
	}
	restored, err := srv.Restore(ctx, store)
	if err != nil {
		logger.Warn().Err(err).Msg("ignoring stored snapshot")
	} else if restored > 0 {
		logger.Info().Int("scenes", restored).Int("entities", sc.Len()).Msg("restored from snapshot store")
	}

	inbox := cspnet.NewInbox(cfg.InboxCapacity, obs.metrics)
	dispatcher := &cspnet.ServerDispatcher{
		Server: srv,
		OnConnect: func(conn predict.Connection, _ string) {
			avatar := demo.FindAvatar(sc, conn.ID())
			if avatar == nil {
				avatar = demo.SpawnAvatar(sc, conn.ID(), scene.Replicated)
			}
			if err := srv.AddEntity(sc.Name(), avatar); err != nil {
				logger.Error().Err(err).Str("conn", conn.ID()).Msg("register avatar")
			}
		},
		OnDisconnect: func(conn predict.Connection) {
			if avatar := demo.FindAvatar(sc, conn.ID()); avatar != nil {
				srv.RemoveEntity(sc.Name(), avatar.ID())
				sc.RemoveEntity(avatar.ID())
			}
		},
		Logger: logger,
	}

	loop := tick.NewLoop(tick.Config{TickRate: cfg.TickRate, FrameRate: cfg.FrameRate}, tick.Hooks{
		Frame: func(time.Time) {
			dispatcher.Dispatch(ctx, inbox.Drain())
		},
		Tick: func(t uint64) {
			result := srv.OnTick(ctx, t)
			for _, conn := range result.Failed {
				logger.Warn().Str("conn", conn.ID()).Msg("snapshot send failed, closing")
				if closer, ok := conn.(cspnet.Closer); ok {
					_ = closer.Close()
				}
			}
		},
	}, tick.WithMetrics(obs.metrics))

	handler := cspnet.NewHTTPHandler(cspnet.HTTPHandlerConfig{
		WebSocket: ws.NewHandler(inbox, ws.HandlerConfig{
			DefaultScene: cfg.Scene,
			WriteWait:    cfg.WriteWait(),
			Logger:       logger,
		}),
		Diagnostics: func() any {
			return struct {
				Server  predict.ServerStats `json:"server"`
				Metrics map[string]uint64   `json:"metrics"`
				Events  any                 `json:"events"`
			}{srv.Stats(), obs.counters.Snapshot(), obs.events()}
		},
		TickRate: cfg.TickRate,
		Logger:   logger,
	})
	httpServer := &nethttp.Server{Addr: cfg.Addr, Handler: handler}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return loop.Run(gctx)
	})
	g.Go(func() error {
		logger.Info().Str("addr", cfg.Addr).Int("tick_rate", cfg.TickRate).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !eris.Is(err, nethttp.ErrServerClosed) {
			return eris.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		return logEvery(gctx, cfg.StatsInterval(), func() {
			stats := srv.Stats()
			for _, s := range stats.Scenes {
				logger.Info().
					Uint64("tick", stats.Tick).
					Str("scene", s.Name).
					Int("entities", s.Entities).
					Int("connections", len(stats.Connections)).
					Str("snapshot", bytesLabel(s.BodyBytes)).
					Msg("server stats")
			}
		})
	})
	return g.Wait()
}

// openStore picks redis when an address is configured, memory otherwise.
func openStore(ctx context.Context, cfg Config) (snapshot.Store, func(), error) {
	if cfg.RedisAddr == "" {
		return snapshot.NewMemory(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, eris.Wrapf(err, "connect to redis at %s", cfg.RedisAddr)
	}
	return snapshot.NewRedis(client, cfg.SnapshotTTL()), func() { _ = client.Close() }, nil
}
