package app

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"

	"netcode-csp/internal/telemetry"
	"netcode-csp/logging"
	"netcode-csp/logging/sinks"
)

// NewLogger builds the process logger used by the binaries.
func NewLogger(w io.Writer, level string, color bool) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	out := zerolog.ConsoleWriter{Out: w, NoColor: !color, TimeFormat: time.RFC3339}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

// recentEvents bounds the memory sink behind the diagnostics endpoint.
const recentEvents = 256

// observers groups the ambient collaborators shared by both runners.
type observers struct {
	router   *logging.Router
	recent   *sinks.Memory
	counters *telemetry.Counters
	statsd   *telemetry.Statsd
	metrics  telemetry.Metrics
}

func newObservers(cfg Config, role string, logger zerolog.Logger) (*observers, error) {
	logCfg := cfg.Logging()
	logCfg.Fields = map[string]any{"role": role}

	var named []logging.NamedSink
	if logCfg.HasSink("console") {
		named = append(named, logging.NamedSink{Name: "console", Sink: sinks.NewConsole(os.Stdout, logCfg.Console)})
	}
	if logCfg.HasSink("json") {
		sink, err := sinks.NewRotatingJSON(logCfg.JSON)
		if err != nil {
			return nil, err
		}
		named = append(named, logging.NamedSink{Name: "json", Sink: sink})
	}
	var recent *sinks.Memory
	if logCfg.HasSink("memory") {
		recent = sinks.NewMemory(recentEvents)
		named = append(named, logging.NamedSink{Name: "memory", Sink: recent})
	}
	router := logging.NewRouter(logging.SystemClock{}, logCfg, named, logging.WithFallback(logger.With().Str("component", "logging").Logger()))

	var tags []string
	if cfg.StatsdTags != "" {
		tags = splitList(cfg.StatsdTags)
	}
	tags = append(tags, "role:"+role)
	statsd, err := telemetry.NewStatsd(cfg.StatsdAddr, tags, logger)
	if err != nil {
		_ = router.Close(context.Background())
		return nil, err
	}
	counters := telemetry.NewCounters()
	return &observers{
		router:   router,
		recent:   recent,
		counters: counters,
		statsd:   statsd,
		metrics:  telemetry.Multi(counters, statsd),
	}, nil
}

func (o *observers) close(ctx context.Context) error {
	routerErr := o.router.Close(ctx)
	statsdErr := o.statsd.Close()
	if routerErr != nil {
		return eris.Wrap(routerErr, "close logging router")
	}
	if statsdErr != nil {
		return eris.Wrap(statsdErr, "close statsd client")
	}
	return nil
}

// logEvery calls fn at interval until ctx ends. A zero interval disables it.
func logEvery(ctx context.Context, interval time.Duration, fn func()) error {
	if interval <= 0 {
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fn()
		}
	}
}

// events is the diagnostics view of the event pipeline.
func (o *observers) events() any {
	view := struct {
		logging.RouterStats
		Recent []logging.Event `json:"recent,omitempty"`
	}{RouterStats: o.router.Stats()}
	if o.recent != nil {
		view.Recent = o.recent.Events()
	}
	return view
}

func bytesLabel(n int) string {
	return humanize.Bytes(uint64(n))
}
