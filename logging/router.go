package logging

import (
	"context"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time {
	return f()
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// Router fans events out to sinks. Publish only enqueues: a full queue drops
// the event and counts it, so callers on the tick loop never wait on a sink.
type Router struct {
	clock    Clock
	minimum  Severity
	fields   map[string]any
	fallback zerolog.Logger

	inbound chan Event
	stop    chan struct{}
	workers []*sinkWorker
	wg      sync.WaitGroup
	closing atomic.Bool

	routed    atomic.Uint64
	dropped   atomic.Uint64
	dropWarns rate.Sometimes
}

type RouterStats struct {
	EventsTotal  uint64 `json:"eventsTotal"`
	DroppedTotal uint64 `json:"droppedTotal"`
}

// Option customizes a Router.
type Option func(*Router)

// WithFallback replaces the logger used to report sink failures and drops.
func WithFallback(logger zerolog.Logger) Option {
	return func(r *Router) {
		r.fallback = logger
	}
}

func NewRouter(clock Clock, cfg Config, namedSinks []NamedSink, opts ...Option) *Router {
	if clock == nil {
		clock = SystemClock{}
	}
	queueSize := cfg.BufferSize
	if queueSize <= 0 {
		queueSize = 512
	}
	warnEvery := cfg.DropWarnInterval
	if warnEvery <= 0 {
		warnEvery = 5 * time.Second
	}
	r := &Router{
		clock:     clock,
		minimum:   cfg.MinimumSeverity,
		fields:    cfg.CloneFields(),
		fallback:  zerolog.New(os.Stderr).With().Timestamp().Str("component", "logging").Logger(),
		inbound:   make(chan Event, queueSize),
		stop:      make(chan struct{}),
		dropWarns: rate.Sometimes{Interval: warnEvery},
	}
	for _, opt := range opts {
		opt(r)
	}

	backlog := min(max(queueSize, 32), 1024)
	for _, named := range namedSinks {
		if named.Sink != nil {
			r.workers = append(r.workers, &sinkWorker{
				name:     named.Name,
				sink:     named.Sink,
				backlog:  make(chan Event, backlog),
				fallback: r.fallback,
			})
		}
	}

	r.wg.Add(1 + len(r.workers))
	go r.dispatchLoop()
	for _, w := range r.workers {
		go func() {
			defer r.wg.Done()
			w.run()
		}()
	}
	return r
}

// dispatchLoop moves events from the shared queue to every worker. On stop it
// forwards what is still queued and closes the worker backlogs.
func (r *Router) dispatchLoop() {
	defer r.wg.Done()
	defer func() {
		for _, w := range r.workers {
			close(w.backlog)
		}
	}()
	for {
		select {
		case event := <-r.inbound:
			r.route(event)
		case <-r.stop:
			for {
				select {
				case event := <-r.inbound:
					r.route(event)
				default:
					return
				}
			}
		}
	}
}

func (r *Router) route(event Event) {
	if event.Severity < r.minimum {
		return
	}
	if event.Time.IsZero() {
		event.Time = r.clock.Now()
	}
	event = mergeFields(event, r.fields)
	r.routed.Add(1)
	for _, w := range r.workers {
		w.offer(event)
	}
}

// Publish enqueues event. Events without a type and events published after
// Close are ignored.
func (r *Router) Publish(_ context.Context, event Event) {
	if event.Type == "" || r.closing.Load() {
		return
	}
	select {
	case r.inbound <- event:
	default:
		r.dropped.Add(1)
		r.dropWarns.Do(func() {
			r.fallback.Warn().Str("type", string(event.Type)).Uint64("tick", event.Tick).
				Uint64("dropped_total", r.dropped.Load()).Msg("event queue full, dropping")
		})
	}
}

// Close stops dispatch, flushes queued events and closes every sink. Only the
// first call has an effect.
func (r *Router) Close(ctx context.Context) error {
	if !r.closing.CompareAndSwap(false, true) {
		return nil
	}
	close(r.stop)
	flushed := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(flushed)
	}()
	select {
	case <-flushed:
	case <-ctx.Done():
		return ctx.Err()
	}
	var firstErr error
	for _, w := range r.workers {
		if err := w.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Router) Stats() RouterStats {
	return RouterStats{
		EventsTotal:  r.routed.Load(),
		DroppedTotal: r.dropped.Load(),
	}
}

// Sink returns the sink registered under name.
func (r *Router) Sink(name string) Sink {
	for _, w := range r.workers {
		if w.name == name {
			return w.sink
		}
	}
	return nil
}

// sinkWorker owns one sink. After a failed write it backs off exponentially,
// capped at 32s, before the next write.
type sinkWorker struct {
	name     string
	sink     Sink
	backlog  chan Event
	fallback zerolog.Logger

	failures int
	resumeAt time.Time
}

func (w *sinkWorker) offer(event Event) {
	select {
	case w.backlog <- event.Clone():
	default:
		w.fallback.Warn().Str("sink", w.name).Str("type", string(event.Type)).Msg("sink backlog full, dropping event")
	}
}

func (w *sinkWorker) run() {
	for event := range w.backlog {
		if wait := time.Until(w.resumeAt); w.failures > 0 && wait > 0 {
			time.Sleep(wait)
		}
		err := w.sink.Write(event)
		if err == nil {
			w.failures = 0
			continue
		}
		w.failures++
		delay := time.Second << min(w.failures, 5)
		w.resumeAt = time.Now().Add(delay)
		w.fallback.Error().Err(err).Str("sink", w.name).Dur("retry_in", delay).Msg("sink write failed")
	}
}
