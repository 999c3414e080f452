package tick

import (
	"context"
	"time"

	"netcode-csp/internal/telemetry"
)

const (
	metricTicksTotal    = "csp_ticks_total"
	metricFrameDuration = "csp_frame_duration_us"

	defaultFrameRate = 60
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Config tunes the loop.
type Config struct {
	// TickRate is the simulation rate in Hz. It defines the only timestep.
	TickRate int
	// FrameRate is how often the loop wakes to measure time and drain input.
	FrameRate int
}

// Hooks are invoked on the loop goroutine.
type Hooks struct {
	// Frame runs once per wake-up before any tick fires. Hosts drain inbound
	// messages here so message handling and ticks never overlap.
	Frame func(now time.Time)
	// Tick runs once per fired tick.
	Tick func(tick uint64)
	// AfterFrame reports what a wake-up did.
	AfterFrame func(FrameResult)
}

// FrameResult describes one wake-up.
type FrameResult struct {
	Elapsed  time.Duration
	Fired    int
	Duration time.Duration
}

// Loop drives a Scheduler from a wall clock.
type Loop struct {
	scheduler *Scheduler
	hooks     Hooks
	frameRate int
	clock     Clock
	metrics   telemetry.Metrics
	last      time.Time
}

// Option customizes a Loop.
type Option func(*Loop)

// WithClock injects the time source.
func WithClock(clock Clock) Option {
	return func(l *Loop) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithMetrics records tick counts and frame durations.
func WithMetrics(m telemetry.Metrics) Option {
	return func(l *Loop) {
		l.metrics = m
	}
}

func NewLoop(cfg Config, hooks Hooks, opts ...Option) *Loop {
	frameRate := cfg.FrameRate
	if frameRate <= 0 {
		frameRate = defaultFrameRate
	}
	l := &Loop{
		scheduler: NewScheduler(cfg.TickRate),
		hooks:     hooks,
		frameRate: frameRate,
		clock:     systemClock{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Scheduler exposes the underlying accumulator.
func (l *Loop) Scheduler() *Scheduler {
	return l.scheduler
}

// Timestep is the fixed simulation step.
func (l *Loop) Timestep() time.Duration {
	return l.scheduler.Timestep()
}

// Frame performs one wake-up at the current clock reading. The first call
// only establishes the time base.
func (l *Loop) Frame() FrameResult {
	now := l.clock.Now()
	var elapsed time.Duration
	if !l.last.IsZero() {
		elapsed = now.Sub(l.last)
	}
	l.last = now

	if l.hooks.Frame != nil {
		l.hooks.Frame(now)
	}
	fired := l.scheduler.Advance(elapsed, l.hooks.Tick)
	result := FrameResult{Elapsed: elapsed, Fired: fired, Duration: l.clock.Now().Sub(now)}

	if l.metrics != nil {
		if fired > 0 {
			l.metrics.Add(metricTicksTotal, uint64(fired))
		}
		l.metrics.Store(metricFrameDuration, uint64(result.Duration.Microseconds()))
	}
	if l.hooks.AfterFrame != nil {
		l.hooks.AfterFrame(result)
	}
	return result
}

// Run wakes at the frame rate until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second / time.Duration(l.frameRate))
	defer ticker.Stop()

	l.Frame()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.Frame()
		}
	}
}
