package tick

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netcode-csp/internal/telemetry"
)

type manualClock struct {
	now time.Time
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestLoopFrameRunsFrameHookBeforeTicks(t *testing.T) {
	clock := &manualClock{now: time.Unix(1_700_000_000, 0)}
	counters := telemetry.NewCounters()
	var order []string
	var results []FrameResult

	loop := NewLoop(Config{TickRate: 10}, Hooks{
		Frame:      func(time.Time) { order = append(order, "frame") },
		Tick:       func(uint64) { order = append(order, "tick") },
		AfterFrame: func(r FrameResult) { results = append(results, r) },
	}, WithClock(clock), WithMetrics(counters))

	first := loop.Frame()
	assert.Zero(t, first.Elapsed, "first frame only sets the time base")
	assert.Zero(t, first.Fired)

	clock.advance(250 * time.Millisecond)
	second := loop.Frame()
	assert.Equal(t, 250*time.Millisecond, second.Elapsed)
	assert.Equal(t, 2, second.Fired)

	assert.Equal(t, []string{"frame", "frame", "tick", "tick"}, order)
	require.Len(t, results, 2)
	assert.EqualValues(t, 2, counters.Get(metricTicksTotal))
	assert.Equal(t, 100*time.Millisecond, loop.Timestep())
	assert.Equal(t, 50*time.Millisecond, loop.Scheduler().Pending())
}

func TestLoopRunStopsOnCancel(t *testing.T) {
	var frames atomic.Int32
	loop := NewLoop(Config{TickRate: 100, FrameRate: 200}, Hooks{
		Frame: func(time.Time) { frames.Add(1) },
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	require.Eventually(t, func() bool { return frames.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop")
	}
}
