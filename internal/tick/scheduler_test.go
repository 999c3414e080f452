package tick

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimestep(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, Timestep(10))
	assert.Equal(t, Timestep(DefaultRate), Timestep(0))
	assert.Equal(t, Timestep(DefaultRate), Timestep(-5))
}

func TestSchedulerAccumulatesPartialFrames(t *testing.T) {
	s := NewScheduler(10)
	var ticks []uint64
	record := func(tick uint64) { ticks = append(ticks, tick) }

	assert.Zero(t, s.Advance(60*time.Millisecond, record))
	assert.Equal(t, 1, s.Advance(60*time.Millisecond, record))
	assert.Equal(t, 20*time.Millisecond, s.Pending())
	assert.Equal(t, []uint64{1}, ticks)
}

func TestSchedulerCatchesUpAfterLongFrame(t *testing.T) {
	s := NewScheduler(10)
	var ticks []uint64
	fired := s.Advance(time.Second+50*time.Millisecond, func(tick uint64) { ticks = append(ticks, tick) })

	assert.Equal(t, 10, fired)
	assert.Equal(t, []uint64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, ticks)
	assert.Equal(t, uint64(10), s.Tick())
	assert.Equal(t, 50*time.Millisecond, s.Pending())
}

func TestSchedulerIgnoresNegativeFrames(t *testing.T) {
	s := NewScheduler(10)
	s.Advance(50*time.Millisecond, nil)
	assert.Zero(t, s.Advance(-time.Second, nil))
	assert.Equal(t, 50*time.Millisecond, s.Pending())
}
