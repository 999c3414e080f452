package tick

import "time"

// DefaultRate is the simulation rate used when none is configured.
const DefaultRate = 30

// Timestep converts a rate in Hz into the fixed simulation step.
func Timestep(rate int) time.Duration {
	if rate <= 0 {
		rate = DefaultRate
	}
	return time.Second / time.Duration(rate)
}

// Scheduler turns variable frame times into whole fixed-length ticks. It
// accumulates elapsed time and fires one tick per complete timestep. There is
// no upper bound on ticks per frame: a long frame fires every tick it owes,
// back to back.
type Scheduler struct {
	timestep time.Duration
	acc      time.Duration
	tick     uint64
}

// NewScheduler builds a scheduler stepping at rate Hz.
func NewScheduler(rate int) *Scheduler {
	return &Scheduler{timestep: Timestep(rate)}
}

// Advance adds frame to the accumulator and calls fn for every whole timestep
// it now holds. Ticks are numbered from one. Negative frames are ignored.
// It returns the number of ticks fired.
func (s *Scheduler) Advance(frame time.Duration, fn func(tick uint64)) int {
	if frame > 0 {
		s.acc += frame
	}
	fired := 0
	for s.acc >= s.timestep {
		s.acc -= s.timestep
		s.tick++
		fired++
		if fn != nil {
			fn(s.tick)
		}
	}
	return fired
}

// Timestep is the fixed step length.
func (s *Scheduler) Timestep() time.Duration {
	return s.timestep
}

// Tick is the number of the most recently fired tick.
func (s *Scheduler) Tick() uint64 {
	return s.tick
}

// Pending is the accumulated time not yet consumed by a tick.
func (s *Scheduler) Pending() time.Duration {
	return s.acc
}
