package sinks

import (
	"context"
	"sync"

	"netcode-csp/logging"
)

// Memory keeps recent events in memory. Tests and the diagnostics endpoint
// read it. A positive limit keeps only the newest events.
type Memory struct {
	mu     sync.RWMutex
	events []logging.Event
	limit  int
}

func NewMemory(limit int) *Memory {
	return &Memory{events: make([]logging.Event, 0), limit: limit}
}

func (s *Memory) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limit > 0 && len(s.events) >= s.limit {
		n := copy(s.events, s.events[len(s.events)-s.limit+1:])
		s.events = s.events[:n]
	}
	s.events = append(s.events, event.Clone())
	return nil
}

func (s *Memory) Events() []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	copied := make([]logging.Event, len(s.events))
	copy(copied, s.events)
	return copied
}

// OfType returns the recorded events with the given type.
func (s *Memory) OfType(t logging.EventType) []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []logging.Event
	for _, event := range s.events {
		if event.Type == t {
			out = append(out, event)
		}
	}
	return out
}

func (s *Memory) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = s.events[:0]
}

func (s *Memory) Close(context.Context) error {
	return nil
}
