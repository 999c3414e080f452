package snapshot

import (
	"bytes"
	"context"
	"sync"

	"github.com/rotisserie/eris"
)

// Memory is an in-process Store.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

func (m *Memory) Put(_ context.Context, scene string, tick uint64, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[scene] = Record{Scene: scene, Tick: tick, Body: bytes.Clone(body)}
	return nil
}

func (m *Memory) Latest(_ context.Context, scene string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[scene]
	if !ok {
		return Record{}, eris.Wrapf(ErrNotFound, "scene %q", scene)
	}
	rec.Body = bytes.Clone(rec.Body)
	return rec, nil
}
