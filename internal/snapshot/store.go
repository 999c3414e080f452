// Package snapshot keeps the most recent encoded scene body per scene so a
// restarted server can resume from its last authoritative state.
package snapshot

import (
	"context"

	"github.com/rotisserie/eris"
)

// ErrNotFound is returned when no snapshot was stored for a scene.
var ErrNotFound = eris.New("snapshot not found")

// Record is one stored scene body.
type Record struct {
	Scene string
	Tick  uint64
	Body  []byte
}

// Store persists the latest body per scene. Put must not retain body.
type Store interface {
	Put(ctx context.Context, scene string, tick uint64, body []byte) error
	Latest(ctx context.Context, scene string) (Record, error)
}
