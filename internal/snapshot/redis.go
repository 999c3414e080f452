package snapshot

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

const (
	keyPrefix = "csp:snapshot:"
	fieldTick = "tick"
	fieldBody = "body"
)

// Redis stores each scene's latest body in a hash at csp:snapshot:<scene>.
type Redis struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedis wraps client. A positive ttl expires snapshots that stop being
// refreshed.
func NewRedis(client redis.Cmdable, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

func key(scene string) string {
	return keyPrefix + scene
}

func (r *Redis) Put(ctx context.Context, scene string, tick uint64, body []byte) error {
	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key(scene), fieldTick, tick, fieldBody, body)
	if r.ttl > 0 {
		pipe.Expire(ctx, key(scene), r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return eris.Wrapf(err, "store snapshot for scene %q", scene)
	}
	return nil
}

func (r *Redis) Latest(ctx context.Context, scene string) (Record, error) {
	fields, err := r.client.HGetAll(ctx, key(scene)).Result()
	if err != nil {
		return Record{}, eris.Wrapf(err, "load snapshot for scene %q", scene)
	}
	body, ok := fields[fieldBody]
	if !ok {
		return Record{}, eris.Wrapf(ErrNotFound, "scene %q", scene)
	}
	tick, err := strconv.ParseUint(fields[fieldTick], 10, 64)
	if err != nil {
		return Record{}, eris.Wrapf(err, "parse snapshot tick for scene %q", scene)
	}
	return Record{Scene: scene, Tick: tick, Body: []byte(body)}, nil
}
