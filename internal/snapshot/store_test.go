package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedis(client, ttl), s
}

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(*testing.T) Store { return NewMemory() },
		"redis": func(t *testing.T) Store {
			store, _ := newRedisStore(t, 0)
			return store
		},
	}
	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			store := build(t)

			_, err := store.Latest(ctx, "arena")
			require.Error(t, err)
			assert.True(t, eris.Is(err, ErrNotFound))

			body := []byte{0x01, 0x00, 0xff}
			require.NoError(t, store.Put(ctx, "arena", 7, body))
			body[0] = 0x09

			rec, err := store.Latest(ctx, "arena")
			require.NoError(t, err)
			assert.Equal(t, "arena", rec.Scene)
			assert.Equal(t, uint64(7), rec.Tick)
			assert.Equal(t, []byte{0x01, 0x00, 0xff}, rec.Body)

			require.NoError(t, store.Put(ctx, "arena", 8, []byte{0x02}))
			rec, err = store.Latest(ctx, "arena")
			require.NoError(t, err)
			assert.Equal(t, uint64(8), rec.Tick)
			assert.Equal(t, []byte{0x02}, rec.Body)

			_, err = store.Latest(ctx, "lobby")
			assert.True(t, eris.Is(err, ErrNotFound))
		})
	}
}

func TestRedisKeyLayout(t *testing.T) {
	store, s := newRedisStore(t, time.Minute)
	require.NoError(t, store.Put(context.Background(), "arena", 3, []byte("body")))

	assert.Equal(t, "3", s.HGet("csp:snapshot:arena", "tick"))
	assert.Equal(t, "body", s.HGet("csp:snapshot:arena", "body"))
	assert.Equal(t, time.Minute, s.TTL("csp:snapshot:arena"))
}

func TestRedisExpiredSnapshotIsNotFound(t *testing.T) {
	store, s := newRedisStore(t, time.Second)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "arena", 1, []byte{1}))

	s.FastForward(2 * time.Second)

	_, err := store.Latest(ctx, "arena")
	assert.True(t, eris.Is(err, ErrNotFound))
}
