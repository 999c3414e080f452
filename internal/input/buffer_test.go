package input

import (
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"netcode-csp/internal/telemetry"
)

func ids(cmds []Command) []ID {
	out := make([]ID, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, c.ID)
	}
	return out
}

func pushRange(t *testing.T, b *Buffer, from, to ID) {
	t.Helper()
	for id := from; id <= to; id++ {
		require.NoError(t, b.Push(NewCommand(ButtonForward, 0, 0).WithID(id)))
	}
}

func TestBufferDropThroughAcknowledgedPrefix(t *testing.T) {
	counters := telemetry.NewCounters()
	b := NewBuffer(4, counters)
	pushRange(t, b, 1, 3)

	assert.Equal(t, 2, b.DropThrough(2))
	assert.Equal(t, []ID{3}, ids(b.Commands()))
	assert.EqualValues(t, 1, counters.Get(bufferOccupancyMetricKey))
	assert.EqualValues(t, 2, counters.Get(bufferDroppedMetricKey))

	assert.Zero(t, b.DropThrough(2), "repeated acknowledgements are no-ops")
	assert.Equal(t, 1, b.DropThrough(10))
	assert.Zero(t, b.Len())
	assert.Nil(t, b.Commands())
}

func TestBufferRejectsOutOfOrder(t *testing.T) {
	b := NewBuffer(4, nil)
	pushRange(t, b, 5, 6)

	err := b.Push(NewCommand(0, 0, 0).WithID(6))
	assert.True(t, eris.Is(err, ErrOutOfOrder))
	err = b.Push(NewCommand(0, 0, 0).WithID(2))
	assert.True(t, eris.Is(err, ErrOutOfOrder))
	assert.Equal(t, 2, b.Len())
}

func TestBufferGrowsWithoutLosingOrder(t *testing.T) {
	b := NewBuffer(2, nil)
	pushRange(t, b, 1, 2)
	b.DropThrough(1)
	pushRange(t, b, 3, 7)

	assert.GreaterOrEqual(t, b.Capacity(), 6)
	assert.Equal(t, []ID{2, 3, 4, 5, 6, 7}, ids(b.Commands()))

	oldest, ok := b.Oldest()
	require.True(t, ok)
	assert.Equal(t, ID(2), oldest.ID)
	newest, ok := b.Newest()
	require.True(t, ok)
	assert.Equal(t, ID(7), newest.ID)
}

func TestBufferEachVisitsOldestFirst(t *testing.T) {
	b := NewBuffer(3, nil)
	pushRange(t, b, 1, 3)
	b.DropThrough(1)
	pushRange(t, b, 4, 5)

	var seen []ID
	b.Each(func(c Command) { seen = append(seen, c.ID) })
	assert.Equal(t, []ID{2, 3, 4, 5}, seen)
}

func TestBufferEmptyAccessors(t *testing.T) {
	b := NewBuffer(0, nil)
	assert.Equal(t, defaultBufferCapacity, b.Capacity())
	_, ok := b.Oldest()
	assert.False(t, ok)
	_, ok = b.Newest()
	assert.False(t, ok)
	assert.Zero(t, b.DropThrough(100))
}
