package input

import "github.com/rotisserie/eris"

const (
	bufferOccupancyMetricKey = "csp_input_buffer_occupancy"
	bufferDroppedMetricKey   = "csp_input_buffer_acknowledged_total"

	defaultBufferCapacity = 64
)

// ErrOutOfOrder is returned when a command does not carry a newer id than the
// newest buffered one.
var ErrOutOfOrder = eris.New("input id is not newer than the buffered history")

type metrics interface {
	Add(string, uint64)
	Store(string, uint64)
}

// Buffer holds the commands applied locally since the last server
// acknowledgement, oldest first. It is a ring that grows when full so no
// unacknowledged command is ever lost. It is not safe for concurrent use;
// the prediction engine runs on a single logical thread.
type Buffer struct {
	data    []Command
	head    int
	count   int
	metrics metrics
}

// NewBuffer constructs a buffer with the initial capacity.
func NewBuffer(capacity int, m metrics) *Buffer {
	if capacity < 1 {
		capacity = defaultBufferCapacity
	}
	return &Buffer{data: make([]Command, capacity), metrics: m}
}

// Push appends cmd. Its id must be greater than the newest buffered id.
func (b *Buffer) Push(cmd Command) error {
	if b.count > 0 {
		if newest := b.at(b.count - 1); cmd.ID <= newest.ID {
			return eris.Wrapf(ErrOutOfOrder, "push id=%d newest=%d", cmd.ID, newest.ID)
		}
	}
	if b.count == len(b.data) {
		b.grow()
	}
	b.data[(b.head+b.count)%len(b.data)] = cmd
	b.count++
	b.storeOccupancy()
	return nil
}

// DropThrough removes every command whose id is <= id and reports how many
// were removed.
func (b *Buffer) DropThrough(id ID) int {
	dropped := 0
	for b.count > 0 && b.data[b.head].ID <= id {
		b.data[b.head] = Command{}
		b.head = (b.head + 1) % len(b.data)
		b.count--
		dropped++
	}
	if b.count == 0 {
		b.head = 0
	}
	if dropped > 0 && b.metrics != nil {
		b.metrics.Add(bufferDroppedMetricKey, uint64(dropped))
	}
	b.storeOccupancy()
	return dropped
}

// Each visits the buffered commands oldest to newest.
func (b *Buffer) Each(fn func(Command)) {
	for i := 0; i < b.count; i++ {
		fn(b.at(i))
	}
}

// Commands returns a copy of the buffered commands in FIFO order.
func (b *Buffer) Commands() []Command {
	if b.count == 0 {
		return nil
	}
	out := make([]Command, b.count)
	for i := range out {
		out[i] = b.at(i)
	}
	return out
}

// Oldest returns the oldest buffered command.
func (b *Buffer) Oldest() (Command, bool) {
	if b.count == 0 {
		return Command{}, false
	}
	return b.at(0), true
}

// Newest returns the most recently pushed command.
func (b *Buffer) Newest() (Command, bool) {
	if b.count == 0 {
		return Command{}, false
	}
	return b.at(b.count - 1), true
}

// Len reports the number of buffered commands.
func (b *Buffer) Len() int {
	return b.count
}

// Capacity reports the current ring size.
func (b *Buffer) Capacity() int {
	return len(b.data)
}

func (b *Buffer) at(i int) Command {
	return b.data[(b.head+i)%len(b.data)]
}

func (b *Buffer) grow() {
	next := make([]Command, len(b.data)*2)
	for i := 0; i < b.count; i++ {
		next[i] = b.at(i)
	}
	b.data = next
	b.head = 0
}

func (b *Buffer) storeOccupancy() {
	if b.metrics == nil {
		return
	}
	b.metrics.Store(bufferOccupancyMetricKey, uint64(b.count))
}
