package net

import (
	"sync"

	"netcode-csp/internal/predict"
)

const (
	inboxOccupancyMetricKey = "csp_inbox_occupancy"
	inboxOverflowMetricKey  = "csp_inbox_overflow_total"
)

// Kind tells the loop what an inbox message carries.
type Kind uint8

const (
	KindFrame Kind = iota
	KindConnect
	KindDisconnect
)

// Message is one transport occurrence waiting for the loop goroutine.
type Message struct {
	Kind   Kind
	Conn   predict.Connection
	Scene  string
	Frame  []byte
	Reason string
}

type telemetryMetrics interface {
	Add(string, uint64)
	Store(string, uint64)
}

// Inbox queues transport messages from reader goroutines until the loop
// drains them at the start of a frame, so message handling never overlaps
// a tick. It is safe for concurrent producers and a single consumer. Frames
// are bounded by the capacity; connect and disconnect notices are always
// accepted so lifecycle bookkeeping is never lost.
type Inbox struct {
	mu       sync.Mutex
	data     []Message
	head     int
	count    int
	frames   int
	capacity int
	metrics  telemetryMetrics
}

// NewInbox constructs an inbox holding up to capacity frames.
func NewInbox(capacity int, metrics telemetryMetrics) *Inbox {
	if capacity < 1 {
		capacity = 1
	}
	return &Inbox{
		data:     make([]Message, capacity),
		capacity: capacity,
		metrics:  metrics,
	}
}

// Push stages a message, returning false when a frame does not fit.
func (b *Inbox) Push(msg Message) bool {
	if b == nil {
		return false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if msg.Kind == KindFrame && b.frames >= b.capacity {
		if b.metrics != nil {
			b.metrics.Add(inboxOverflowMetricKey, 1)
		}
		return false
	}
	if b.count == len(b.data) {
		b.growLocked()
	}
	b.data[(b.head+b.count)%len(b.data)] = msg
	b.count++
	if msg.Kind == KindFrame {
		b.frames++
	}
	b.storeOccupancyLocked()
	return true
}

// Drain returns every staged message in arrival order and clears the inbox.
func (b *Inbox) Drain() []Message {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.count == 0 {
		return nil
	}
	out := make([]Message, b.count)
	for i := range out {
		idx := (b.head + i) % len(b.data)
		out[i] = b.data[idx]
		b.data[idx] = Message{}
	}
	b.head = 0
	b.count = 0
	b.frames = 0
	b.storeOccupancyLocked()
	return out
}

// Len reports the number of staged messages.
func (b *Inbox) Len() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

func (b *Inbox) growLocked() {
	next := make([]Message, len(b.data)*2)
	for i := 0; i < b.count; i++ {
		next[i] = b.data[(b.head+i)%len(b.data)]
	}
	b.data = next
	b.head = 0
}

func (b *Inbox) storeOccupancyLocked() {
	if b.metrics == nil {
		return
	}
	b.metrics.Store(inboxOccupancyMetricKey, uint64(b.count))
}
