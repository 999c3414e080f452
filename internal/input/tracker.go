package input

import "sort"

// Tracker records, per connection, the newest input id the server applied.
// Entries only move forward.
type Tracker struct {
	last map[string]ID
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{last: make(map[string]ID)}
}

// Observe records id for conn when it is newer than the stored one. A first
// id is always accepted. It reports whether the id advanced the entry.
func (t *Tracker) Observe(conn string, id ID) bool {
	last, ok := t.last[conn]
	if ok && id <= last {
		return false
	}
	t.last[conn] = id
	return true
}

// Last returns the newest applied id for conn. Connections that never sent
// input report zero, which never acknowledges a real command because client
// ids start at one.
func (t *Tracker) Last(conn string) (ID, bool) {
	id, ok := t.last[conn]
	return id, ok
}

// Forget drops the entry for a closed connection.
func (t *Tracker) Forget(conn string) {
	delete(t.last, conn)
}

// Entry is a point in time view of one connection.
type Entry struct {
	Connection string `json:"connection"`
	LastID     ID     `json:"lastId"`
}

// Snapshot lists every tracked connection ordered by name.
func (t *Tracker) Snapshot() []Entry {
	out := make([]Entry, 0, len(t.last))
	for conn, id := range t.last {
		out = append(out, Entry{Connection: conn, LastID: id})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Connection < out[j].Connection })
	return out
}

// Len reports the number of tracked connections.
func (t *Tracker) Len() int {
	return len(t.last)
}
