package sessionlog

import "sync"

// DefaultLimit is the number of entries a Buffer keeps when created with a
// non-positive limit.
const DefaultLimit = 200

// Buffer keeps the most recent captured entries, oldest first.
type Buffer struct {
	mu      sync.Mutex
	limit   int
	entries []Entry
	dropped int
}

// NewBuffer returns a Buffer that keeps at most limit entries.
func NewBuffer(limit int) *Buffer {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Buffer{limit: limit}
}

// Add appends e, evicting the oldest entry when full. It satisfies
// EntryCallback.
func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.entries) == b.limit {
		copy(b.entries, b.entries[1:])
		b.entries = b.entries[:len(b.entries)-1]
		b.dropped++
	}
	b.entries = append(b.entries, e)
}

// Entries returns a copy of the buffered entries.
func (b *Buffer) Entries() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Entry, len(b.entries))
	copy(out, b.entries)
	return out
}

// Dropped returns how many entries were evicted since the last Clear.
func (b *Buffer) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}

// Clear removes all entries.
func (b *Buffer) Clear() {
	b.mu.Lock()
	b.entries = nil
	b.dropped = 0
	b.mu.Unlock()
}
