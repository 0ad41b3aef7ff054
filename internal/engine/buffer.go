package engine

import (
	"sync"

	"github.com/portpulse/portpulse/internal/domain"
	"github.com/portpulse/portpulse/internal/metrics"
)

// Buffer is the bounded, sequence-ordered history of emitted events. Its
// contents are always a contiguous suffix of all-time emitted events: the
// oldest entries are evicted once capacity is exceeded, never the middle.
type Buffer struct {
	mu       sync.RWMutex
	events   []domain.Event
	capacity int
	maxSeq   uint64 // highest sequence ever appended, survives eviction
}

// NewBuffer creates a buffer retaining the last capacity events.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{capacity: capacity}
}

// Append stores an event, evicting the oldest entry when over capacity.
// Events must be appended in strictly increasing sequence order.
func (b *Buffer) Append(ev domain.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events = append(b.events, ev)
	if len(b.events) > b.capacity {
		n := copy(b.events, b.events[len(b.events)-b.capacity:])
		b.events = b.events[:n]
	}
	b.maxSeq = ev.Seq
	metrics.EventBufferSize.Set(float64(len(b.events)))
}

// Len returns the number of retained events.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.events)
}

// MaxSeq returns the highest sequence number ever emitted, or 0.
func (b *Buffer) MaxSeq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.maxSeq
}

// OldestSeq returns the sequence of the oldest retained event, or 0 when the
// buffer is empty.
func (b *Buffer) OldestSeq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.events) == 0 {
		return 0
	}
	return b.events[0].Seq
}

// Since returns every retained event with a sequence greater than lastSeq, in
// sequence order. It reports false when the request cannot be answered
// completely: lastSeq is ahead of everything emitted, or events after lastSeq
// have already been evicted. A partial replay is never returned.
func (b *Buffer) Since(lastSeq uint64) ([]domain.Event, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if lastSeq > b.maxSeq {
		return nil, false
	}

	// oldest-1 is the newest sequence fully covered by eviction; anything
	// older than that has gaps we no longer retain.
	floor := b.maxSeq
	if len(b.events) > 0 {
		floor = b.events[0].Seq - 1
	}
	if lastSeq < floor {
		return nil, false
	}

	var out []domain.Event
	for _, ev := range b.events {
		if ev.Seq > lastSeq {
			out = append(out, ev)
		}
	}
	return out, true
}
