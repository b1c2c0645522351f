// Package fallback holds audit events the primary store rejected.
package fallback

import (
	"context"
	"sync"

	audit "github.com/InteriMed/Medishift-sub005/pkg/platform/audit"
)

const defaultCapacity = 10000

// Ring is a bounded, thread-safe buffer. When full, the oldest event is
// dropped to make room.
type Ring struct {
	mu       sync.Mutex
	events   []audit.Event
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	dropped int64
}

func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	return &Ring{
		events:   make([]audit.Event, capacity),
		capacity: capacity,
	}
}

// Add enqueues an event, dropping the oldest if necessary.
func (b *Ring) Add(event audit.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
	}

	b.events[b.head] = event
	b.head = (b.head + 1) % b.capacity
	b.count++
}

// DequeueBatch removes up to n events, oldest first.
func (b *Ring) DequeueBatch(n int) []audit.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 || n <= 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	result := make([]audit.Event, n)
	for i := 0; i < n; i++ {
		result[i] = b.events[b.tail]
		b.events[b.tail] = audit.Event{}
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n
	return result
}

// Replay re-appends buffered events to store, oldest first. It stops at the
// first failure and puts the failed event and everything after it back.
func (b *Ring) Replay(ctx context.Context, store audit.Store) (int, error) {
	batch := b.DequeueBatch(b.Len())
	for i, event := range batch {
		if err := store.Append(ctx, event); err != nil {
			for _, rest := range batch[i:] {
				b.Add(rest)
			}
			return i, err
		}
	}
	return len(batch), nil
}

func (b *Ring) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns the total number of events evicted while full.
func (b *Ring) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
