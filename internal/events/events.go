// Package events carries entry and review change notifications between
// the write path and background recomputation.
package events

import (
	"context"
	"sync"
	"time"
)

// Kind names what changed.
type Kind string

const (
	EntryCreated Kind = "entry.created"
	EntryUpdated Kind = "entry.updated"
	EntryStatus  Kind = "entry.status"
	EntryDeleted Kind = "entry.deleted"
	ReviewSaved  Kind = "review.saved"
)

// Change is one notification on the bus.
type Change struct {
	Kind    Kind      `json:"kind"`
	EntryID string    `json:"entry_id,omitempty"`
	MatchID string    `json:"match_id,omitempty"`
	At      time.Time `json:"at"`
}

// Bus publishes changes and delivers them to subscribers.
type Bus interface {
	// Publish sends c to every current subscriber.
	Publish(ctx context.Context, c Change) error

	// Subscribe registers fn and returns once the subscription is live.
	// Delivery stops when ctx is cancelled.
	Subscribe(ctx context.Context, fn func(Change)) error

	// Close releases resources.
	Close() error
}

// MemoryBus delivers changes in-process, synchronously, in publish order.
type MemoryBus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]func(Change)
}

// NewMemoryBus creates an in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[int]func(Change))}
}

// Publish calls every subscriber with c.
func (b *MemoryBus) Publish(_ context.Context, c Change) error {
	b.mu.RLock()
	fns := make([]func(Change), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(c)
	}
	return nil
}

// Subscribe registers fn until ctx is done.
func (b *MemoryBus) Subscribe(ctx context.Context, fn func(Change)) error {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}()
	return nil
}

// Close drops all subscribers.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[int]func(Change))
	return nil
}

// Nop discards every change. Used when no bus is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Change) error         { return nil }
func (Nop) Subscribe(context.Context, func(Change)) error { return nil }
func (Nop) Close() error                                  { return nil }
