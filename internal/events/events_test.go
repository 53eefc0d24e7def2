package events

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBusDelivers(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []Change
	require.NoError(t, bus.Subscribe(ctx, func(c Change) {
		mu.Lock()
		got = append(got, c)
		mu.Unlock()
	}))

	require.NoError(t, bus.Publish(ctx, Change{Kind: EntryCreated, EntryID: "e1"}))
	require.NoError(t, bus.Publish(ctx, Change{Kind: EntryDeleted, EntryID: "e1"}))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, EntryCreated, got[0].Kind)
	assert.Equal(t, EntryDeleted, got[1].Kind)
}

func TestMemoryBusUnsubscribesOnCancel(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())

	calls := make(chan Change, 4)
	require.NoError(t, bus.Subscribe(ctx, func(c Change) { calls <- c }))
	cancel()

	assert.Eventually(t, func() bool {
		bus.mu.RLock()
		defer bus.mu.RUnlock()
		return len(bus.subs) == 0
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, bus.Publish(context.Background(), Change{Kind: EntryCreated}))
	assert.Empty(t, calls)
}

func TestMemoryBusClose(t *testing.T) {
	bus := NewMemoryBus()
	called := false
	require.NoError(t, bus.Subscribe(context.Background(), func(Change) { called = true }))
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Publish(context.Background(), Change{Kind: EntryCreated}))
	assert.False(t, called)
}

func TestNopBus(t *testing.T) {
	var b Bus = Nop{}
	assert.NoError(t, b.Publish(context.Background(), Change{Kind: EntryCreated}))
	assert.NoError(t, b.Subscribe(context.Background(), func(Change) {}))
	assert.NoError(t, b.Close())
}

func TestDecodeChange(t *testing.T) {
	c, err := decodeChange(`{"kind":"entry.status","entry_id":"e1","at":"2024-03-01T00:00:00Z"}`)
	require.NoError(t, err)
	assert.Equal(t, EntryStatus, c.Kind)
	assert.Equal(t, "e1", c.EntryID)

	_, err = decodeChange(`{"entry_id":"e1"}`)
	assert.Error(t, err)
	_, err = decodeChange(`not json`)
	assert.Error(t, err)
}

func TestNewRedisBusRequiresAddress(t *testing.T) {
	_, err := NewRedisBus("", "", slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}

func TestNewRedisBusUnreachable(t *testing.T) {
	_, err := NewRedisBus("127.0.0.1:1", "test", slog.New(slog.DiscardHandler))
	assert.Error(t, err)
}
