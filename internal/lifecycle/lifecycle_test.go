package lifecycle

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/reclaim/internal/events"
	"github.com/ajitpratap0/reclaim/internal/models"
	"github.com/ajitpratap0/reclaim/internal/store"
)

var sweepNow = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

func seed(t *testing.T) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	ctx := context.Background()
	old := sweepNow.Add(-100 * 24 * time.Hour)
	recent := sweepNow.Add(-10 * 24 * time.Hour)
	for _, e := range []models.Entry{
		{ID: "old-open", Type: models.EntryTypeLost, Status: models.StatusOpen, CreatedAt: old},
		{ID: "old-found", Type: models.EntryTypeLost, Status: models.StatusFound, CreatedAt: old},
		{ID: "recent-open", Type: models.EntryTypeFound, Status: models.StatusOpen, CreatedAt: recent},
		{ID: "undated", Type: models.EntryTypeFound, Status: models.StatusOpen},
	} {
		require.NoError(t, st.Upsert(ctx, e))
	}
	require.NoError(t, st.SaveReview(ctx, models.Review{LostID: "old-open", FoundID: "recent-open", Status: models.MatchConfirmed}))
	require.NoError(t, st.SaveReview(ctx, models.Review{LostID: "gone", FoundID: "recent-open"}))
	return st
}

func newManager(st store.Store, bus events.Bus) *Manager {
	m := NewManager(st, bus, 0, slog.New(slog.DiscardHandler))
	m.now = func() time.Time { return sweepNow }
	return m
}

func TestSweep(t *testing.T) {
	st := seed(t)
	bus := events.NewMemoryBus()
	var changes []events.Change
	require.NoError(t, bus.Subscribe(context.Background(), func(c events.Change) { changes = append(changes, c) }))

	report, err := newManager(st, bus).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, []string{"old-open"}, report.Closed)
	assert.Equal(t, []string{"gone:recent-open"}, report.Pruned)
	assert.False(t, report.DryRun)

	e, err := st.Get(context.Background(), "old-open")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, e.Status)
	assert.Equal(t, sweepNow, e.StatusUpdatedAt)

	reviews, err := st.ListReviews(context.Background())
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, "old-open:recent-open", reviews[0].Key())

	require.Len(t, changes, 1)
	assert.Equal(t, events.EntryStatus, changes[0].Kind)
}

func TestSweepDryRun(t *testing.T) {
	st := seed(t)
	report, err := newManager(st, nil).Run(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, []string{"old-open"}, report.Closed)
	assert.Equal(t, []string{"gone:recent-open"}, report.Pruned)

	e, err := st.Get(context.Background(), "old-open")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, e.Status)
	reviews, err := st.ListReviews(context.Background())
	require.NoError(t, err)
	assert.Len(t, reviews, 2)
}

func TestSweepEmptyStore(t *testing.T) {
	report, err := newManager(store.NewMemoryStore(), nil).Run(context.Background(), false)
	require.NoError(t, err)
	assert.Empty(t, report.Closed)
	assert.Empty(t, report.Pruned)
}

func TestSweepCustomStaleAfter(t *testing.T) {
	st := seed(t)
	m := NewManager(st, nil, 5*24*time.Hour, slog.New(slog.DiscardHandler))
	m.now = func() time.Time { return sweepNow }
	report, err := m.Run(context.Background(), true)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"old-open", "recent-open"}, report.Closed)
}
