package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ajitpratap0/reclaim/internal/events"
	"github.com/ajitpratap0/reclaim/internal/metrics"
	"github.com/ajitpratap0/reclaim/internal/models"
	"github.com/ajitpratap0/reclaim/internal/store"
)

// DefaultStaleAfter is how long an entry may stay Open before the sweep
// closes it.
const DefaultStaleAfter = 90 * 24 * time.Hour

// Report summarizes the results of a sweep.
type Report struct {
	Closed []string `json:"closed"`
	Pruned []string `json:"pruned"`
	DryRun bool     `json:"dry_run"`
}

// Manager handles entry housekeeping.
type Manager struct {
	store      store.Store
	bus        events.Bus
	staleAfter time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// NewManager creates a new lifecycle manager. A non-positive staleAfter
// uses DefaultStaleAfter; a nil bus disables notifications.
func NewManager(st store.Store, bus events.Bus, staleAfter time.Duration, logger *slog.Logger) *Manager {
	if bus == nil {
		bus = events.Nop{}
	}
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Manager{
		store:      st,
		bus:        bus,
		staleAfter: staleAfter,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Run executes all sweep operations. Failures of one step are logged and
// do not stop the other.
func (m *Manager) Run(ctx context.Context, dryRun bool) (*Report, error) {
	report := &Report{DryRun: dryRun, Closed: []string{}, Pruned: []string{}}
	var errs []error

	// 1. Close stale open entries
	closed, err := m.closeStale(ctx, dryRun)
	if err != nil {
		m.logger.Error("closing stale entries failed", "error", err)
		errs = append(errs, err)
	}
	report.Closed = append(report.Closed, closed...)

	// 2. Prune reviews whose entries are gone
	pruned, err := m.pruneReviews(ctx, dryRun)
	if err != nil {
		m.logger.Error("pruning reviews failed", "error", err)
		errs = append(errs, err)
	}
	report.Pruned = append(report.Pruned, pruned...)

	return report, errors.Join(errs...)
}

// closeStale closes Open entries created more than staleAfter ago.
func (m *Manager) closeStale(ctx context.Context, dryRun bool) ([]string, error) {
	open := models.StatusOpen
	entries, err := store.All(ctx, m.store, &store.Filters{Status: &open})
	if err != nil {
		return nil, fmt.Errorf("listing open entries: %w", err)
	}

	now := m.now()
	cutoff := now.Add(-m.staleAfter)
	var closed []string

	for _, e := range entries {
		if e.CreatedAt.IsZero() || !e.CreatedAt.Before(cutoff) {
			continue
		}
		m.logger.Info("closing stale entry", "id", e.ID, "type", e.Type, "created", e.CreatedAt)
		if !dryRun {
			if err := m.store.UpdateStatus(ctx, e.ID, models.StatusClosed, now); err != nil {
				m.logger.Error("closing entry", "id", e.ID, "error", err)
				continue
			}
			metrics.Inc(metrics.LifecycleClosed)
			m.publish(ctx, events.Change{Kind: events.EntryStatus, EntryID: e.ID, At: now})
		}
		closed = append(closed, e.ID)
	}
	return closed, nil
}

// pruneReviews deletes reviews that reference an entry that no longer exists.
func (m *Manager) pruneReviews(ctx context.Context, dryRun bool) ([]string, error) {
	reviews, err := m.store.ListReviews(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing reviews: %w", err)
	}
	entries, err := store.All(ctx, m.store, nil)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	exists := make(map[string]bool, len(entries))
	for _, e := range entries {
		exists[e.ID] = true
	}

	var pruned []string
	for _, r := range reviews {
		if exists[r.LostID] && exists[r.FoundID] {
			continue
		}
		m.logger.Info("pruning orphaned review", "match", r.Key())
		if !dryRun {
			if err := m.store.DeleteReview(ctx, r.LostID, r.FoundID); err != nil {
				m.logger.Error("deleting review", "match", r.Key(), "error", err)
				continue
			}
			metrics.Inc(metrics.LifecyclePruned)
		}
		pruned = append(pruned, r.Key())
	}
	return pruned, nil
}

func (m *Manager) publish(ctx context.Context, c events.Change) {
	if err := m.bus.Publish(ctx, c); err != nil {
		m.logger.Warn("publishing change failed", "kind", c.Kind, "entry", c.EntryID, "error", err)
	}
}
