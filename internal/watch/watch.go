// Package watch recomputes the global match view whenever entries or
// reviews change and pushes the result to the graph projection.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ajitpratap0/reclaim/internal/events"
	"github.com/ajitpratap0/reclaim/internal/graph"
	"github.com/ajitpratap0/reclaim/internal/metrics"
	"github.com/ajitpratap0/reclaim/internal/models"
)

// DefaultDebounce is how long the watcher waits after the first change of
// a burst before recomputing.
const DefaultDebounce = 2 * time.Second

// Source produces the global candidate set.
type Source interface {
	Global(ctx context.Context) ([]models.Match, error)
}

// Watcher ties a change bus to match recomputation.
type Watcher struct {
	bus       events.Bus
	source    Source
	projector graph.Projector
	debounce  time.Duration
	logger    *slog.Logger
}

// New creates a Watcher. A nil projector discards results.
func New(bus events.Bus, source Source, projector graph.Projector, debounce time.Duration, logger *slog.Logger) *Watcher {
	if projector == nil {
		projector = graph.Nop{}
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		bus:       bus,
		source:    source,
		projector: projector,
		debounce:  debounce,
		logger:    logger,
	}
}

// Recompute runs the global view once and projects it.
func (w *Watcher) Recompute(ctx context.Context) ([]models.Match, error) {
	matches, err := w.source.Global(ctx)
	if err != nil {
		return nil, fmt.Errorf("recomputing matches: %w", err)
	}
	if err := w.projector.Sync(ctx, matches); err != nil {
		return matches, fmt.Errorf("projecting matches: %w", err)
	}
	metrics.Inc(metrics.WatchRecomputes)
	metrics.Inc(metrics.GraphSyncs)
	w.logger.Info("matches recomputed", "candidates", len(matches))
	return matches, nil
}

// Run recomputes once, then again after every burst of changes, until ctx
// is cancelled. Changes arriving while a recompute is pending are folded
// into it.
func (w *Watcher) Run(ctx context.Context) error {
	trigger := make(chan struct{}, 1)
	if err := w.bus.Subscribe(ctx, func(c events.Change) {
		w.logger.Debug("change received", "kind", c.Kind, "entry", c.EntryID, "match", c.MatchID)
		select {
		case trigger <- struct{}{}:
		default:
		}
	}); err != nil {
		return fmt.Errorf("subscribing to changes: %w", err)
	}

	if _, err := w.Recompute(ctx); err != nil {
		w.logger.Error("initial recompute failed", "error", err)
	}

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-trigger:
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				fire = timer.C
			}
		case <-fire:
			timer, fire = nil, nil
			if _, err := w.Recompute(ctx); err != nil {
				w.logger.Error("recompute failed", "error", err)
			}
		}
	}
}
