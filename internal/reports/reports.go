// Package reports handles the write side of lost and found entries:
// submission, status changes, deletion and search.
package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ajitpratap0/reclaim/internal/doctype"
	"github.com/ajitpratap0/reclaim/internal/events"
	"github.com/ajitpratap0/reclaim/internal/metrics"
	"github.com/ajitpratap0/reclaim/internal/models"
	"github.com/ajitpratap0/reclaim/internal/store"
	"github.com/ajitpratap0/reclaim/pkg/similarity"
)

// ErrForbidden is returned when the principal may not perform the operation.
var ErrForbidden = errors.New("forbidden")

// Service implements entry operations on top of a Store.
type Service struct {
	store      store.Store
	normalizer doctype.Normalizer
	bus        events.Bus
	logger     *slog.Logger
	now        func() time.Time
}

// NewService creates a reports service. A nil bus disables notifications.
func NewService(st store.Store, normalizer doctype.Normalizer, bus events.Bus, logger *slog.Logger) *Service {
	if bus == nil {
		bus = events.Nop{}
	}
	return &Service{
		store:      st,
		normalizer: normalizer,
		bus:        bus,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Submit stores a new entry owned by p. The ID, owner, status and
// timestamps are assigned here; the document label is normalized.
func (s *Service) Submit(ctx context.Context, p models.Principal, e models.Entry) (*models.Entry, error) {
	if p.UserID == "" {
		return nil, fmt.Errorf("submitting entry: %w", ErrForbidden)
	}

	now := s.now()
	e.ID = uuid.New().String()
	e.OwnerID = p.UserID
	if e.OwnerEmail == "" {
		e.OwnerEmail = p.Email
	}
	e.Status = models.StatusOpen
	e.CreatedAt = now
	e.UpdatedAt = now
	e.StatusUpdatedAt = time.Time{}

	if err := s.prepare(ctx, &e); err != nil {
		return nil, err
	}
	if err := s.store.Upsert(ctx, e); err != nil {
		return nil, fmt.Errorf("storing entry: %w", err)
	}

	metrics.Inc(metrics.EntriesSubmitted)
	s.publish(ctx, events.Change{Kind: events.EntryCreated, EntryID: e.ID, At: now})
	s.logger.Info("entry submitted", "id", e.ID, "type", e.Type, "document", e.Document, "owner", e.OwnerID)
	return &e, nil
}

// Import stores entries as given, keeping their IDs and owners. Missing
// IDs, statuses and timestamps are filled in. Re-importing an existing ID
// updates it in place: its type cannot change, and the stored owner and
// creation time win. It returns how many entries were stored; the first
// invalid entry aborts the import.
func (s *Service) Import(ctx context.Context, entries []models.Entry) (int, error) {
	now := s.now()
	stored := 0
	for i := range entries {
		e := entries[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		} else {
			existing, err := s.store.Get(ctx, e.ID)
			switch {
			case errors.Is(err, store.ErrNotFound):
			case err != nil:
				return stored, fmt.Errorf("loading entry %s: %w", e.ID, err)
			case existing.Type != e.Type:
				return stored, fmt.Errorf("entry %d (%s): %w: type is %s and cannot change to %s",
					i, e.ID, models.ErrInvalidEntry, existing.Type, e.Type)
			default:
				e.OwnerID = existing.OwnerID
				e.CreatedAt = existing.CreatedAt
			}
		}
		if e.Status == "" {
			e.Status = models.StatusOpen
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		if e.UpdatedAt.IsZero() {
			e.UpdatedAt = e.CreatedAt
		}
		if err := s.prepare(ctx, &e); err != nil {
			return stored, fmt.Errorf("entry %d (%s): %w", i, e.ID, err)
		}
		if err := s.store.Upsert(ctx, e); err != nil {
			return stored, fmt.Errorf("storing entry %s: %w", e.ID, err)
		}
		stored++
		s.publish(ctx, events.Change{Kind: events.EntryUpdated, EntryID: e.ID, At: now})
	}
	metrics.Add(metrics.EntriesSubmitted, stored)
	return stored, nil
}

// prepare trims free text, normalizes the document label and validates.
func (s *Service) prepare(ctx context.Context, e *models.Entry) error {
	e.Document = strings.TrimSpace(e.Document)
	e.Name = strings.TrimSpace(e.Name)
	e.Location = strings.TrimSpace(e.Location)
	e.DateLost = strings.TrimSpace(e.DateLost)
	e.DateFound = strings.TrimSpace(e.DateFound)

	if err := e.Validate(); err != nil {
		return err
	}
	if _, err := similarity.ParseDate(e.Date()); err != nil {
		return fmt.Errorf("%w: %v", models.ErrInvalidEntry, err)
	}
	if s.normalizer != nil {
		e.Document = s.normalizer.Normalize(ctx, e.Document)
	}
	return nil
}

// Get returns a single entry.
func (s *Service) Get(ctx context.Context, id string) (*models.Entry, error) {
	return s.store.Get(ctx, id)
}

// Query selects entries for List.
type Query struct {
	Type   *models.EntryType
	Status *models.EntryStatus
	Text   string
	// Mine restricts results to entries owned by the caller.
	Mine bool
}

// List returns entries matching q for principal p.
func (s *Service) List(ctx context.Context, p models.Principal, q Query) ([]models.Entry, error) {
	filters := &store.Filters{Type: q.Type, Status: q.Status, Query: strings.TrimSpace(q.Text)}
	if q.Mine {
		if p.UserID == "" {
			return nil, fmt.Errorf("listing own entries: %w", ErrForbidden)
		}
		owner := p.UserID
		filters.OwnerID = &owner
	}
	entries, err := store.All(ctx, s.store, filters)
	if err != nil {
		return nil, fmt.Errorf("listing entries: %w", err)
	}
	return entries, nil
}

// UpdateStatus moves an entry along the status workflow. Only the owner or
// an admin may do so.
func (s *Service) UpdateStatus(ctx context.Context, p models.Principal, id string, next models.EntryStatus) (*models.Entry, error) {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.CanModify(e) {
		return nil, fmt.Errorf("changing status of %s: %w", id, ErrForbidden)
	}
	if !next.IsValid() {
		return nil, fmt.Errorf("%w: unknown status %q", models.ErrInvalidEntry, next)
	}
	if !e.Status.CanTransition(e.Type, next) {
		return nil, fmt.Errorf("%w: %s entry cannot move from %s to %s", models.ErrInvalidTransition, e.Type, e.Status, next)
	}

	now := s.now()
	if err := s.store.UpdateStatus(ctx, id, next, now); err != nil {
		return nil, fmt.Errorf("updating status: %w", err)
	}
	prev := e.Status
	e.Status = next
	e.StatusUpdatedAt = now
	e.UpdatedAt = now

	metrics.Inc(metrics.StatusChanges)
	s.publish(ctx, events.Change{Kind: events.EntryStatus, EntryID: id, At: now})
	s.logger.Info("entry status changed", "id", id, "from", prev, "to", next, "by", p.UserID)
	return e, nil
}

// Delete removes an entry. Only the owner or an admin may do so.
func (s *Service) Delete(ctx context.Context, p models.Principal, id string) error {
	e, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !p.CanModify(e) {
		return fmt.Errorf("deleting %s: %w", id, ErrForbidden)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting entry: %w", err)
	}

	metrics.Inc(metrics.EntriesDeleted)
	s.publish(ctx, events.Change{Kind: events.EntryDeleted, EntryID: id, At: s.now()})
	s.logger.Info("entry deleted", "id", id, "by", p.UserID)
	return nil
}

// Stats returns entry counts.
func (s *Service) Stats(ctx context.Context) (*models.EntryStats, error) {
	return s.store.Stats(ctx)
}

// publish notifies the bus. A bus failure never fails the write.
func (s *Service) publish(ctx context.Context, c events.Change) {
	if err := s.bus.Publish(ctx, c); err != nil {
		s.logger.Warn("publishing change failed", "kind", c.Kind, "entry", c.EntryID, "error", err)
	}
}
