package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ajitpratap0/reclaim/internal/models"
)

// MemoryStore is an in-memory implementation of Store. It backs tests and
// single-process deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]models.Entry
	reviews map[string]models.Review
}

// NewMemoryStore creates an empty memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]models.Entry),
		reviews: make(map[string]models.Review),
	}
}

// EnsureSchema is a no-op for the memory store.
func (m *MemoryStore) EnsureSchema(_ context.Context) error {
	return nil
}

// Upsert inserts an entry, or updates an existing one while keeping its
// owner and creation time. An update that would change the type is
// ignored.
func (m *MemoryStore) Upsert(_ context.Context, entry models.Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.entries[entry.ID]; ok {
		if prev.Type != entry.Type {
			return nil
		}
		entry.OwnerID = prev.OwnerID
		entry.CreatedAt = prev.CreatedAt
	}
	m.entries[entry.ID] = copyEntry(entry)
	return nil
}

// Get retrieves a single entry by ID.
func (m *MemoryStore) Get(_ context.Context, id string) (*models.Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	e = copyEntry(e)
	return &e, nil
}

// Delete removes an entry by ID.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	delete(m.entries, id)
	return nil
}

// List returns entries matching filters with cursor-based pagination.
func (m *MemoryStore) List(_ context.Context, filters *Filters, limit uint64, cursor string) ([]models.Entry, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]models.Entry, 0, len(m.entries))
	for _, e := range m.entries {
		if !matchesFilters(&e, filters) {
			continue
		}
		all = append(all, copyEntry(e))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	if cursor != "" {
		start := sort.Search(len(all), func(i int) bool { return all[i].ID > cursor })
		all = all[start:]
	}

	var next string
	if limit > 0 && uint64(len(all)) > limit {
		all = all[:limit]
		next = all[len(all)-1].ID
	}
	return all, next, nil
}

// UpdateStatus sets the status of an entry.
func (m *MemoryStore) UpdateStatus(_ context.Context, id string, status models.EntryStatus, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[id]
	if !ok {
		return fmt.Errorf("entry %s: %w", id, ErrNotFound)
	}
	e.Status = status
	e.StatusUpdatedAt = at
	e.UpdatedAt = at
	m.entries[id] = e
	return nil
}

// Stats returns counts computed from the in-memory entries.
func (m *MemoryStore) Stats(_ context.Context) (*models.EntryStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := &models.EntryStats{
		TotalEntries: int64(len(m.entries)),
		ByType:       make(map[string]int64),
		ByStatus:     make(map[string]int64),
	}
	for _, e := range m.entries {
		stats.ByType[string(e.Type)]++
		stats.ByStatus[string(e.Status)]++
	}
	return stats, nil
}

// SaveReview inserts or replaces a review.
func (m *MemoryStore) SaveReview(_ context.Context, review models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reviews[review.Key()] = review
	return nil
}

// GetReview retrieves the review of a (lost, found) pair.
func (m *MemoryStore) GetReview(_ context.Context, lostID, foundID string) (*models.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reviews[models.MatchID(lostID, foundID)]
	if !ok {
		return nil, fmt.Errorf("review %s: %w", models.MatchID(lostID, foundID), ErrNotFound)
	}
	return &r, nil
}

// ListReviews returns all reviews ordered by match id.
func (m *MemoryStore) ListReviews(_ context.Context) ([]models.Review, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Review, 0, len(m.reviews))
	for _, r := range m.reviews {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out, nil
}

// DeleteReview removes a review.
func (m *MemoryStore) DeleteReview(_ context.Context, lostID, foundID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := models.MatchID(lostID, foundID)
	if _, ok := m.reviews[key]; !ok {
		return fmt.Errorf("review %s: %w", key, ErrNotFound)
	}
	delete(m.reviews, key)
	return nil
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}

// --- helpers ---

// copyEntry detaches the Geo pointer so callers cannot mutate stored data.
func copyEntry(e models.Entry) models.Entry {
	if e.Geo != nil {
		g := *e.Geo
		e.Geo = &g
	}
	return e
}

func matchesFilters(e *models.Entry, f *Filters) bool {
	if f == nil {
		return true
	}
	if f.Type != nil && e.Type != *f.Type {
		return false
	}
	if f.Status != nil && e.Status != *f.Status {
		return false
	}
	if f.OwnerID != nil && e.OwnerID != *f.OwnerID {
		return false
	}
	if f.Query != "" {
		q := strings.ToLower(f.Query)
		if !strings.Contains(strings.ToLower(e.Document), q) &&
			!strings.Contains(strings.ToLower(e.Name), q) &&
			!strings.Contains(strings.ToLower(e.Location), q) {
			return false
		}
	}
	return true
}
