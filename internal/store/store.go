package store

import (
	"context"
	"errors"
	"time"

	"github.com/ajitpratap0/reclaim/internal/models"
)

// ErrNotFound is returned when the requested entry or review does not exist.
var ErrNotFound = errors.New("not found")

// Store defines persistence for entries and match reviews.
type Store interface {
	// EnsureSchema prepares the backing storage.
	EnsureSchema(ctx context.Context) error

	// Upsert inserts an entry. An existing entry is updated in place but
	// keeps its owner and creation time; a type change is ignored.
	Upsert(ctx context.Context, entry models.Entry) error

	// Get retrieves a single entry by ID.
	Get(ctx context.Context, id string) (*models.Entry, error)

	// Delete removes an entry by ID.
	Delete(ctx context.Context, id string) error

	// List returns entries matching filters ordered by ID.
	// The cursor is the last ID of the previous page; pass "" for the first page.
	// A zero limit returns everything. The returned cursor is empty when no
	// more results remain.
	List(ctx context.Context, filters *Filters, limit uint64, cursor string) ([]models.Entry, string, error)

	// UpdateStatus sets the status of an entry and stamps the change time.
	UpdateStatus(ctx context.Context, id string, status models.EntryStatus, at time.Time) error

	// Stats returns counts by type and status.
	Stats(ctx context.Context) (*models.EntryStats, error)

	// SaveReview inserts or replaces the review of a match.
	SaveReview(ctx context.Context, review models.Review) error

	// GetReview retrieves the review of a (lost, found) pair.
	GetReview(ctx context.Context, lostID, foundID string) (*models.Review, error)

	// ListReviews returns every stored review.
	ListReviews(ctx context.Context) ([]models.Review, error)

	// DeleteReview removes the review of a (lost, found) pair.
	DeleteReview(ctx context.Context, lostID, foundID string) error

	// Close cleans up resources.
	Close() error
}

// Filters narrows List results. Nil fields are ignored.
type Filters struct {
	Type    *models.EntryType   `json:"type,omitempty"`
	Status  *models.EntryStatus `json:"status,omitempty"`
	OwnerID *string             `json:"owner_id,omitempty"`
	// Query is a case-insensitive substring matched against document, name
	// and location.
	Query string `json:"q,omitempty"`
}

// All returns every entry matching filters in a single List call.
func All(ctx context.Context, s Store, filters *Filters) ([]models.Entry, error) {
	entries, _, err := s.List(ctx, filters, 0, "")
	if err != nil {
		return nil, err
	}
	return entries, nil
}
