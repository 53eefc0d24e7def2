// Package matching runs the matcher over a store snapshot on behalf of a
// principal and carries the review state that survives recomputation.
package matching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/ajitpratap0/reclaim/internal/events"
	"github.com/ajitpratap0/reclaim/internal/matcher"
	"github.com/ajitpratap0/reclaim/internal/metrics"
	"github.com/ajitpratap0/reclaim/internal/models"
	"github.com/ajitpratap0/reclaim/internal/reports"
	"github.com/ajitpratap0/reclaim/internal/store"
)

// Stats summarizes the current candidate set.
type Stats struct {
	Candidates int `json:"candidates"`
	Pending    int `json:"pending"`
	Confirmed  int `json:"confirmed"`
	Rejected   int `json:"rejected"`
	Contacted  int `json:"contacted"`
}

// Service computes match views and records reviews.
type Service struct {
	store   store.Store
	matcher *matcher.Matcher
	bus     events.Bus
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a matching service. A nil bus disables notifications.
func NewService(st store.Store, m *matcher.Matcher, bus events.Bus, logger *slog.Logger) *Service {
	if bus == nil {
		bus = events.Nop{}
	}
	return &Service{
		store:   st,
		matcher: m,
		bus:     bus,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Matcher returns the underlying matcher.
func (s *Service) Matcher() *matcher.Matcher { return s.matcher }

// ForPrincipal returns the matches p may see. An empty view means the
// global view for admins and the union of both owner views for users.
// Users may not request the global view.
func (s *Service) ForPrincipal(ctx context.Context, p models.Principal, view string) ([]models.Match, error) {
	view = strings.TrimSpace(view)
	if view == "" {
		if p.IsAdmin() {
			return s.Global(ctx)
		}
		return s.ForOwner(ctx, p.UserID)
	}

	v, err := matcher.ParseView(view)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidEntry, err)
	}
	if v == matcher.ViewGlobal && !p.IsAdmin() {
		return nil, fmt.Errorf("global match view: %w", reports.ErrForbidden)
	}
	return s.View(ctx, v, p.UserID)
}

// Global returns every candidate match.
func (s *Service) Global(ctx context.Context) ([]models.Match, error) {
	return s.View(ctx, matcher.ViewGlobal, "")
}

// View runs one view over a fresh snapshot.
func (s *Service) View(ctx context.Context, v matcher.View, ownerID string) ([]models.Match, error) {
	entries, reviews, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, entries, reviews, v, ownerID)
}

// ForOwner returns the owner-lost and owner-found views merged and ranked
// by score. The owner-found view leaves out the owner's own lost entries,
// so the two views never share a pair.
func (s *Service) ForOwner(ctx context.Context, ownerID string) ([]models.Match, error) {
	entries, reviews, err := s.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	lost, err := s.run(ctx, entries, reviews, matcher.ViewOwnerLost, ownerID)
	if err != nil {
		return nil, err
	}
	found, err := s.run(ctx, entries, reviews, matcher.ViewOwnerFound, ownerID)
	if err != nil {
		return nil, err
	}

	merged := make([]models.Match, 0, len(lost)+len(found))
	merged = append(merged, lost...)
	merged = append(merged, found...)
	sort.SliceStable(merged, func(i, j int) bool { return merged[i].Score > merged[j].Score })
	return merged, nil
}

func (s *Service) snapshot(ctx context.Context) ([]models.Entry, map[string]models.Review, error) {
	entries, err := store.All(ctx, s.store, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("loading entries: %w", err)
	}
	list, err := s.store.ListReviews(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("loading reviews: %w", err)
	}
	reviews := make(map[string]models.Review, len(list))
	for _, r := range list {
		reviews[r.Key()] = r
	}
	return entries, reviews, nil
}

func (s *Service) run(ctx context.Context, entries []models.Entry, reviews map[string]models.Review, v matcher.View, ownerID string) ([]models.Match, error) {
	lost, found := matcher.Partition(entries, v, ownerID)
	matches, err := s.matcher.FindMatchesContext(ctx, lost, found)
	if err != nil {
		return nil, fmt.Errorf("matching %s view: %w", v, err)
	}
	for i := range matches {
		applyReview(&matches[i], reviews)
	}

	metrics.Inc(metrics.MatchRuns)
	metrics.Add(metrics.CandidateMatches, len(matches))
	s.logger.Debug("match view computed", "view", v, "owner", ownerID, "lost", len(lost), "found", len(found), "matches", len(matches))
	return matches, nil
}

func applyReview(m *models.Match, reviews map[string]models.Review) {
	r, ok := reviews[m.ID]
	if !ok {
		return
	}
	m.Review = &r
	if r.Status.IsValid() {
		m.Status = r.Status
	}
}

// ScorePair scores one specific pair regardless of the candidate threshold.
func (s *Service) ScorePair(ctx context.Context, lostID, foundID string) (*models.Match, error) {
	lost, found, err := s.loadPair(ctx, lostID, foundID)
	if err != nil {
		return nil, err
	}
	res := s.matcher.Score(*lost, *found)
	m := &models.Match{
		ID:      models.MatchID(lost.ID, found.ID),
		Lost:    *lost,
		Found:   *found,
		Score:   res.Score,
		Reasons: res.Reasons,
		Status:  models.MatchPending,
	}
	r, err := s.store.GetReview(ctx, lostID, foundID)
	switch {
	case err == nil:
		applyReview(m, map[string]models.Review{m.ID: *r})
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("loading review: %w", err)
	}
	return m, nil
}

// candidate loads a pair and checks that it currently scores as a match.
func (s *Service) candidate(ctx context.Context, lostID, foundID string) (*models.Match, error) {
	m, err := s.ScorePair(ctx, lostID, foundID)
	if err != nil {
		return nil, err
	}
	if !s.matcher.IsCandidate(m.Score) {
		return nil, fmt.Errorf("match %s: %w", m.ID, store.ErrNotFound)
	}
	return m, nil
}

func (s *Service) loadPair(ctx context.Context, lostID, foundID string) (*models.Entry, *models.Entry, error) {
	lost, err := s.store.Get(ctx, lostID)
	if err != nil {
		return nil, nil, err
	}
	found, err := s.store.Get(ctx, foundID)
	if err != nil {
		return nil, nil, err
	}
	if lost.Type != models.EntryTypeLost || found.Type != models.EntryTypeFound {
		return nil, nil, fmt.Errorf("%w: %s must be a lost entry and %s a found entry", models.ErrInvalidEntry, lostID, foundID)
	}
	return lost, found, nil
}

// Review records an admin decision on a candidate match. Confirmed and
// Rejected are final.
func (s *Service) Review(ctx context.Context, p models.Principal, lostID, foundID string, status models.MatchStatus, note string) (*models.Review, error) {
	if !p.IsAdmin() {
		return nil, fmt.Errorf("reviewing match: %w", reports.ErrForbidden)
	}
	m, err := s.candidate(ctx, lostID, foundID)
	if err != nil {
		return nil, err
	}

	r := models.Review{LostID: lostID, FoundID: foundID, Status: models.MatchPending}
	if m.Review != nil {
		r = *m.Review
	}
	if !r.Status.CanTransition(status) {
		return nil, fmt.Errorf("%w: match %s is %s", models.ErrInvalidTransition, m.ID, m.Status)
	}
	r.Status = status
	r.Note = strings.TrimSpace(note)
	r.ReviewedBy = p.UserID
	r.ReviewedAt = s.now()

	if err := s.store.SaveReview(ctx, r); err != nil {
		return nil, fmt.Errorf("saving review: %w", err)
	}
	metrics.Inc(metrics.Reviews)
	s.publish(ctx, events.Change{Kind: events.ReviewSaved, MatchID: m.ID, At: r.ReviewedAt})
	s.logger.Info("match reviewed", "match", m.ID, "status", status, "by", p.UserID)
	return &r, nil
}

// Contact records that one side of a candidate match reached out to the
// other. Only the two owners or an admin may do so, and rejected matches
// cannot be contacted.
func (s *Service) Contact(ctx context.Context, p models.Principal, lostID, foundID string) (*models.Review, error) {
	m, err := s.candidate(ctx, lostID, foundID)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() && !m.Involves(p.UserID) {
		return nil, fmt.Errorf("contacting on match %s: %w", m.ID, reports.ErrForbidden)
	}
	if m.Status == models.MatchRejected {
		return nil, fmt.Errorf("%w: match %s was rejected", models.ErrInvalidTransition, m.ID)
	}

	r := models.Review{LostID: lostID, FoundID: foundID, Status: models.MatchPending}
	if m.Review != nil {
		r = *m.Review
	}
	r.ContactInitiated = true
	r.LastContactAt = s.now()

	if err := s.store.SaveReview(ctx, r); err != nil {
		return nil, fmt.Errorf("saving contact: %w", err)
	}
	metrics.Inc(metrics.Contacts)
	s.publish(ctx, events.Change{Kind: events.ReviewSaved, MatchID: m.ID, At: r.LastContactAt})
	s.logger.Info("contact initiated", "match", m.ID, "by", p.UserID)
	return &r, nil
}

// Summarize counts matches by review state.
func Summarize(matches []models.Match) Stats {
	st := Stats{Candidates: len(matches)}
	for i := range matches {
		switch matches[i].Status {
		case models.MatchConfirmed:
			st.Confirmed++
		case models.MatchRejected:
			st.Rejected++
		default:
			st.Pending++
		}
		if matches[i].Review != nil && matches[i].Review.ContactInitiated {
			st.Contacted++
		}
	}
	return st
}

func (s *Service) publish(ctx context.Context, c events.Change) {
	if err := s.bus.Publish(ctx, c); err != nil {
		s.logger.Warn("publishing change failed", "kind", c.Kind, "match", c.MatchID, "error", err)
	}
}
