// Package matcher scores lost/found entry pairs and ranks candidate matches.
// Everything here is pure: no I/O, no shared state.
package matcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/reclaim/internal/models"
	"github.com/ajitpratap0/reclaim/pkg/similarity"
)

// Reason tags attached to a match.
const (
	ReasonDocument = "Same document type"
	ReasonName     = "Similar names"
	ReasonLocation = "Similar locations"
	ReasonDate     = "Dates are close"
)

// defaultParallelMinPairs is the smallest cross product worth fanning out.
const defaultParallelMinPairs = 4096

// ErrBudgetExceeded is returned when a run would score more pairs than allowed.
var ErrBudgetExceeded = errors.New("pair budget exceeded")

// Result is the outcome of scoring one pair.
type Result struct {
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// Matcher pairs lost entries with found entries.
type Matcher struct {
	weights     Weights
	thresholds  Thresholds
	concurrency int
	maxPairs    int
	parallelMin int
	logger      *slog.Logger
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithConcurrency scans lost entries on up to n goroutines for large inputs.
func WithConcurrency(n int) Option {
	return func(m *Matcher) { m.concurrency = n }
}

// WithMaxPairs caps the cross product FindMatchesContext will accept.
// Zero means no cap.
func WithMaxPairs(n int) Option {
	return func(m *Matcher) { m.maxPairs = n }
}

// WithLogger sets the logger used for run summaries.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) { m.logger = logger }
}

// New creates a matcher with the given weights and thresholds.
func New(weights Weights, thresholds Thresholds, opts ...Option) *Matcher {
	m := &Matcher{
		weights:     weights,
		thresholds:  thresholds,
		concurrency: 1,
		parallelMin: defaultParallelMinPairs,
		logger:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Default returns a matcher with the standard weights and thresholds.
func Default() *Matcher {
	return New(DefaultWeights(), DefaultThresholds())
}

// Thresholds returns the matcher's thresholds.
func (m *Matcher) Thresholds() Thresholds { return m.thresholds }

// Score computes the weighted score of a (lost, found) pair along with the
// reasons for every signal that fired. Missing fields disable their signal.
func (m *Matcher) Score(lost, found models.Entry) Result {
	var score float64
	reasons := make([]string, 0, 5)

	if lost.Document != "" && lost.Document == found.Document {
		score += m.weights.Document
		reasons = append(reasons, ReasonDocument)
	}

	if lost.Name != "" && found.Name != "" {
		if sim := similarity.StringSimilarity(lost.Name, found.Name); sim > m.thresholds.NameSimilarity {
			score += sim * m.weights.Name
			reasons = append(reasons, ReasonName)
		}
	}

	if sim := similarity.StringSimilarity(lost.Location, found.Location); sim > m.thresholds.LocationSimilarity {
		score += sim * m.weights.Location
		reasons = append(reasons, ReasonLocation)
	}

	if lost.Geo != nil && found.Geo != nil {
		d := similarity.DistanceKm(lost.Geo.Lat, lost.Geo.Lon, found.Geo.Lat, found.Geo.Lon)
		// Tighter band first; the bands never both apply.
		switch {
		case d < m.thresholds.GeoNearKm:
			score += m.weights.GeoNear
			reasons = append(reasons, distanceReason(d))
		case d < m.thresholds.GeoFarKm:
			score += m.weights.GeoFar
			reasons = append(reasons, distanceReason(d))
		}
	}

	if similarity.IsRecentMatch(lost.DateLost, found.DateFound, m.thresholds.DateWindowDays) {
		score += m.weights.Date
		reasons = append(reasons, ReasonDate)
	}

	return Result{Score: score, Reasons: reasons}
}

// IsCandidate reports whether a score clears the inclusion threshold.
func (m *Matcher) IsCandidate(score float64) bool {
	return score >= m.thresholds.MinScore
}

// FindMatches scores every (lost, found) pair and returns the candidates,
// highest score first. Ties keep input order, lost-major.
func (m *Matcher) FindMatches(lost, found []models.Entry) []models.Match {
	if len(lost) == 0 || len(found) == 0 {
		return []models.Match{}
	}
	matches, _ := m.run(context.Background(), lost, found)
	return matches
}

// FindMatchesContext is FindMatches with cancellation and the pair budget
// applied.
func (m *Matcher) FindMatchesContext(ctx context.Context, lost, found []models.Entry) ([]models.Match, error) {
	if len(lost) == 0 || len(found) == 0 {
		return []models.Match{}, nil
	}
	if pairs := len(lost) * len(found); m.maxPairs > 0 && pairs > m.maxPairs {
		return nil, fmt.Errorf("%w: %d pairs, limit %d", ErrBudgetExceeded, pairs, m.maxPairs)
	}
	return m.run(ctx, lost, found)
}

func (m *Matcher) run(ctx context.Context, lost, found []models.Entry) ([]models.Match, error) {
	// One slot per lost entry so the parallel path concatenates in input order.
	slots := make([][]models.Match, len(lost))

	if m.concurrency > 1 && len(lost)*len(found) >= m.parallelMin {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(m.concurrency)
		for i := range lost {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				slots[i] = m.scan(lost[i], found)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("matching: %w", err)
		}
	} else {
		for i := range lost {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("matching: %w", err)
			}
			slots[i] = m.scan(lost[i], found)
		}
	}

	matches := make([]models.Match, 0)
	for _, s := range slots {
		matches = append(matches, s...)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})

	m.logger.Debug("matching run complete",
		"lost", len(lost), "found", len(found), "candidates", len(matches))
	return matches, nil
}

// scan scores one lost entry against every found entry.
func (m *Matcher) scan(lost models.Entry, found []models.Entry) []models.Match {
	var out []models.Match
	for j := range found {
		res := m.Score(lost, found[j])
		if !m.IsCandidate(res.Score) {
			continue
		}
		out = append(out, models.Match{
			ID:      models.MatchID(lost.ID, found[j].ID),
			Lost:    lost,
			Found:   found[j],
			Score:   res.Score,
			Reasons: res.Reasons,
			Status:  models.MatchPending,
		})
	}
	return out
}

func distanceReason(km float64) string {
	return fmt.Sprintf("Locations are %.1fkm apart", km)
}
