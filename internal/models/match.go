package models

import (
	"strings"
	"time"
)

// MatchStatus is the review state of a candidate match.
type MatchStatus string

const (
	MatchPending   MatchStatus = "Pending"
	MatchConfirmed MatchStatus = "Confirmed"
	MatchRejected  MatchStatus = "Rejected"
)

// IsValid returns true if the match status is recognized.
func (ms MatchStatus) IsValid() bool {
	switch ms {
	case MatchPending, MatchConfirmed, MatchRejected:
		return true
	}
	return false
}

// CanTransition reports whether a review may move a match from ms to next.
// Confirmed and Rejected are terminal.
func (ms MatchStatus) CanTransition(next MatchStatus) bool {
	current := ms
	if current == "" {
		current = MatchPending
	}
	return current == MatchPending && (next == MatchConfirmed || next == MatchRejected)
}

// Match pairs one lost entry with one found entry.
type Match struct {
	ID      string      `json:"id"`
	Lost    Entry       `json:"lost"`
	Found   Entry       `json:"found"`
	Score   float64     `json:"score"`
	Reasons []string    `json:"reasons"`
	Status  MatchStatus `json:"status"`
	Review  *Review     `json:"review,omitempty"`
}

// MatchID builds the deterministic key of a (lost, found) pair.
func MatchID(lostID, foundID string) string {
	return lostID + ":" + foundID
}

// SplitMatchID is the inverse of MatchID.
func SplitMatchID(id string) (lostID, foundID string, ok bool) {
	return strings.Cut(id, ":")
}

// Involves reports whether userID owns either side of the match.
func (m *Match) Involves(userID string) bool {
	return userID != "" && (m.Lost.OwnerID == userID || m.Found.OwnerID == userID)
}

// Review is the persisted human-review state of a match. It survives
// recomputation; everything else about a match is derived.
type Review struct {
	LostID           string      `json:"lost_id"`
	FoundID          string      `json:"found_id"`
	Status           MatchStatus `json:"status"`
	Note             string      `json:"note,omitempty"`
	ReviewedBy       string      `json:"reviewed_by,omitempty"`
	ReviewedAt       time.Time   `json:"reviewed_at,omitempty"`
	ContactInitiated bool        `json:"contact_initiated"`
	LastContactAt    time.Time   `json:"last_contact_at,omitempty"`
}

// Key returns the match id this review belongs to.
func (r *Review) Key() string {
	return MatchID(r.LostID, r.FoundID)
}
