package matcher

import (
	"fmt"

	"github.com/ajitpratap0/reclaim/internal/models"
)

// View selects which slice of the entry collection a caller sees matches for.
type View string

const (
	// ViewGlobal pairs every lost entry with every found entry.
	ViewGlobal View = "global"
	// ViewOwnerLost pairs the owner's lost entries with every found entry.
	ViewOwnerLost View = "lost"
	// ViewOwnerFound pairs other users' lost entries with the owner's found entries.
	ViewOwnerFound View = "found"
)

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	switch v := View(s); v {
	case ViewGlobal, ViewOwnerLost, ViewOwnerFound:
		return v, nil
	}
	return "", fmt.Errorf("unknown view %q: must be global, lost or found", s)
}

// Split separates entries by type, preserving order.
func Split(entries []models.Entry) (lost, found []models.Entry) {
	for i := range entries {
		switch entries[i].Type {
		case models.EntryTypeLost:
			lost = append(lost, entries[i])
		case models.EntryTypeFound:
			found = append(found, entries[i])
		}
	}
	return lost, found
}

// Partition returns the lost and found inputs for a view. ownerID is
// ignored for ViewGlobal.
func Partition(entries []models.Entry, view View, ownerID string) (lost, found []models.Entry) {
	allLost, allFound := Split(entries)
	switch view {
	case ViewOwnerLost:
		for i := range allLost {
			if allLost[i].OwnerID == ownerID {
				lost = append(lost, allLost[i])
			}
		}
		return lost, allFound
	case ViewOwnerFound:
		for i := range allLost {
			if allLost[i].OwnerID != ownerID {
				lost = append(lost, allLost[i])
			}
		}
		for i := range allFound {
			if allFound[i].OwnerID == ownerID {
				found = append(found, allFound[i])
			}
		}
		return lost, found
	default:
		return allLost, allFound
	}
}

// MatchView runs the matcher over the slice of entries the view selects.
func (m *Matcher) MatchView(entries []models.Entry, view View, ownerID string) []models.Match {
	lost, found := Partition(entries, view, ownerID)
	return m.FindMatches(lost, found)
}
