package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidEntry is returned when an entry fails validation.
var ErrInvalidEntry = errors.New("invalid entry")

// ErrInvalidTransition is returned when a status change is not allowed.
var ErrInvalidTransition = errors.New("invalid status transition")

// EntryType says whether an entry reports a lost or a found document.
type EntryType string

const (
	EntryTypeLost  EntryType = "Lost"
	EntryTypeFound EntryType = "Found"
)

// ValidEntryTypes is the set of all valid entry types.
var ValidEntryTypes = []EntryType{
	EntryTypeLost,
	EntryTypeFound,
}

// IsValid returns true if the entry type is recognized.
func (et EntryType) IsValid() bool {
	for _, v := range ValidEntryTypes {
		if et == v {
			return true
		}
	}
	return false
}

// ParseEntryType accepts "lost"/"found" in any case.
func ParseEntryType(s string) (EntryType, error) {
	for _, v := range ValidEntryTypes {
		if strings.EqualFold(s, string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unknown type %q", ErrInvalidEntry, s)
}

// EntryStatus tracks an entry through its lifecycle.
type EntryStatus string

const (
	StatusOpen     EntryStatus = "Open"
	StatusFound    EntryStatus = "Found"
	StatusReturned EntryStatus = "Returned"
	StatusClosed   EntryStatus = "Closed"
)

// ValidEntryStatuses is the set of all valid entry statuses.
var ValidEntryStatuses = []EntryStatus{
	StatusOpen,
	StatusFound,
	StatusReturned,
	StatusClosed,
}

// IsValid returns true if the entry status is recognized.
func (es EntryStatus) IsValid() bool {
	for _, v := range ValidEntryStatuses {
		if es == v {
			return true
		}
	}
	return false
}

// ParseEntryStatus accepts a status name in any case.
func ParseEntryStatus(s string) (EntryStatus, error) {
	for _, v := range ValidEntryStatuses {
		if strings.EqualFold(s, string(v)) {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidEntry, s)
}

// CanTransition reports whether an entry of type et may move from es to next.
// A lost entry can be marked Found, a found entry can be marked Returned,
// and anything not yet Closed can be Closed.
func (es EntryStatus) CanTransition(et EntryType, next EntryStatus) bool {
	if es == StatusClosed || es == next {
		return false
	}
	switch next {
	case StatusClosed:
		return true
	case StatusFound:
		return et == EntryTypeLost
	case StatusReturned:
		return et == EntryTypeFound
	default:
		return false
	}
}

// Geo is a WGS84 coordinate pair.
type Geo struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// UnmarshalJSON rejects a geo object that lacks either coordinate.
func (g *Geo) UnmarshalJSON(data []byte) error {
	var raw struct {
		Lat *float64 `json:"lat"`
		Lon *float64 `json:"lon"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Lat == nil || raw.Lon == nil {
		return fmt.Errorf("%w: geo needs both lat and lon", ErrInvalidEntry)
	}
	g.Lat, g.Lon = *raw.Lat, *raw.Lon
	return nil
}

// Entry is a single lost or found document report.
type Entry struct {
	ID              string      `json:"id"`
	Type            EntryType   `json:"type"`
	Document        string      `json:"document"`
	Name            string      `json:"name,omitempty"`
	Location        string      `json:"location"`
	Geo             *Geo        `json:"geo,omitempty"`
	DateLost        string      `json:"date_lost,omitempty"`
	DateFound       string      `json:"date_found,omitempty"`
	OwnerID         string      `json:"owner_id"`
	OwnerEmail      string      `json:"owner_email,omitempty"`
	Status          EntryStatus `json:"status"`
	Contact         string      `json:"contact,omitempty"`
	Details         string      `json:"details,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	StatusUpdatedAt time.Time   `json:"status_updated_at,omitempty"`
}

// Date returns the date relevant to the entry's type.
func (e *Entry) Date() string {
	if e.Type == EntryTypeFound {
		return e.DateFound
	}
	return e.DateLost
}

// Validate checks the invariants an entry must satisfy before it is stored.
func (e *Entry) Validate() error {
	if !e.Type.IsValid() {
		return fmt.Errorf("%w: type must be Lost or Found", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.Document) == "" {
		return fmt.Errorf("%w: document is required", ErrInvalidEntry)
	}
	if strings.TrimSpace(e.Location) == "" {
		return fmt.Errorf("%w: location is required", ErrInvalidEntry)
	}
	if e.Status != "" && !e.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidEntry, e.Status)
	}
	switch e.Type {
	case EntryTypeLost:
		if e.DateLost == "" || e.DateFound != "" {
			return fmt.Errorf("%w: a lost entry needs date_lost and no date_found", ErrInvalidEntry)
		}
	case EntryTypeFound:
		if e.DateFound == "" || e.DateLost != "" {
			return fmt.Errorf("%w: a found entry needs date_found and no date_lost", ErrInvalidEntry)
		}
	}
	if e.Geo != nil {
		if e.Geo.Lat < -90 || e.Geo.Lat > 90 || e.Geo.Lon < -180 || e.Geo.Lon > 180 {
			return fmt.Errorf("%w: coordinates out of range", ErrInvalidEntry)
		}
	}
	return nil
}

// EntryStats holds summary counts over the entry collection.
type EntryStats struct {
	TotalEntries int64            `json:"total_entries"`
	ByType       map[string]int64 `json:"by_type"`
	ByStatus     map[string]int64 `json:"by_status"`
}
