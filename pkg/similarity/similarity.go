// Package similarity holds the pure comparison primitives used to score
// lost/found pairs: token-set similarity, great-circle distance and date
// proximity.
package similarity

import (
	"errors"
	"math"
	"strings"
	"time"
)

const (
	// EarthRadiusKm is the mean Earth radius used by DistanceKm.
	EarthRadiusKm = 6371.0

	// DefaultRecentWindowDays is the date window used by the scorer.
	DefaultRecentWindowDays = 14
)

// ErrUnparseableDate is returned by ParseDate when no layout matches.
var ErrUnparseableDate = errors.New("unparseable date")

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// tokenSet lower-cases s and splits it on whitespace into a set.
func tokenSet(s string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(s))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

// StringSimilarity returns the Jaccard coefficient of the whitespace token
// sets of a and b, in [0,1]. Word order and duplicate words are ignored.
// Empty input on either side yields 0.
func StringSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	setA := tokenSet(a)
	setB := tokenSet(b)

	intersection := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// DistanceKm returns the haversine distance between two coordinates.
func DistanceKm(lat1, lon1, lat2, lon2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusKm * c
}

// ParseDate parses a calendar date or timestamp. Plain dates are taken as
// midnight UTC.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, ErrUnparseableDate
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, ErrUnparseableDate
}

// DaysApart returns the absolute difference between a and b in days,
// rounding partial days up.
func DaysApart(a, b time.Time) int {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return int(math.Ceil(diff.Hours() / 24))
}

// IsRecentMatch reports whether two dates are at most windowDays apart.
// Either date failing to parse yields false.
func IsRecentMatch(dateA, dateB string, windowDays int) bool {
	a, err := ParseDate(dateA)
	if err != nil {
		return false
	}
	b, err := ParseDate(dateB)
	if err != nil {
		return false
	}
	return DaysApart(a, b) <= windowDays
}
