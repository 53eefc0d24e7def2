// Package doctype maps free-text document labels onto the closed set of
// document types used for matching.
package doctype

import (
	"context"
	"log/slog"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Canonical document types.
const (
	Aadhaar  = "Aadhaar"
	PAN      = "PAN"
	Voter    = "Voter"
	Driving  = "Driving"
	Passport = "Passport"
	Other    = "Other"
)

// Canonical lists every document type in priority order.
var Canonical = []string{Passport, Aadhaar, PAN, Voter, Driving, Other}

// IsCanonical reports whether s is already one of the canonical labels.
func IsCanonical(s string) bool {
	for _, c := range Canonical {
		if s == c {
			return true
		}
	}
	return false
}

// Normalizer maps a raw document label to a canonical one.
type Normalizer interface {
	Normalize(ctx context.Context, raw string) string
}

// keywords are matched as whole folded words or phrases.
var keywords = map[string][]string{
	Passport: {"passport"},
	Aadhaar:  {"aadhaar", "aadhar", "adhaar", "adhar", "uidai", "uid"},
	PAN:      {"pan", "permanent account number"},
	Voter:    {"voter", "voters", "epic", "election card", "electoral"},
	Driving:  {"driving", "driver", "drivers", "dl", "license", "licence"},
	Other:    {"other"},
}

// HeuristicNormalizer uses keyword rules.
type HeuristicNormalizer struct {
	logger *slog.Logger
}

// NewHeuristic creates a keyword-based normalizer.
func NewHeuristic(logger *slog.Logger) *HeuristicNormalizer {
	return &HeuristicNormalizer{logger: logger}
}

// Lookup returns the canonical label for raw and whether any rule matched.
func (h *HeuristicNormalizer) Lookup(raw string) (string, bool) {
	if IsCanonical(raw) {
		return raw, true
	}
	folded := " " + fold(raw) + " "
	if strings.TrimSpace(folded) == "" {
		return "", false
	}

	best, bestScore := "", 0
	for _, c := range Canonical {
		score := 0
		for _, kw := range keywords[c] {
			if strings.Contains(folded, " "+kw+" ") {
				score++
			}
		}
		if score > bestScore {
			best, bestScore = c, score
		}
	}

	if bestScore == 0 {
		return "", false
	}
	h.logger.Debug("normalized document type", "raw", raw, "type", best, "score", bestScore)
	return best, true
}

// Normalize returns the canonical label, or Other when nothing matches.
func (h *HeuristicNormalizer) Normalize(_ context.Context, raw string) string {
	if c, ok := h.Lookup(raw); ok {
		return c
	}
	return Other
}

// fold lower-cases s, strips diacritics and turns punctuation into spaces.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	stripped = strings.ToLower(stripped)
	stripped = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return ' '
	}, stripped)
	return strings.Join(strings.Fields(stripped), " ")
}
