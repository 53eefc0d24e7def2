package metrics

import (
	"expvar"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIncAndAdd(t *testing.T) {
	before := MatchRuns.Value()
	Inc(MatchRuns)
	assert.Equal(t, before+1, MatchRuns.Value())

	before = CandidateMatches.Value()
	Add(CandidateMatches, 5)
	assert.Equal(t, before+5, CandidateMatches.Value())
}

func TestCountersArePublished(t *testing.T) {
	for _, name := range []string{
		"reclaim_entries_submitted_total",
		"reclaim_match_runs_total",
		"reclaim_lifecycle_pruned_total",
	} {
		assert.NotNil(t, expvar.Get(name), name)
	}
}
