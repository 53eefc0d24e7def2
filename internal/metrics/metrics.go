// Package metrics provides application-level counters using stdlib expvar.
// Counters are exported on the /debug/vars HTTP endpoint served by the API.
package metrics

import "expvar"

// Operation counters.
var (
	EntriesSubmitted = expvar.NewInt("reclaim_entries_submitted_total")
	EntriesDeleted   = expvar.NewInt("reclaim_entries_deleted_total")
	StatusChanges    = expvar.NewInt("reclaim_status_changes_total")
	MatchRuns        = expvar.NewInt("reclaim_match_runs_total")
	CandidateMatches = expvar.NewInt("reclaim_candidate_matches_total")
	Reviews          = expvar.NewInt("reclaim_reviews_total")
	Contacts         = expvar.NewInt("reclaim_contacts_total")
	WatchRecomputes  = expvar.NewInt("reclaim_watch_recomputes_total")
	GraphSyncs       = expvar.NewInt("reclaim_graph_syncs_total")
	LifecycleClosed  = expvar.NewInt("reclaim_lifecycle_closed_total")
	LifecyclePruned  = expvar.NewInt("reclaim_lifecycle_pruned_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }

// Add increments the given counter by n.
func Add(counter *expvar.Int, n int) { counter.Add(int64(n)) }
