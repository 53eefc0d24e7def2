// Package graph projects candidate matches into Neo4j as
// (:Entry)-[:CANDIDATE_MATCH]->(:Entry) so they can be explored with Cypher.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ajitpratap0/reclaim/internal/models"
)

const neo4jTimeout = 10 * time.Second

// Projector mirrors the current candidate set somewhere outside the store.
type Projector interface {
	// Sync replaces the projected candidate set with matches.
	Sync(ctx context.Context, matches []models.Match) error
	Close(ctx context.Context) error
}

// Nop discards projections.
type Nop struct{}

func (Nop) Sync(context.Context, []models.Match) error { return nil }
func (Nop) Close(context.Context) error                { return nil }

// Neo4jProjector writes matches to Neo4j.
type Neo4jProjector struct {
	driver     neo4j.DriverWithContext
	database   string
	logger     *slog.Logger
	schemaOnce sync.Once
}

// NewNeo4jProjector connects to uri and verifies connectivity.
func NewNeo4jProjector(uri, user, password, database string, logger *slog.Logger) (*Neo4jProjector, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return nil, fmt.Errorf("neo4j uri is required")
	}
	if user == "" {
		user = "neo4j"
	}

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""), func(cfg *neo4j.Config) {
		cfg.SocketConnectTimeout = neo4jTimeout
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j driver: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), neo4jTimeout)
	defer cancel()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j verify connectivity: %w", err)
	}

	logger.Info("connected to neo4j", "uri", uri, "database", database)
	return &Neo4jProjector{driver: driver, database: database, logger: logger}, nil
}

var schemaStatements = []string{
	`CREATE CONSTRAINT entry_id_unique IF NOT EXISTS FOR (e:Entry) REQUIRE e.id IS UNIQUE`,
}

const upsertEntriesCypher = `
UNWIND $entries AS n
MERGE (e:Entry {id: n.id})
SET e += n
`

const upsertMatchesCypher = `
UNWIND $matches AS r
MATCH (l:Entry {id: r.lost_id})
MATCH (f:Entry {id: r.found_id})
MERGE (l)-[m:CANDIDATE_MATCH]->(f)
SET m.id = r.id,
    m.score = r.score,
    m.reasons = r.reasons,
    m.status = r.status,
    m.sync_id = r.sync_id,
    m.synced_at = r.synced_at
`

const pruneMatchesCypher = `
MATCH ()-[m:CANDIDATE_MATCH]->()
WHERE m.sync_id <> $sync_id
DELETE m
`

// Entries that no current match references are removed, including nodes
// written before entries carried a sync_id.
const pruneEntriesCypher = `
MATCH (e:Entry)
WHERE e.sync_id IS NULL OR e.sync_id <> $sync_id
DETACH DELETE e
`

type syncStep struct {
	cypher string
	params map[string]any
	skip   bool
}

// syncSteps lists the statements of one sync transaction in order. The
// prunes always run so an empty candidate set clears the projection.
func syncSteps(p payload) []syncStep {
	return []syncStep{
		{upsertEntriesCypher, map[string]any{"entries": p.Entries}, len(p.Entries) == 0},
		{upsertMatchesCypher, map[string]any{"matches": p.Matches}, len(p.Matches) == 0},
		{pruneMatchesCypher, map[string]any{"sync_id": p.SyncID}, false},
		{pruneEntriesCypher, map[string]any{"sync_id": p.SyncID}, false},
	}
}

// Sync upserts every entry referenced by matches and the candidate edges
// between them, then removes edges and entries left over from earlier syncs.
func (p *Neo4jProjector) Sync(ctx context.Context, matches []models.Match) error {
	payload := buildPayload(matches, uuid.NewString(), time.Now().UTC())

	session := p.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: p.database,
	})
	defer func() { _ = session.Close(ctx) }()

	p.schemaOnce.Do(func() {
		for _, q := range schemaStatements {
			if res, err := session.Run(ctx, q, nil); err != nil {
				p.logger.Warn("neo4j schema init failed (continuing)", "error", err)
			} else {
				_, _ = res.Consume(ctx)
			}
		}
	})

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, s := range syncSteps(payload) {
			if s.skip {
				continue
			}
			res, err := tx.Run(ctx, s.cypher, s.params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j sync: %w", err)
	}

	p.logger.Debug("projected matches", "entries", len(payload.Entries), "matches", len(payload.Matches))
	return nil
}

// Close closes the driver.
func (p *Neo4jProjector) Close(ctx context.Context) error {
	return p.driver.Close(ctx)
}

type payload struct {
	SyncID  string
	Entries []map[string]any
	Matches []map[string]any
}

// buildPayload flattens matches into UNWIND parameter lists. Each entry
// appears once even if it takes part in several matches.
func buildPayload(matches []models.Match, syncID string, now time.Time) payload {
	stamp := now.Format(time.RFC3339Nano)
	p := payload{
		SyncID:  syncID,
		Entries: make([]map[string]any, 0, len(matches)*2),
		Matches: make([]map[string]any, 0, len(matches)),
	}
	seen := make(map[string]bool, len(matches)*2)

	addEntry := func(e *models.Entry) {
		if e.ID == "" || seen[e.ID] {
			return
		}
		seen[e.ID] = true
		rec := map[string]any{
			"id":        e.ID,
			"type":      string(e.Type),
			"document":  e.Document,
			"name":      e.Name,
			"location":  e.Location,
			"date":      e.Date(),
			"owner_id":  e.OwnerID,
			"status":    string(e.Status),
			"sync_id":   syncID,
			"synced_at": stamp,
		}
		if e.Geo != nil {
			rec["lat"] = e.Geo.Lat
			rec["lon"] = e.Geo.Lon
		}
		p.Entries = append(p.Entries, rec)
	}

	for i := range matches {
		m := &matches[i]
		addEntry(&m.Lost)
		addEntry(&m.Found)
		if m.Lost.ID == "" || m.Found.ID == "" {
			continue
		}
		reasons := make([]string, len(m.Reasons))
		copy(reasons, m.Reasons)
		status := m.Status
		if status == "" {
			status = models.MatchPending
		}
		p.Matches = append(p.Matches, map[string]any{
			"id":        models.MatchID(m.Lost.ID, m.Found.ID),
			"lost_id":   m.Lost.ID,
			"found_id":  m.Found.ID,
			"score":     m.Score,
			"reasons":   reasons,
			"status":    string(status),
			"sync_id":   syncID,
			"synced_at": stamp,
		})
	}
	return p
}
