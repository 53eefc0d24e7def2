package mcp_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/reclaim/internal/doctype"
	"github.com/ajitpratap0/reclaim/internal/events"
	"github.com/ajitpratap0/reclaim/internal/matcher"
	"github.com/ajitpratap0/reclaim/internal/matching"
	reclaimmcp "github.com/ajitpratap0/reclaim/internal/mcp"
	"github.com/ajitpratap0/reclaim/internal/models"
	"github.com/ajitpratap0/reclaim/internal/reports"
	"github.com/ajitpratap0/reclaim/internal/store"
)

// newMCPServer returns a Server over a MemoryStore seeded with one lost
// passport (alice) and one matching found passport (bob), plus an
// unrelated found PAN card (carol).
func newMCPServer(t *testing.T) *reclaimmcp.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	st := store.NewMemoryStore()
	bus := events.NewMemoryBus()
	rep := reports.NewService(st, doctype.NewHeuristic(logger), bus, logger)
	match := matching.NewService(st, matcher.Default(), bus, logger)

	_, err := rep.Import(context.Background(), []models.Entry{
		{ID: "l-alice", Type: models.EntryTypeLost, OwnerID: "alice", Document: "Passport", Name: "John Smith", Location: "Mumbai CST", DateLost: "2024-03-01"},
		{ID: "f-bob", Type: models.EntryTypeFound, OwnerID: "bob", Document: "passport", Name: "John Smith", Location: "Mumbai CST station", DateFound: "2024-03-03"},
		{ID: "f-carol", Type: models.EntryTypeFound, OwnerID: "carol", Document: "PAN card", Name: "Ravi Kumar", Location: "Chennai Central", DateFound: "2023-11-20"},
	})
	require.NoError(t, err)

	return reclaimmcp.NewServer(rep, match, logger)
}

// makeReq builds a CallToolRequest with the given arguments.
func makeReq(toolName string, args map[string]any) mcpgo.CallToolRequest {
	req := mcpgo.CallToolRequest{}
	req.Params.Name = toolName
	req.Params.Arguments = args
	return req
}

// textContent extracts the first TextContent string from a CallToolResult.
func textContent(t *testing.T, result *mcpgo.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content, "expected at least one content item")
	tc, ok := result.Content[0].(mcpgo.TextContent)
	require.True(t, ok, "expected TextContent, got %T", result.Content[0])
	return tc.Text
}

type matchesOut struct {
	Matches []models.Match `json:"matches"`
	Count   int            `json:"count"`
}

func TestMCPFindMatches_Global(t *testing.T) {
	srv := newMCPServer(t)

	result, err := srv.HandleFindMatches(context.Background(), makeReq("find_matches", nil))
	require.NoError(t, err)
	require.False(t, result.IsError, textContent(t, result))

	var out matchesOut
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &out))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "l-alice:f-bob", out.Matches[0].ID)
	assert.Equal(t, models.MatchPending, out.Matches[0].Status)
}

func TestMCPFindMatches_Owner(t *testing.T) {
	srv := newMCPServer(t)
	ctx := context.Background()

	tests := []struct {
		name  string
		args  map[string]any
		count int
	}{
		{"both views for bob", map[string]any{"owner_id": "bob"}, 1},
		{"bob found view", map[string]any{"owner_id": "bob", "view": "found"}, 1},
		{"bob lost view", map[string]any{"owner_id": "bob", "view": "lost"}, 0},
		{"carol has nothing", map[string]any{"owner_id": "carol"}, 0},
		{"global ignores owner", map[string]any{"owner_id": "carol", "view": "global"}, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := srv.HandleFindMatches(ctx, makeReq("find_matches", tc.args))
			require.NoError(t, err)
			require.False(t, result.IsError, textContent(t, result))

			var out matchesOut
			require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &out))
			assert.Equal(t, tc.count, out.Count)
		})
	}
}

func TestMCPFindMatches_BadArguments(t *testing.T) {
	srv := newMCPServer(t)
	ctx := context.Background()

	result, err := srv.HandleFindMatches(ctx, makeReq("find_matches", map[string]any{"view": "sideways"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)

	result, err = srv.HandleFindMatches(ctx, makeReq("find_matches", map[string]any{"view": "lost"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, textContent(t, result), "owner_id")
}

func TestMCPScorePair(t *testing.T) {
	srv := newMCPServer(t)
	ctx := context.Background()

	result, err := srv.HandleScorePair(ctx, makeReq("score_pair", map[string]any{"lost_id": "l-alice", "found_id": "f-bob"}))
	require.NoError(t, err)
	require.False(t, result.IsError, textContent(t, result))

	var out struct {
		Match     models.Match `json:"match"`
		Candidate bool         `json:"candidate"`
	}
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &out))
	assert.True(t, out.Candidate)
	assert.Contains(t, out.Match.Reasons, matcher.ReasonDocument)
	assert.Contains(t, out.Match.Reasons, matcher.ReasonName)

	result, err = srv.HandleScorePair(ctx, makeReq("score_pair", map[string]any{"lost_id": "l-alice", "found_id": "f-carol"}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &out))
	assert.False(t, out.Candidate)
}

func TestMCPScorePair_Errors(t *testing.T) {
	srv := newMCPServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		args map[string]any
	}{
		{"missing ids", map[string]any{"lost_id": "l-alice"}},
		{"unknown entry", map[string]any{"lost_id": "l-alice", "found_id": "nope"}},
		{"swapped sides", map[string]any{"lost_id": "f-bob", "found_id": "l-alice"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result, err := srv.HandleScorePair(ctx, makeReq("score_pair", tc.args))
			require.NoError(t, err)
			assert.True(t, result.IsError)
		})
	}
}

func TestMCPListEntries(t *testing.T) {
	srv := newMCPServer(t)
	ctx := context.Background()

	type listOut struct {
		Entries []models.Entry `json:"entries"`
		Count   int            `json:"count"`
		Total   int            `json:"total"`
	}

	result, err := srv.HandleListEntries(ctx, makeReq("list_entries", map[string]any{"type": "found"}))
	require.NoError(t, err)
	require.False(t, result.IsError, textContent(t, result))
	var out listOut
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &out))
	assert.Equal(t, 2, out.Count)

	result, err = srv.HandleListEntries(ctx, makeReq("list_entries", map[string]any{"q": "chennai"}))
	require.NoError(t, err)
	out = listOut{}
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &out))
	require.Equal(t, 1, out.Count)
	assert.Equal(t, "f-carol", out.Entries[0].ID)

	result, err = srv.HandleListEntries(ctx, makeReq("list_entries", map[string]any{"limit": 1}))
	require.NoError(t, err)
	out = listOut{}
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &out))
	assert.Equal(t, 1, out.Count)
	assert.Equal(t, 3, out.Total)

	result, err = srv.HandleListEntries(ctx, makeReq("list_entries", map[string]any{"type": "stolen"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestMCPStats(t *testing.T) {
	srv := newMCPServer(t)

	result, err := srv.HandleStats(context.Background(), makeReq("stats", nil))
	require.NoError(t, err)
	require.False(t, result.IsError, textContent(t, result))

	var out struct {
		Entries models.EntryStats `json:"entries"`
		Matches matching.Stats    `json:"matches"`
	}
	require.NoError(t, json.Unmarshal([]byte(textContent(t, result)), &out))
	assert.Equal(t, int64(3), out.Entries.TotalEntries)
	assert.Equal(t, int64(2), out.Entries.ByType["Found"])
	assert.Equal(t, 1, out.Matches.Candidates)
}

func TestMCPNilServices(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	srv := reclaimmcp.NewServer(nil, nil, logger)
	ctx := context.Background()

	for name, call := range map[string]func(context.Context, mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error){
		"find_matches": srv.HandleFindMatches,
		"score_pair":   srv.HandleScorePair,
		"list_entries": srv.HandleListEntries,
		"stats":        srv.HandleStats,
	} {
		result, err := call(ctx, makeReq(name, nil))
		require.NoError(t, err, name)
		assert.True(t, result.IsError, name)
	}
	assert.NotNil(t, srv.MCPServer())
}
