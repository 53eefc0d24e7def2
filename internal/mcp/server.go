// Package mcp implements the Model Context Protocol server for reclaim.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/ajitpratap0/reclaim/internal/matcher"
	"github.com/ajitpratap0/reclaim/internal/matching"
	"github.com/ajitpratap0/reclaim/internal/models"
	"github.com/ajitpratap0/reclaim/internal/reports"
	"github.com/ajitpratap0/reclaim/internal/store"
)

// defaultListLimit caps list_entries output.
const defaultListLimit = 50

// Server wraps an MCPServer with reclaim dependencies. Tool calls run with
// operator rights; the stdio transport is only reachable locally.
type Server struct {
	mcp      *mcpserver.MCPServer
	reports  *reports.Service
	matching *matching.Service
	logger   *slog.Logger
}

// NewServer creates a new MCP server. If either service is nil the
// corresponding tool calls return an error result instead of panicking.
func NewServer(rep *reports.Service, match *matching.Service, logger *slog.Logger) *Server {
	s := &Server{
		reports:  rep,
		matching: match,
		logger:   logger,
	}

	mcpSrv := mcpserver.NewMCPServer(
		"reclaim",
		"1.0.0",
		mcpserver.WithToolCapabilities(true),
	)

	mcpSrv.AddTool(buildFindMatchesTool(), s.handleFindMatches)
	mcpSrv.AddTool(buildScorePairTool(), s.handleScorePair)
	mcpSrv.AddTool(buildListEntriesTool(), s.handleListEntries)
	mcpSrv.AddTool(buildStatsTool(), s.handleStats)

	s.mcp = mcpSrv
	return s
}

// MCPServer returns the underlying mcp-go MCPServer for use with ServeStdio.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcp
}

// HandleFindMatches is the exported handler for the "find_matches" tool.
// It is exposed for direct testing without the mcp-go transport layer.
func (s *Server) HandleFindMatches(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleFindMatches(ctx, req)
}

// HandleScorePair is the exported handler for the "score_pair" tool.
func (s *Server) HandleScorePair(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleScorePair(ctx, req)
}

// HandleListEntries is the exported handler for the "list_entries" tool.
func (s *Server) HandleListEntries(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleListEntries(ctx, req)
}

// HandleStats is the exported handler for the "stats" tool.
func (s *Server) HandleStats(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	return s.handleStats(ctx, req)
}

// --- helpers ---

// toolResultJSON marshals v to JSON and returns it as a tool text result.
func toolResultJSON(v any) (*mcpgo.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("mcp: marshaling result: %w", err)
	}
	return mcpgo.NewToolResultText(string(b)), nil
}

// --- tool definitions ---

func buildFindMatchesTool() mcpgo.Tool {
	return mcpgo.NewTool("find_matches",
		mcpgo.WithDescription("Compute candidate lost/found matches, ranked by score. Without owner_id the global view is returned."),
		mcpgo.WithString("owner_id",
			mcpgo.Description("Restrict matches to entries owned by this user"),
		),
		mcpgo.WithString("view",
			mcpgo.Description("global, lost (owner's lost entries vs all found) or found (owner's found entries vs all lost)"),
		),
	)
}

func buildScorePairTool() mcpgo.Tool {
	return mcpgo.NewTool("score_pair",
		mcpgo.WithDescription("Score one lost entry against one found entry and explain the score."),
		mcpgo.WithString("lost_id",
			mcpgo.Required(),
			mcpgo.Description("ID of the lost entry"),
		),
		mcpgo.WithString("found_id",
			mcpgo.Required(),
			mcpgo.Description("ID of the found entry"),
		),
	)
}

func buildListEntriesTool() mcpgo.Tool {
	return mcpgo.NewTool("list_entries",
		mcpgo.WithDescription("List lost and found entries, optionally filtered by type and free text."),
		mcpgo.WithString("type",
			mcpgo.Description("Lost or Found"),
		),
		mcpgo.WithString("q",
			mcpgo.Description("Case-insensitive text matched against document, name and location"),
		),
		mcpgo.WithNumber("limit",
			mcpgo.Description("Maximum number of entries (default: 50)"),
		),
	)
}

func buildStatsTool() mcpgo.Tool {
	return mcpgo.NewTool("stats",
		mcpgo.WithDescription("Get entry counts by type and status, and candidate match counts by review state."),
	)
}

// --- tool handlers ---

func (s *Server) handleFindMatches(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.matching == nil {
		return mcpgo.NewToolResultError("matching is unavailable"), nil
	}

	owner := strings.TrimSpace(req.GetString("owner_id", ""))
	rawView := strings.TrimSpace(req.GetString("view", ""))

	var (
		matches []models.Match
		err     error
	)
	switch {
	case owner == "" && rawView == "":
		matches, err = s.matching.Global(ctx)
	case rawView == "":
		matches, err = s.matching.ForOwner(ctx, owner)
	default:
		v, parseErr := matcher.ParseView(rawView)
		if parseErr != nil {
			return mcpgo.NewToolResultErrorf("invalid view %q: must be one of global, lost, found", rawView), nil
		}
		if v != matcher.ViewGlobal && owner == "" {
			return mcpgo.NewToolResultError("owner_id is required for the lost and found views"), nil
		}
		matches, err = s.matching.View(ctx, v, owner)
	}
	if err != nil {
		return mcpgo.NewToolResultErrorf("find matches failed: %s", err.Error()), nil
	}

	s.logger.Debug("mcp: find_matches", "owner", owner, "view", rawView, "count", len(matches))

	result := map[string]any{
		"matches": matches,
		"count":   len(matches),
	}
	return toolResultJSON(result)
}

func (s *Server) handleScorePair(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.matching == nil {
		return mcpgo.NewToolResultError("matching is unavailable"), nil
	}

	lostID := strings.TrimSpace(req.GetString("lost_id", ""))
	foundID := strings.TrimSpace(req.GetString("found_id", ""))
	if lostID == "" || foundID == "" {
		return mcpgo.NewToolResultError("lost_id and found_id are required"), nil
	}

	m, err := s.matching.ScorePair(ctx, lostID, foundID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return mcpgo.NewToolResultErrorf("entry not found: %s", err.Error()), nil
	case err != nil:
		return mcpgo.NewToolResultErrorf("score failed: %s", err.Error()), nil
	}

	result := map[string]any{
		"match":     m,
		"candidate": s.matching.Matcher().IsCandidate(m.Score),
	}
	return toolResultJSON(result)
}

func (s *Server) handleListEntries(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.reports == nil {
		return mcpgo.NewToolResultError("reports are unavailable"), nil
	}

	q := reports.Query{Text: req.GetString("q", "")}
	if t := req.GetString("type", ""); t != "" {
		et, err := models.ParseEntryType(t)
		if err != nil {
			return mcpgo.NewToolResultErrorf("invalid type %q: must be Lost or Found", t), nil
		}
		q.Type = &et
	}
	limit := req.GetInt("limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}

	// The stdio transport has no caller identity, so Mine is never set.
	entries, err := s.reports.List(ctx, models.Principal{}, q)
	if err != nil {
		return mcpgo.NewToolResultErrorf("list failed: %s", err.Error()), nil
	}
	total := len(entries)
	if len(entries) > limit {
		entries = entries[:limit]
	}

	result := map[string]any{
		"entries": entries,
		"count":   len(entries),
		"total":   total,
	}
	return toolResultJSON(result)
}

func (s *Server) handleStats(ctx context.Context, _ mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
	if s.reports == nil || s.matching == nil {
		return mcpgo.NewToolResultError("store is unavailable"), nil
	}

	entryStats, err := s.reports.Stats(ctx)
	if err != nil {
		return mcpgo.NewToolResultErrorf("stats failed: %s", err.Error()), nil
	}
	matches, err := s.matching.Global(ctx)
	if err != nil {
		return mcpgo.NewToolResultErrorf("stats failed: %s", err.Error()), nil
	}

	result := map[string]any{
		"entries": entryStats,
		"matches": matching.Summarize(matches),
	}
	return toolResultJSON(result)
}
