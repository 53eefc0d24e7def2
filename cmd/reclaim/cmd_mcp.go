package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	reclaimmcp "github.com/ajitpratap0/reclaim/internal/mcp"
)

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP (Model Context Protocol) server over stdio",
		Long: `Starts an MCP JSON-RPC 2.0 server that reads from stdin and writes to stdout.
All diagnostic logs go to stderr so that stdout remains exclusively MCP protocol traffic.

Tools exposed:
  find_matches  ranked candidate matches (global, or per owner)
  score_pair    score and explain one lost/found pair
  list_entries  list entries filtered by type and text
  stats         entry and match counts

If the store is unavailable at startup the server still starts;
individual tool calls will return MCP error responses.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := newLogger()

			var srv *reclaimmcp.Server
			a, err := newApp(cmd.Context(), logger)
			if err != nil {
				// Tool calls will return per-call errors rather than crashing.
				logger.Error("mcp: failed to connect to store; tool calls will fail", "error", err)
				srv = reclaimmcp.NewServer(nil, nil, logger)
			} else {
				defer func() { _ = a.Close() }()
				srv = reclaimmcp.NewServer(a.reports, a.matching, logger)
			}

			// Use a standard log.Logger pointing at stderr for the mcp-go error logger.
			errLogger := log.New(os.Stderr, "mcp: ", log.LstdFlags)

			logger.Info("mcp: reclaim MCP server starting", "transport", "stdio")

			return mcpserver.ServeStdio(
				srv.MCPServer(),
				mcpserver.WithErrorLogger(errLogger),
			)
		},
	}

	return cmd
}
