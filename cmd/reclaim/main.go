package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/reclaim/internal/config"
	"github.com/ajitpratap0/reclaim/internal/models"
)

var cfg *config.Config

// operator is the principal CLI commands act as. The CLI talks to the
// store directly, so it is trusted like an admin.
var operator = models.Principal{UserID: "cli", Role: models.RoleAdmin}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "reclaim",
		Short: "reclaim - lost and found document matching",
		Long:  "Reclaim stores lost and found document reports and ranks likely lost/found pairs by document type, name, location, distance and date.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		mcpCmd(),
		matchCmd(),
		scoreCmd(),
		submitCmd(),
		listCmd(),
		getCmd(),
		statusCmd(),
		deleteCmd(),
		reviewCmd(),
		importCmd(),
		exportCmd(),
		statsCmd(),
		healthCmd(),
		sweepCmd(),
		watchCmd(),
		graphSyncCmd(),
		tokenCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		switch strings.ToLower(cfg.Logging.Level) {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return s
}
