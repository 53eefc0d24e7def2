package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/reclaim/internal/watch"
)

func watchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Recompute matches on every change until interrupted",
		Long: `Subscribe to the change bus and recompute the global match view after
every burst of changes, projecting the result into Neo4j when enabled.

Run it against redis.enabled so it sees changes made by other processes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := newApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("watch: %w", err)
			}
			defer func() { _ = a.Close() }()

			if !cfg.Redis.Enabled {
				logger.Warn("watch: redis is disabled; only changes made by this process will be seen")
			}

			projector, err := newProjector(logger)
			if err != nil {
				return fmt.Errorf("watch: connecting to graph: %w", err)
			}
			defer func() { _ = projector.Close(context.Background()) }()

			w := watch.New(a.bus, a.matching, projector, cfg.Watch.Debounce, logger)
			logger.Info("watching for changes", "debounce", cfg.Watch.Debounce)
			return w.Run(ctx)
		},
	}
}

func graphSyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "graph-sync",
		Short: "Recompute matches once and project them into Neo4j",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			if !cfg.Neo4j.Enabled {
				return fmt.Errorf("graph-sync: neo4j is disabled; set neo4j.enabled (RECLAIM_NEO4J_ENABLED)")
			}

			a, err := newApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("graph-sync: %w", err)
			}
			defer func() { _ = a.Close() }()

			projector, err := newProjector(logger)
			if err != nil {
				return fmt.Errorf("graph-sync: connecting to graph: %w", err)
			}
			defer func() { _ = projector.Close(context.Background()) }()

			matches, err := watch.New(a.bus, a.matching, projector, cfg.Watch.Debounce, logger).Recompute(ctx)
			if err != nil {
				return fmt.Errorf("graph-sync: %w", err)
			}
			fmt.Printf("Projected %d candidate matches\n", len(matches))
			return nil
		},
	}
}
