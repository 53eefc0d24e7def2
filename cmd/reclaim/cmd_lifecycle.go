package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/reclaim/internal/lifecycle"
)

func sweepCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Close stale open entries and prune orphaned reviews",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := newApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			defer func() { _ = a.Close() }()
			if !dryRun {
				a.warnEphemeral()
			}

			lm := lifecycle.NewManager(a.store, a.bus, cfg.Lifecycle.StaleAfter(), logger)
			report, err := lm.Run(ctx, dryRun)
			if report != nil {
				fmt.Printf("Lifecycle report:\n")
				fmt.Printf("  Closed (stale after %dd): %d\n", cfg.Lifecycle.StaleAfterDays, len(report.Closed))
				fmt.Printf("  Reviews pruned:          %d\n", len(report.Pruned))
				if dryRun {
					fmt.Println("  (dry run: no changes applied)")
				}
			}
			if err != nil {
				return fmt.Errorf("sweep: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview changes without applying")
	return cmd
}
