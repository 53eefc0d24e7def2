package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/reclaim/internal/matching"
)

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show entry and match statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := newApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("stats: %w", err)
			}
			defer func() { _ = a.Close() }()

			stats, err := a.reports.Stats(ctx)
			if err != nil {
				return fmt.Errorf("stats: fetching statistics: %w", err)
			}
			matches, err := a.matching.Global(ctx)
			if err != nil {
				return fmt.Errorf("stats: computing matches: %w", err)
			}
			ms := matching.Summarize(matches)

			fmt.Printf("Total entries: %d\n\n", stats.TotalEntries)

			fmt.Println("By type:")
			printCounts(stats.ByType)

			fmt.Println("\nBy status:")
			printCounts(stats.ByStatus)

			fmt.Println("\nCandidate matches:")
			fmt.Printf("  %-12s %d\n", "total", ms.Candidates)
			fmt.Printf("  %-12s %d\n", "pending", ms.Pending)
			fmt.Printf("  %-12s %d\n", "confirmed", ms.Confirmed)
			fmt.Printf("  %-12s %d\n", "rejected", ms.Rejected)
			fmt.Printf("  %-12s %d\n", "contacted", ms.Contacted)
			return nil
		},
	}
}

func printCounts(counts map[string]int64) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-12s %d\n", k, counts[k])
	}
}
