package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/reclaim/internal/models"
)

func reviewCmd() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "review [lost-id] [found-id] [confirm|reject]",
		Short: "Confirm or reject a candidate match",
		Long: `Record an admin decision on a candidate match.

Confirmed and Rejected are final. The pair must currently score as a
candidate.`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			var status models.MatchStatus
			switch strings.ToLower(args[2]) {
			case "confirm", "confirmed":
				status = models.MatchConfirmed
			case "reject", "rejected":
				status = models.MatchRejected
			default:
				return fmt.Errorf("review: decision must be confirm or reject, got %q", args[2])
			}

			a, err := newApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("review: %w", err)
			}
			defer func() { _ = a.Close() }()
			a.warnEphemeral()

			r, err := a.matching.Review(ctx, operator, args[0], args[1], status, note)
			if err != nil {
				return fmt.Errorf("review: %w", err)
			}
			fmt.Printf("Match %s marked %s\n", r.Key(), r.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "reviewer note")
	return cmd
}
