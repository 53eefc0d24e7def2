package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/reclaim/internal/matcher"
	"github.com/ajitpratap0/reclaim/internal/models"
)

func matchCmd() *cobra.Command {
	var (
		view    string
		owner   string
		asJSON  bool
		limit   int
		minimum float64
	)

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Compute ranked candidate matches",
		Long: `Compute ranked lost/found candidate matches.

Views:
  global  every lost entry against every found entry (default without --owner)
  lost    the owner's lost entries against all found entries
  found   the owner's found entries against other users' lost entries

With --owner and no --view both owner views are merged.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := newApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("match: %w", err)
			}
			defer func() { _ = a.Close() }()

			var matches []models.Match
			switch {
			case view == "" && owner == "":
				matches, err = a.matching.Global(ctx)
			case view == "":
				matches, err = a.matching.ForOwner(ctx, owner)
			default:
				v, parseErr := matcher.ParseView(view)
				if parseErr != nil {
					return fmt.Errorf("match: %w", parseErr)
				}
				if v != matcher.ViewGlobal && owner == "" {
					return fmt.Errorf("match: --owner is required for the %s view", v)
				}
				matches, err = a.matching.View(ctx, v, owner)
			}
			if err != nil {
				return fmt.Errorf("match: computing matches: %w", err)
			}

			if minimum > 0 {
				kept := matches[:0]
				for i := range matches {
					if matches[i].Score >= minimum {
						kept = append(kept, matches[i])
					}
				}
				matches = kept
			}
			if limit > 0 && len(matches) > limit {
				matches = matches[:limit]
			}

			if asJSON {
				return printJSON(os.Stdout, matches)
			}
			if len(matches) == 0 {
				fmt.Println("No candidate matches.")
				return nil
			}
			for i := range matches {
				printMatch(i+1, &matches[i])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&view, "view", "", "global, lost or found")
	cmd.Flags().StringVar(&owner, "owner", "", "owner user id for the lost/found views")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print matches as JSON")
	cmd.Flags().IntVar(&limit, "limit", 0, "max matches to print (0 = all)")
	cmd.Flags().Float64Var(&minimum, "min-score", 0, "hide matches below this score")
	return cmd
}

func scoreCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "score [lost-id] [found-id]",
		Short: "Score one lost entry against one found entry",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := newApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("score: %w", err)
			}
			defer func() { _ = a.Close() }()

			m, err := a.matching.ScorePair(ctx, args[0], args[1])
			if err != nil {
				return fmt.Errorf("score: %w", err)
			}
			if asJSON {
				return printJSON(os.Stdout, m)
			}

			printMatch(1, m)
			if a.matching.Matcher().IsCandidate(m.Score) {
				fmt.Println("    candidate: yes")
			} else {
				fmt.Printf("    candidate: no (needs %.2f)\n", a.matching.Matcher().Thresholds().MinScore)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the match as JSON")
	return cmd
}

func printMatch(n int, m *models.Match) {
	fmt.Printf("[%d] %.2f  %s  (%s)\n", n, m.Score, m.ID, m.Status)
	fmt.Printf("    lost:  %-10s %s @ %s on %s (owner %s)\n",
		m.Lost.Document, truncate(m.Lost.Name, 40), truncate(m.Lost.Location, 40), m.Lost.DateLost, m.Lost.OwnerID)
	fmt.Printf("    found: %-10s %s @ %s on %s (owner %s)\n",
		m.Found.Document, truncate(m.Found.Name, 40), truncate(m.Found.Location, 40), m.Found.DateFound, m.Found.OwnerID)
	if len(m.Reasons) > 0 {
		fmt.Printf("    reasons: %s\n", strings.Join(m.Reasons, "; "))
	}
}
