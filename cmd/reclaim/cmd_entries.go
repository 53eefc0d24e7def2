package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/reclaim/internal/models"
	"github.com/ajitpratap0/reclaim/internal/reports"
)

func submitCmd() *cobra.Command {
	var (
		entryType string
		e         models.Entry
		date      string
		lat, lon  float64
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a lost or found report",
		Example: `  reclaim submit --type lost --owner alice --document passport \
    --name "John Smith" --location "Mumbai CST" --date 2024-03-01 --lat 18.94 --lon 72.835`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			et, err := models.ParseEntryType(entryType)
			if err != nil {
				return fmt.Errorf("submit: %w", err)
			}
			e.Type = et
			if et == models.EntryTypeLost {
				e.DateLost = date
			} else {
				e.DateFound = date
			}
			switch latSet, lonSet := cmd.Flags().Changed("lat"), cmd.Flags().Changed("lon"); {
			case latSet && lonSet:
				e.Geo = &models.Geo{Lat: lat, Lon: lon}
			case latSet || lonSet:
				return fmt.Errorf("submit: --lat and --lon must be given together")
			}

			a, err := newApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("submit: %w", err)
			}
			defer func() { _ = a.Close() }()
			a.warnEphemeral()

			p := models.Principal{UserID: e.OwnerID, Email: e.OwnerEmail, Role: models.RoleUser}
			stored, err := a.reports.Submit(ctx, p, e)
			if err != nil {
				return fmt.Errorf("submit: %w", err)
			}

			fmt.Printf("Submitted %s entry %s (document: %s)\n", stored.Type, stored.ID, stored.Document)
			return nil
		},
	}

	cmd.Flags().StringVar(&entryType, "type", "", "lost or found (required)")
	cmd.Flags().StringVar(&e.OwnerID, "owner", "", "owner user id (required)")
	cmd.Flags().StringVar(&e.OwnerEmail, "email", "", "owner email")
	cmd.Flags().StringVar(&e.Document, "document", "", "document type, e.g. passport, PAN card (required)")
	cmd.Flags().StringVar(&e.Name, "name", "", "name printed on the document")
	cmd.Flags().StringVar(&e.Location, "location", "", "where it was lost or found (required)")
	cmd.Flags().StringVar(&date, "date", "", "date lost or found, YYYY-MM-DD (required)")
	cmd.Flags().Float64Var(&lat, "lat", 0, "latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "longitude")
	cmd.Flags().StringVar(&e.Contact, "contact", "", "contact details shown to matched users")
	cmd.Flags().StringVar(&e.Details, "details", "", "free-text details")
	_ = cmd.MarkFlagRequired("type")
	_ = cmd.MarkFlagRequired("owner")
	_ = cmd.MarkFlagRequired("document")
	_ = cmd.MarkFlagRequired("location")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func listCmd() *cobra.Command {
	var (
		entryType string
		status    string
		query     string
		owner     string
		limit     int
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			q := reports.Query{Text: query}
			if entryType != "" {
				et, err := models.ParseEntryType(entryType)
				if err != nil {
					return fmt.Errorf("list: %w", err)
				}
				q.Type = &et
			}
			if status != "" {
				st, err := models.ParseEntryStatus(status)
				if err != nil {
					return fmt.Errorf("list: %w", err)
				}
				q.Status = &st
			}
			p := operator
			if owner != "" {
				p = models.Principal{UserID: owner, Role: models.RoleUser}
				q.Mine = true
			}

			a, err := newApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("list: %w", err)
			}
			defer func() { _ = a.Close() }()

			entries, err := a.reports.List(ctx, p, q)
			if err != nil {
				return fmt.Errorf("list: fetching entries: %w", err)
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}

			if asJSON {
				return printJSON(os.Stdout, entries)
			}
			for i := range entries {
				e := &entries[i]
				fmt.Printf("[%d] [%s/%s] %s %s @ %s on %s\n", i+1, e.Type, e.Status, e.Document, truncate(e.Name, 40), truncate(e.Location, 60), e.Date())
				fmt.Printf("    ID: %s | Owner: %s\n", e.ID, e.OwnerID)
			}
			if len(entries) == 0 {
				fmt.Println("No entries found.")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&entryType, "type", "", "filter by type (lost or found)")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive text over document, name and location")
	cmd.Flags().StringVar(&owner, "owner", "", "only entries owned by this user id")
	cmd.Flags().IntVar(&limit, "limit", 50, "max results (0 = all)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print entries as JSON")
	return cmd
}

func getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [entry-id]",
		Short: "Print a single entry as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := newApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			defer func() { _ = a.Close() }()

			e, err := a.reports.Get(ctx, args[0])
			if err != nil {
				return fmt.Errorf("get: %w", err)
			}
			return printJSON(os.Stdout, e)
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [entry-id] [Found|Returned|Closed]",
		Short: "Move an entry along the status workflow",
		Long: `Move an entry along the status workflow.

A lost entry can be marked Found, a found entry can be marked Returned, and
any entry that is not yet Closed can be Closed.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			next, err := models.ParseEntryStatus(args[1])
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}

			a, err := newApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			defer func() { _ = a.Close() }()
			a.warnEphemeral()

			e, err := a.reports.UpdateStatus(ctx, operator, args[0], next)
			if err != nil {
				return fmt.Errorf("status: %w", err)
			}
			fmt.Printf("Entry %s is now %s\n", e.ID, e.Status)
			return nil
		},
	}
}

func deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [entry-id]",
		Short: "Delete an entry by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := newApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			defer func() { _ = a.Close() }()
			a.warnEphemeral()

			if err := a.reports.Delete(ctx, operator, args[0]); err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			fmt.Printf("Deleted entry %s\n", args[0])
			return nil
		},
	}
}
