package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/reclaim/internal/models"
	"github.com/ajitpratap0/reclaim/internal/store"
)

const exportPageSize = 500

func exportCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all entries to JSON or CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			a, err := newApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			defer func() { _ = a.Close() }()

			var all []models.Entry
			cursor := ""
			for {
				page, next, listErr := a.store.List(ctx, &store.Filters{}, exportPageSize, cursor)
				if listErr != nil {
					return fmt.Errorf("export: listing entries: %w", listErr)
				}
				all = append(all, page...)
				if next == "" {
					break
				}
				cursor = next
			}

			var w *os.File
			if output == "" || output == "-" {
				w = os.Stdout
			} else {
				w, err = os.Create(output)
				if err != nil {
					return fmt.Errorf("export: creating output file: %w", err)
				}
				defer func() { _ = w.Close() }()
			}

			switch format {
			case "json":
				if all == nil {
					all = []models.Entry{}
				}
				if encErr := printJSON(w, all); encErr != nil {
					return fmt.Errorf("export: encoding JSON: %w", encErr)
				}
			case "csv":
				if csvErr := writeCSV(w, all); csvErr != nil {
					return fmt.Errorf("export: %w", csvErr)
				}
			default:
				return fmt.Errorf("export: unsupported format %q (use json or csv)", format)
			}

			if output != "" && output != "-" {
				fmt.Fprintf(os.Stderr, "Exported %d entries to %s\n", len(all), output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "output format: json or csv")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file path (- for stdout)")
	return cmd
}

func writeCSV(w *os.File, entries []models.Entry) error {
	cw := csv.NewWriter(w)
	headers := []string{"id", "type", "status", "document", "name", "location", "lat", "lon", "date", "owner_id", "created_at"}
	if err := cw.Write(headers); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for i := range entries {
		e := &entries[i]
		var lat, lon string
		if e.Geo != nil {
			lat = strconv.FormatFloat(e.Geo.Lat, 'f', 6, 64)
			lon = strconv.FormatFloat(e.Geo.Lon, 'f', 6, 64)
		}
		row := []string{
			e.ID,
			string(e.Type),
			string(e.Status),
			e.Document,
			e.Name,
			e.Location,
			lat,
			lon,
			e.Date(),
			e.OwnerID,
			e.CreatedAt.Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing CSV: %w", err)
	}
	return nil
}
