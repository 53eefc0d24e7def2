package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/reclaim/internal/models"
)

func importCmd() *cobra.Command {
	var (
		filePath string
		format   string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import entries from a JSON or JSONL file",
		Long: `Import entries from a JSON array file or JSONL (JSON Lines) file.

Entries keep their IDs and owners. Missing IDs, statuses and timestamps are
filled in, and document labels are normalized. The first invalid entry
aborts the import.

Use - as the file path to read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			var r io.Reader
			if filePath == "" || filePath == "-" {
				r = os.Stdin
			} else {
				f, openErr := os.Open(filePath)
				if openErr != nil {
					return fmt.Errorf("import: opening file: %w", openErr)
				}
				defer func() { _ = f.Close() }()
				r = f
			}

			entries, err := decodeEntries(r, format)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}

			a, err := newApp(ctx, logger)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			defer func() { _ = a.Close() }()
			a.warnEphemeral()

			n, err := a.reports.Import(ctx, entries)
			if err != nil {
				return fmt.Errorf("import: %w (%d imported before the failure)", err, n)
			}

			fmt.Printf("Imported %d entries\n", n)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "-", "path to input file (- for stdin)")
	cmd.Flags().StringVar(&format, "format", "json", "input format: json or jsonl")
	return cmd
}

func decodeEntries(r io.Reader, format string) ([]models.Entry, error) {
	var entries []models.Entry
	switch strings.ToLower(format) {
	case "json":
		if err := json.NewDecoder(r).Decode(&entries); err != nil {
			return nil, fmt.Errorf("decoding JSON: %w", err)
		}
	case "jsonl":
		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var e models.Entry
			if err := json.Unmarshal([]byte(line), &e); err != nil {
				return nil, fmt.Errorf("decoding JSONL line: %w", err)
			}
			entries = append(entries, e)
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading JSONL: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported format %q (use json or jsonl)", format)
	}
	return entries, nil
}
