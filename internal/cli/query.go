package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/woxQAQ/zipdb/internal/app"
	"github.com/woxQAQ/zipdb/pkg/protocol"
)

func newQueryCommand(s *rootState) *cobra.Command {
	var (
		asJSON bool
		empty  bool
		all    bool
		sets   []string
	)

	cmd := &cobra.Command{
		Use:   "query ZIP...",
		Short: "Look up populations for zip codes",
		Long: `Look up one or more zip codes in a freshly loaded database.
Zips that are not present report a population of 0.

--set ZIP=N stores a population before the lookups run, replacing the
dataset's value. --all lists every record instead of looking up zips.`,
		Example: `  zipdb query 10186 10852
  zipdb query --json 00042
  zipdb query --empty 10186
  zipdb query --set 10186=7 10186
  zipdb query --all --empty --set 00501=12`,
		Args: func(cmd *cobra.Command, args []string) error {
			if !all && len(args) == 0 {
				return errors.New("requires at least 1 zip code, or --all")
			}
			if all && len(args) > 0 {
				return errors.New("--all takes no zip codes")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseOverrides(sets)
			if err != nil {
				return err
			}
			opts := app.QueryOptions{Insert: !empty, Overrides: overrides}

			return s.withApp(cmd, func(_ context.Context, a *app.App) error {
				if all {
					records, err := a.Records(opts)
					if err != nil {
						return err
					}
					if asJSON {
						return renderJSON(cmd.OutOrStdout(), records)
					}
					renderRecordTable(cmd.OutOrStdout(), records)
					return nil
				}

				results, err := a.Query(args, opts)
				if err != nil {
					return err
				}
				if asJSON {
					return renderJSON(cmd.OutOrStdout(), results)
				}
				renderQueryTable(cmd.OutOrStdout(), results)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&empty, "empty", false, "Skip loading the dataset")
	cmd.Flags().BoolVar(&all, "all", false, "List every record instead of looking up zips")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Store a population before querying (ZIP=N, repeatable)")

	return cmd
}

// parseOverrides parses ZIP=N pairs. The app validates the zips.
func parseOverrides(sets []string) ([]protocol.Record, error) {
	records := make([]protocol.Record, 0, len(sets))
	for _, set := range sets {
		zip, value, ok := strings.Cut(set, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q: want ZIP=N", set)
		}
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid --set %q: %w", set, err)
		}
		records = append(records, protocol.Record{Zip: zip, Population: protocol.Population(n)})
	}
	return records, nil
}

func renderJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	style := table.StyleLight
	style.Format.Footer = text.FormatDefault
	t.SetStyle(style)
	return t
}

func renderQueryTable(w io.Writer, results []protocol.QueryResult) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ZIP", "POPULATION", "FOUND"})
	for _, r := range results {
		t.AppendRow(table.Row{r.Zip, r.Population, r.Found})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d rows", len(results))})
	t.Render()
}

func renderRecordTable(w io.Writer, records []protocol.Record) {
	t := newTable(w)
	t.AppendHeader(table.Row{"ZIP", "POPULATION"})
	for _, r := range records {
		t.AppendRow(table.Row{r.Zip, r.Population})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d rows", len(records))})
	t.Render()
}
