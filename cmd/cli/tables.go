package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/aryan0dhankhar/estatebooks/internal/client"
	"github.com/aryan0dhankhar/estatebooks/internal/grid"
)

func newTablesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Browse and edit bookkeeping tables",
	}
	cmd.AddCommand(newTablesListCmd(a), newTablesShowCmd(a), newTablesEditCmd(a))
	return cmd
}

func newTablesListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the tables of the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tables, err := a.client.Tables(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTITLE\tEDITABLE")
			for _, t := range tables {
				fmt.Fprintf(w, "%s\t%s\t%s\n", t.Name, t.Title, strings.Join(t.Editable, ","))
			}
			return w.Flush()
		},
	}
}

type showOptions struct {
	sort     string
	desc     bool
	query    string
	filters  []string
	page     int
	pageSize int
}

func (o showOptions) state() (grid.State, error) {
	s := grid.State{
		SortKey:      o.sort,
		SortDesc:     o.desc,
		GlobalFilter: o.query,
		PageSize:     o.pageSize,
	}
	if o.page > 1 {
		s.PageIndex = o.page - 1
	}
	for _, f := range o.filters {
		col, values, ok := strings.Cut(f, "=")
		if !ok || col == "" {
			return grid.State{}, fmt.Errorf("invalid filter %q, want column=value[,value]", f)
		}
		if s.ColumnFilters == nil {
			s.ColumnFilters = map[string][]string{}
		}
		for _, v := range strings.Split(values, ",") {
			if v = strings.TrimSpace(v); v != "" {
				s.ColumnFilters[col] = append(s.ColumnFilters[col], v)
			}
		}
	}
	return s, nil
}

func newTablesShowCmd(a *app) *cobra.Command {
	var opts showOptions

	cmd := &cobra.Command{
		Use:   "show <table>",
		Short: "Show one page of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			state, err := opts.state()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if _, _, err := a.tenantSession(ctx); err != nil {
				return err
			}
			view, err := a.client.View(ctx, args[0], state)
			if err != nil {
				return err
			}
			return printView(a.out, view)
		},
	}

	cmd.Flags().StringVar(&opts.sort, "sort", "", "column to sort by")
	cmd.Flags().BoolVar(&opts.desc, "desc", false, "sort descending")
	cmd.Flags().StringVarP(&opts.query, "query", "q", "", "search across all columns")
	cmd.Flags().StringArrayVarP(&opts.filters, "filter", "f", nil, "column filter, column=value[,value]")
	cmd.Flags().IntVar(&opts.page, "page", 1, "page number")
	cmd.Flags().IntVar(&opts.pageSize, "page-size", 0, "rows per page (server default when 0)")
	return cmd
}

func printView(out io.Writer, view grid.View) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	headers := make([]string, 0, len(view.Columns)+1)
	headers = append(headers, "ID")
	for _, col := range view.Columns {
		headers = append(headers, strings.ToUpper(col.Label))
	}
	fmt.Fprintln(w, strings.Join(headers, "\t"))
	for _, row := range view.Rows {
		cells := make([]string, 0, len(row.Cells)+1)
		cells = append(cells, row.ID)
		for _, c := range row.Cells {
			cells = append(cells, c.Display)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(out, "page %d/%d, %d of %d rows\n",
		view.PageIndex+1, max(view.PageCount, 1), view.FilteredRows, view.TotalRows)
	return nil
}

func newTablesEditCmd(a *app) *cobra.Command {
	var null, raw bool

	cmd := &cobra.Command{
		Use:   "edit <table> <id> <field> [value]",
		Short: "Change one cell",
		Long: "Change one cell. The new value shows immediately and is rolled back " +
			"when the server rejects it. Use --null to clear a cell and --json to " +
			"send a JSON value such as a partner selection object.",
		Args: cobra.RangeArgs(3, 4),
		RunE: func(cmd *cobra.Command, args []string) error {
			var value any
			switch {
			case null:
			case len(args) < 4:
				return errors.New("value is required unless --null is set")
			case raw:
				if err := json.Unmarshal([]byte(args[3]), &value); err != nil {
					return fmt.Errorf("invalid JSON value: %w", err)
				}
			default:
				value = args[3]
			}

			ctx := cmd.Context()
			if _, _, err := a.tenantSession(ctx); err != nil {
				return err
			}
			res, err := runEdit(ctx, a.client, args[0], args[1], args[2], value)
			if err != nil {
				return err
			}
			return printEdit(a.out, res)
		},
	}

	cmd.Flags().BoolVar(&null, "null", false, "clear the cell")
	cmd.Flags().BoolVar(&raw, "json", false, "parse value as JSON")
	return cmd
}

// editResult is what a cell edit ended with
type editResult struct {
	Outcome grid.Outcome
	// Value is the cell after the table was refetched
	Value any
	// Reconciled counts pending edits the refetch settled
	Reconciled int
}

// runEdit loads the table into a grid, commits the edit optimistically
// through the update endpoint and reconciles against a fresh fetch.
func runEdit(ctx context.Context, c *client.Client, table, id, field string, value any) (editResult, error) {
	data, err := c.Rows(ctx, table)
	if err != nil {
		return editResult{}, err
	}
	g, err := grid.New(data.Columns, grid.DefaultConfig())
	if err != nil {
		return editResult{}, err
	}
	g.SetRows(data.Rows)
	if _, ok := g.Value(id, field); !ok {
		return editResult{}, fmt.Errorf("no row %q in %s", id, table)
	}

	save := func(ctx context.Context, rowID, key string, v any) (any, error) {
		row, err := c.Update(ctx, table, rowID, key, v)
		if err != nil {
			return nil, err
		}
		return row[key], nil
	}

	res := editResult{Outcome: g.Commit(ctx, id, field, value, save)}
	if res.Outcome.Status == grid.StatusSaved {
		fresh, err := c.Rows(ctx, table)
		if err != nil {
			return res, fmt.Errorf("refresh %s: %w", table, err)
		}
		res.Reconciled = g.SetRows(fresh.Rows)
	}
	res.Value, _ = g.Value(id, field)
	return res, nil
}

func printEdit(out io.Writer, res editResult) error {
	switch res.Outcome.Status {
	case grid.StatusSaved:
		fmt.Fprintf(out, "✓ Saved: %s\n", grid.Stringify(res.Value))
	case grid.StatusNoOp:
		fmt.Fprintf(out, "Unchanged: %s\n", grid.Stringify(res.Value))
	case grid.StatusRolledBack:
		fmt.Fprintf(out, "✗ Rolled back to: %s\n", grid.Stringify(res.Value))
		return res.Outcome.Err
	default:
		return res.Outcome.Err
	}
	return nil
}
