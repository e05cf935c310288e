package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/aryan0dhankhar/estatebooks/internal/catalog"
	"github.com/aryan0dhankhar/estatebooks/internal/grid"
	"github.com/aryan0dhankhar/estatebooks/internal/rent"
	"github.com/aryan0dhankhar/estatebooks/internal/summary"
)

func newOptionsCmd(a *app) *cobra.Command {
	kinds := make([]string, 0, len(catalog.OptionKinds))
	for _, k := range catalog.OptionKinds {
		kinds = append(kinds, string(k))
	}

	return &cobra.Command{
		Use:       "options <kind>",
		Short:     "List dropdown options (" + strings.Join(kinds, ", ") + ")",
		Args:      cobra.ExactArgs(1),
		ValidArgs: kinds,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := catalog.OptionKind(args[0])
			if !kind.Valid() {
				return fmt.Errorf("unknown option kind %q", args[0])
			}
			ctx := cmd.Context()
			if _, _, err := a.tenantSession(ctx); err != nil {
				return err
			}
			opts, err := a.client.Options(ctx, kind)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(a.out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "VALUE\tLABEL\tTYPE")
			for _, o := range opts {
				fmt.Fprintf(w, "%s\t%s\t%s\n", o.Value, o.Label, o.Type)
			}
			return w.Flush()
		},
	}
}

func newRentCmd(a *app) *cobra.Command {
	var year int

	cmd := &cobra.Command{
		Use:   "rent",
		Short: "Show the rent overview of a year",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, _, err := a.tenantSession(ctx); err != nil {
				return err
			}
			ov, err := a.client.RentOverview(ctx, year)
			if err != nil {
				return err
			}
			printOverview(a, ov)
			return nil
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "year to show (current year when 0)")
	return cmd
}

var statusMarks = map[rent.Status]string{
	rent.StatusCity:    "C",
	rent.StatusPaid:    "✓",
	rent.StatusPartial: "~",
	rent.StatusMissing: "✗",
}

func printOverview(a *app, ov rent.Overview) {
	fmt.Fprintf(a.out, "Rent %d\n\n", ov.Year)
	w := tabwriter.NewWriter(a.out, 0, 0, 1, ' ', 0)
	for _, block := range ov.Properties {
		fmt.Fprintf(w, "%s\t%s\tTOTAL\n", block.Property, strings.Join(rent.Months, "\t"))
		for _, p := range block.Partners {
			marks := make([]string, 0, len(rent.Months))
			for _, m := range rent.Months {
				mark, ok := statusMarks[p.Months[m].Status]
				if !ok {
					mark = "-"
				}
				marks = append(marks, mark)
			}
			fmt.Fprintf(w, "  %s\t%s\t%s\n", p.Partner, strings.Join(marks, "\t"), p.Total.StringFixed(2))
		}
		fmt.Fprintln(w, "\t")
	}
	_ = w.Flush()

	s := ov.Summary
	fmt.Fprintf(a.out, "Total %s from %d payments (avg %s), %d renters in %d properties, %d city / %d direct\n",
		s.TotalDisplay, s.Count, grid.FormatCurrency(s.Average, ""), s.Partners, s.Properties, s.CityPayments, s.DirectPayments)
}

func newSummaryCmd(a *app) *cobra.Command {
	var month string

	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Show the monthly summary of bank transactions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if month != "" {
				if _, err := summary.ParseMonth(month); err != nil {
					return err
				}
			}
			ctx := cmd.Context()
			if _, _, err := a.tenantSession(ctx); err != nil {
				return err
			}
			s, err := a.client.MonthlySummary(ctx, month)
			if err != nil {
				return err
			}
			return printSummary(a.out, s)
		},
	}

	cmd.Flags().StringVar(&month, "month", "", "month to show as YYYY-MM (current month when empty)")
	return cmd
}

func signedPercent(d decimal.Decimal) string {
	if d.IsNegative() {
		return d.StringFixed(1) + "%"
	}
	return "+" + d.StringFixed(1) + "%"
}

func printSummary(out io.Writer, s summary.Summary) error {
	title := "Summary " + s.Month
	if s.Historical {
		title += " (historical)"
	}
	fmt.Fprintf(out, "%s\n\n", title)

	cur, prev := s.Current, s.Previous
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Total\t%s\t%s vs %s (%s)\n", grid.FormatCurrency(cur.Total, ""), signedPercent(s.Growth.Total), prev.Month, grid.FormatCurrency(prev.Total, ""))
	fmt.Fprintf(w, "Rent\t%s\t%s vs %s (%s)\n", grid.FormatCurrency(cur.Rent, ""), signedPercent(s.Growth.Rent), prev.Month, grid.FormatCurrency(prev.Rent, ""))
	fmt.Fprintf(w, "Expenses\t%s\t\n", grid.FormatCurrency(cur.Expenses, ""))
	fmt.Fprintf(w, "Net income\t%s\t\n", grid.FormatCurrency(cur.NetIncome, ""))
	fmt.Fprintf(w, "Transactions\t%d\t%d last month, avg %s\n", cur.Transactions, prev.Transactions, grid.FormatCurrency(cur.Average, ""))
	if err := w.Flush(); err != nil {
		return err
	}

	for _, block := range []struct {
		title string
		items []summary.Ranked
	}{
		{"CATEGORY", s.TopCategories},
		{"PARTNER", s.TopPartners},
	} {
		if len(block.items) == 0 {
			continue
		}
		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "%s\tAMOUNT\tTX\tSHARE\n", block.title)
		for _, r := range block.items {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s%%\n", r.Name, grid.FormatCurrency(r.Amount, ""), r.Transactions, r.Share.StringFixed(1))
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(s.Months) > 0 {
		fmt.Fprintf(out, "\nMonths: %s\n", strings.Join(s.Months, ", "))
	}
	return nil
}
