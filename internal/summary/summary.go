// Package summary builds the monthly summary of a tenant's bank transactions:
// headline totals of one month, growth against the month before and the
// categories and partners that moved the most money.
package summary

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aryan0dhankhar/estatebooks/internal/domain"
	"github.com/aryan0dhankhar/estatebooks/internal/grid"
)

const (
	Uncategorized  = "Uncategorized"
	UnknownPartner = "Unknown"

	// TopN bounds the category and partner rankings
	TopN = 5
	// MaxMonths bounds the list of months offered for selection
	MaxMonths = 24
)

var hundred = decimal.NewFromInt(100)

// Month is a calendar month
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses YYYY-MM
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", strings.TrimSpace(s))
	if err != nil {
		return Month{}, fmt.Errorf("invalid month %q, want YYYY-MM", s)
	}
	return MonthOf(t), nil
}

// MonthOf returns the month t falls in
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Start is midnight UTC of the first day
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Previous is the month before m
func (m Month) Previous() Month {
	return MonthOf(m.Start().AddDate(0, -1, 0))
}

// Next is the month after m
func (m Month) Next() Month {
	return MonthOf(m.Start().AddDate(0, 1, 0))
}

// Totals are the figures of one month
type Totals struct {
	Month        string          `json:"month"`
	Total        decimal.Decimal `json:"total"`
	Rent         decimal.Decimal `json:"rent"`
	Expenses     decimal.Decimal `json:"expenses"`
	NetIncome    decimal.Decimal `json:"netIncome"`
	Transactions int             `json:"transactions"`
	Average      decimal.Decimal `json:"average"`
}

// Growth is the change against the previous month in percent, rounded to one
// decimal. It is zero when the previous month had nothing.
type Growth struct {
	Total decimal.Decimal `json:"total"`
	Rent  decimal.Decimal `json:"rent"`
}

// Ranked is one entry of the category or partner ranking
type Ranked struct {
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	Transactions int             `json:"transactions"`
	// Share is the percentage of the month total.
	Share decimal.Decimal `json:"share"`
}

// Summary is the monthly summary of one month
type Summary struct {
	Month         string   `json:"month"`
	Current       Totals   `json:"current"`
	Previous      Totals   `json:"previous"`
	Growth        Growth   `json:"growth"`
	TopCategories []Ranked `json:"topCategories"`
	TopPartners   []Ranked `json:"topPartners"`
	// Months lists the months with transactions, newest first.
	Months []string `json:"months"`
	// Historical is set when the month lies before the current one.
	Historical bool `json:"historical"`
	// CanGoNext is set when the following month is not in the future.
	CanGoNext bool `json:"canGoNext"`
}

// Builder aggregates ledger transactions into a Summary
type Builder struct {
	rentCategory string
}

// NewBuilder creates a builder counting rentCategory bookings as rent
func NewBuilder(rentCategory string) *Builder {
	return &Builder{rentCategory: cmp.Or(strings.TrimSpace(rentCategory), "Miete")}
}

type bucket struct {
	amount decimal.Decimal
	count  int
}

// Build summarises month from txs. Transactions outside month and the month
// before are ignored; amounts count by their absolute value.
func (b *Builder) Build(month Month, txs []domain.LedgerTransaction, now time.Time) Summary {
	prevMonth := month.Previous()
	cur := Totals{Month: month.String()}
	prev := Totals{Month: prevMonth.String()}
	categories := map[string]*bucket{}
	partners := map[string]*bucket{}

	for _, t := range txs {
		d, ok := grid.ParseDate(t.Date)
		if !ok {
			continue
		}
		raw, err := decimal.NewFromString(strings.TrimSpace(t.Amount))
		if err != nil {
			raw = decimal.Zero
		}
		amount := raw.Abs()
		category := strings.TrimSpace(t.Category)
		isRent := category == b.rentCategory

		switch MonthOf(d) {
		case month:
			cur.Total = cur.Total.Add(amount)
			cur.Transactions++
			if isRent {
				cur.Rent = cur.Rent.Add(amount)
			}
			if raw.IsNegative() || (category != "" && !strings.Contains(category, b.rentCategory)) {
				cur.Expenses = cur.Expenses.Add(amount)
			}
			add(categories, cmp.Or(category, Uncategorized), amount)
			add(partners, cmp.Or(strings.TrimSpace(t.Partner), UnknownPartner), amount)
		case prevMonth:
			prev.Total = prev.Total.Add(amount)
			prev.Transactions++
			if isRent {
				prev.Rent = prev.Rent.Add(amount)
			}
		}
	}

	cur.NetIncome = cur.Rent.Sub(cur.Expenses)
	if cur.Transactions > 0 {
		cur.Average = cur.Total.Div(decimal.NewFromInt(int64(cur.Transactions))).Round(2)
	}

	current := MonthOf(now)
	return Summary{
		Month:    month.String(),
		Current:  cur,
		Previous: prev,
		Growth: Growth{
			Total: growth(cur.Total, prev.Total),
			Rent:  growth(cur.Rent, prev.Rent),
		},
		TopCategories: rank(categories, cur.Total),
		TopPartners:   rank(partners, cur.Total),
		Months:        []string{},
		Historical:    month != current,
		CanGoNext:     month.Next().String() <= current.String(),
	}
}

func add(m map[string]*bucket, key string, amount decimal.Decimal) {
	bk := m[key]
	if bk == nil {
		bk = &bucket{}
		m[key] = bk
	}
	bk.amount = bk.amount.Add(amount)
	bk.count++
}

func growth(cur, prev decimal.Decimal) decimal.Decimal {
	if !prev.IsPositive() {
		return decimal.Zero
	}
	return cur.Sub(prev).Div(prev).Mul(hundred).Round(1)
}

// rank orders buckets by amount, largest first with ties by name, and keeps
// the top TopN
func rank(m map[string]*bucket, total decimal.Decimal) []Ranked {
	out := make([]Ranked, 0, len(m))
	for name, bk := range m {
		r := Ranked{Name: name, Amount: bk.amount, Transactions: bk.count}
		if total.IsPositive() {
			r.Share = bk.amount.Div(total).Mul(hundred).Round(1)
		}
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Ranked) int {
		if c := b.Amount.Cmp(a.Amount); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
	if len(out) > TopN {
		out = out[:TopN]
	}
	return out
}
