package summary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/estatebooks/internal/domain"
)

func tx(date, amount, category, partner string) domain.LedgerTransaction {
	return domain.LedgerTransaction{Date: date, Amount: amount, Category: category, Partner: partner}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var march = Month{Year: 2025, Month: time.March}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2025-03")
	require.NoError(t, err)
	assert.Equal(t, march, m)
	assert.Equal(t, "2025-02", m.Previous().String())
	assert.Equal(t, "2024-12", Month{Year: 2025, Month: time.January}.Previous().String())
	assert.Equal(t, "2026-01", Month{Year: 2025, Month: time.December}.Next().String())

	for _, bad := range []string{"", "2025-13", "03-2025", "2025-3-1"} {
		_, err := ParseMonth(bad)
		assert.Error(t, err, bad)
	}
}

func TestBuildTotals(t *testing.T) {
	b := NewBuilder("")
	txs := []domain.LedgerTransaction{
		tx("2025-03-01", "650.00", "Miete", "Anna Schmidt"),
		tx("2025-03-03", "480.00", "Miete", "Jonas Weber"),
		tx("2025-03-10", "-120.50", "Wartung", "Stadtwerke"),
		tx("2025-03-15", "-30", "", ""),
		tx("2025-03-20", "200", "Nebenkosten", "Anna Schmidt"),
		tx("2025-02-01", "600.00", "Miete", "Anna Schmidt"),
		tx("2025-02-12", "-50", "Wartung", "Stadtwerke"),
		tx("2025-01-31", "999", "Miete", "Old"),
		tx("not a date", "1000", "Miete", "Broken"),
	}

	s := b.Build(march, txs, time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC))

	assert.Equal(t, "2025-03", s.Month)
	assert.True(t, dec("1480.50").Equal(s.Current.Total), s.Current.Total.String())
	assert.True(t, dec("1130").Equal(s.Current.Rent), s.Current.Rent.String())
	// negative amounts and non-rent categories count as expenses
	assert.True(t, dec("350.50").Equal(s.Current.Expenses), s.Current.Expenses.String())
	assert.True(t, dec("779.50").Equal(s.Current.NetIncome), s.Current.NetIncome.String())
	assert.Equal(t, 5, s.Current.Transactions)
	assert.True(t, dec("296.10").Equal(s.Current.Average), s.Current.Average.String())

	assert.Equal(t, "2025-02", s.Previous.Month)
	assert.True(t, dec("650").Equal(s.Previous.Total))
	assert.True(t, dec("600").Equal(s.Previous.Rent))
	assert.Equal(t, 2, s.Previous.Transactions)

	assert.True(t, dec("127.8").Equal(s.Growth.Total), s.Growth.Total.String())
	assert.True(t, dec("88.3").Equal(s.Growth.Rent), s.Growth.Rent.String())

	assert.True(t, s.Historical)
	assert.True(t, s.CanGoNext)
}

func TestBuildRankings(t *testing.T) {
	b := NewBuilder("Miete")
	txs := []domain.LedgerTransaction{
		tx("2025-03-01", "100", "A", "p1"),
		tx("2025-03-02", "600", "B", "p2"),
		tx("2025-03-03", "300", "C", "p3"),
		tx("2025-03-04", "300", "D", "p4"),
		tx("2025-03-05", "50", "E", "p5"),
		tx("2025-03-06", "25", "F", "p6"),
		tx("2025-03-07", "-25", "", ""),
		tx("2025-03-08", "100", "A", "p1"),
	}
	s := b.Build(march, txs, march.Start())

	names := func(rs []Ranked) []string {
		out := make([]string, 0, len(rs))
		for _, r := range rs {
			out = append(out, r.Name)
		}
		return out
	}
	assert.Equal(t, []string{"B", "C", "D", "A", "E"}, names(s.TopCategories))
	assert.Equal(t, []string{"p2", "p3", "p4", "p1", "p5"}, names(s.TopPartners))
	assert.Equal(t, 2, s.TopCategories[3].Transactions)
	assert.True(t, dec("40").Equal(s.TopCategories[0].Share), s.TopCategories[0].Share.String())

	s = b.Build(march, []domain.LedgerTransaction{tx("2025-03-07", "-25", "", "")}, march.Start())
	require.Len(t, s.TopCategories, 1)
	assert.Equal(t, Uncategorized, s.TopCategories[0].Name)
	assert.Equal(t, UnknownPartner, s.TopPartners[0].Name)
}

func TestBuildEmptyMonth(t *testing.T) {
	s := NewBuilder("Miete").Build(march, nil, march.Start())
	assert.True(t, s.Current.Total.IsZero())
	assert.True(t, s.Growth.Total.IsZero())
	assert.True(t, s.Current.Average.IsZero())
	assert.NotNil(t, s.TopCategories)
	assert.NotNil(t, s.TopPartners)
	assert.False(t, s.Historical)
	assert.False(t, s.CanGoNext)
}

func TestBuildGrowthWithoutPreviousMonthIsZero(t *testing.T) {
	s := NewBuilder("Miete").Build(march, []domain.LedgerTransaction{tx("2025-03-01", "500", "Miete", "A")}, march.Start())
	assert.True(t, s.Growth.Total.IsZero())
	assert.True(t, s.Growth.Rent.IsZero())
}

type fakeStore struct {
	txs    []domain.LedgerTransaction
	months []string
	err    error
	from   time.Time
	to     time.Time
}

func (f *fakeStore) LedgerTransactions(_ context.Context, _ string, from, to time.Time) ([]domain.LedgerTransaction, error) {
	f.from, f.to = from, to
	return f.txs, f.err
}

func (f *fakeStore) TransactionMonths(_ context.Context, _ string, limit int) ([]string, error) {
	if len(f.months) > limit {
		return f.months[:limit], nil
	}
	return f.months, nil
}

func TestServiceSummary(t *testing.T) {
	store := &fakeStore{
		txs:    []domain.LedgerTransaction{tx("2025-03-01", "650", "Miete", "Anna")},
		months: []string{"2025-03", "2025-02"},
	}
	svc := NewService(store, NewBuilder("Miete"), nil)
	svc.now = func() time.Time { return time.Date(2025, time.March, 20, 9, 0, 0, 0, time.UTC) }

	s, err := svc.Summary(context.Background(), "t1", "")
	require.NoError(t, err)
	assert.Equal(t, "2025-03", s.Month)
	assert.Equal(t, []string{"2025-03", "2025-02"}, s.Months)
	assert.Equal(t, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), store.from)
	assert.Equal(t, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), store.to)
	assert.False(t, s.Historical)

	s, err = svc.Summary(context.Background(), "t1", "2025-01")
	require.NoError(t, err)
	assert.True(t, s.Historical)

	_, err = svc.Summary(context.Background(), "t1", "March")
	assert.Error(t, err)

	store.err = errors.New("db down")
	_, err = svc.Summary(context.Background(), "t1", "2025-03")
	assert.Error(t, err)
}
