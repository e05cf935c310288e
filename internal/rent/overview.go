// Package rent builds the yearly rent overview: a property × renter × month
// matrix of received rent with a payment status per cell, plus summary figures.
package rent

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/aryan0dhankhar/estatebooks/internal/domain"
	"github.com/aryan0dhankhar/estatebooks/internal/grid"
)

// Status classifies the rent received for one renter in one month
type Status string

const (
	StatusCity    Status = "city"
	StatusPaid    Status = "paid"
	StatusPartial Status = "partial"
	StatusMissing Status = "missing"
)

const (
	UnknownProperty = "Unknown Property"
	OtherProperties = "Other Properties"
	UnknownPartner  = "Unknown Tenant"
)

var (
	paidThreshold    = decimal.NewFromInt(500)
	partialThreshold = decimal.NewFromInt(200)
)

// Months lists the month keys of a matrix row
var Months = []string{"01", "02", "03", "04", "05", "06", "07", "08", "09", "10", "11", "12"}

// Cell is the rent received from one renter in one month
type Cell struct {
	Amount   decimal.Decimal `json:"amount"`
	Status   Status          `json:"status"`
	Payer    string          `json:"payer,omitempty"`
	Date     string          `json:"date,omitempty"`
	Payments int             `json:"payments"`
}

// PartnerRow is one renter's year
type PartnerRow struct {
	Partner string          `json:"partner"`
	Months  map[string]Cell `json:"months"`
	Total   decimal.Decimal `json:"total"`
}

// PropertyBlock groups renters by property
type PropertyBlock struct {
	Property string       `json:"property"`
	Partners []PartnerRow `json:"partners"`
}

// Summary holds the headline figures of a year
type Summary struct {
	Total          decimal.Decimal `json:"total"`
	TotalDisplay   string          `json:"totalDisplay"`
	Count          int             `json:"count"`
	Average        decimal.Decimal `json:"average"`
	Partners       int             `json:"partners"`
	Properties     int             `json:"properties"`
	CityPayments   int             `json:"cityPayments"`
	DirectPayments int             `json:"directPayments"`
}

// Overview is the full rent overview of one year
type Overview struct {
	Year       int             `json:"year"`
	Properties []PropertyBlock `json:"properties"`
	Summary    Summary         `json:"summary"`
}

// PropertyHint maps a keyword found in a transaction description to a property
type PropertyHint struct {
	Keyword  string
	Property string
}

// Builder turns rent transactions into an Overview
type Builder struct {
	cityPayers []string
	hints      []PropertyHint
	currency   string
}

// NewBuilder creates a builder. Payers containing one of cityPayers count as
// public-agency payments. hints resolve the property of transactions that
// carry none, checked in keyword order.
func NewBuilder(cityPayers []string, hints map[string]string, currency string) *Builder {
	b := &Builder{currency: cmp.Or(currency, grid.DefaultCurrency)}
	for _, p := range cityPayers {
		if p = strings.TrimSpace(p); p != "" {
			b.cityPayers = append(b.cityPayers, strings.ToLower(p))
		}
	}
	for _, k := range slices.Sorted(maps.Keys(hints)) {
		b.hints = append(b.hints, PropertyHint{Keyword: strings.ToLower(k), Property: hints[k]})
	}
	return b
}

// IsCityPayer reports whether payer is a public agency
func (b *Builder) IsCityPayer(payer string) bool {
	p := strings.ToLower(payer)
	for _, c := range b.cityPayers {
		if strings.Contains(p, c) {
			return true
		}
	}
	return false
}

// Classify returns the status of a month given the summed amount
func (b *Builder) Classify(amount decimal.Decimal, city bool) Status {
	switch {
	case !amount.IsPositive():
		return StatusMissing
	case city:
		return StatusCity
	case amount.GreaterThanOrEqual(paidThreshold):
		return StatusPaid
	case amount.GreaterThanOrEqual(partialThreshold):
		return StatusPartial
	default:
		// below the partial band still counts as paid
		return StatusPaid
	}
}

func (b *Builder) property(t domain.RentTransaction) string {
	if p := strings.TrimSpace(t.Property); p != "" {
		return p
	}
	if t.Description == "" {
		return UnknownProperty
	}
	desc := strings.ToLower(t.Description)
	for _, h := range b.hints {
		if strings.Contains(desc, h.Keyword) {
			return h.Property
		}
	}
	if len(b.hints) > 0 {
		return OtherProperties
	}
	return UnknownProperty
}

type monthAcc struct {
	amount   decimal.Decimal
	city     bool
	payer    string
	date     string
	payments int
}

// Build aggregates txs of year. Transactions dated outside the year are ignored.
func (b *Builder) Build(year int, txs []domain.RentTransaction) Overview {
	acc := map[string]map[string]map[string]*monthAcc{}
	partners := map[string]struct{}{}
	properties := map[string]struct{}{}
	sum := Summary{}

	for _, t := range txs {
		d, ok := grid.ParseDate(t.Date)
		if !ok || d.Year() != year {
			continue
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(t.Amount))
		if err != nil {
			amount = decimal.Zero
		}
		property := b.property(t)
		partner := strings.TrimSpace(t.Partner)
		if partner != "" {
			partners[partner] = struct{}{}
		} else {
			partner = UnknownPartner
		}
		properties[property] = struct{}{}

		city := b.IsCityPayer(t.Payer)
		sum.Total = sum.Total.Add(amount)
		sum.Count++
		if city {
			sum.CityPayments++
		}

		month := fmt.Sprintf("%02d", int(d.Month()))
		if acc[property] == nil {
			acc[property] = map[string]map[string]*monthAcc{}
		}
		if acc[property][partner] == nil {
			acc[property][partner] = map[string]*monthAcc{}
		}
		m := acc[property][partner][month]
		if m == nil {
			m = &monthAcc{payer: t.Payer, date: t.Date}
			acc[property][partner][month] = m
		}
		m.amount = m.amount.Add(amount)
		m.city = m.city || city
		m.payments++
	}

	sum.DirectPayments = sum.Count - sum.CityPayments
	sum.Partners = len(partners)
	sum.Properties = len(properties)
	if sum.Count > 0 {
		sum.Average = sum.Total.Div(decimal.NewFromInt(int64(sum.Count))).Round(2)
	}
	sum.TotalDisplay = grid.MoneyFromDecimal(sum.Total, b.currency).Display()

	out := Overview{Year: year, Summary: sum, Properties: []PropertyBlock{}}
	for _, property := range slices.Sorted(maps.Keys(acc)) {
		block := PropertyBlock{Property: property}
		for _, partner := range slices.Sorted(maps.Keys(acc[property])) {
			row := PartnerRow{Partner: partner, Months: make(map[string]Cell, len(Months))}
			for _, month := range Months {
				m := acc[property][partner][month]
				if m == nil {
					row.Months[month] = Cell{Amount: decimal.Zero, Status: StatusMissing}
					continue
				}
				row.Months[month] = Cell{
					Amount:   m.amount,
					Status:   b.Classify(m.amount, m.city),
					Payer:    m.payer,
					Date:     m.date,
					Payments: m.payments,
				}
				row.Total = row.Total.Add(m.amount)
			}
			block.Partners = append(block.Partners, row)
		}
		out.Properties = append(out.Properties, block)
	}
	return out
}
