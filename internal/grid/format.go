package grid

import (
	"strings"
	"time"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency applies to currency columns that do not name one
const DefaultCurrency = "EUR"

// Cell is the rendered form of one Row field
type Cell struct {
	Key     string `json:"key"`
	Value   any    `json:"value"`
	Display string `json:"display"`
	Href    string `json:"href,omitempty"`
	// Pending marks a value that is shown optimistically and not yet reconciled.
	Pending bool `json:"pending,omitempty"`
	Editing bool `json:"editing,omitempty"`
	Draft   any  `json:"draft,omitempty"`
}

// FormatCell renders value according to the column kind. A missing value
// always renders empty.
func FormatCell(col ColumnDescriptor, row Row) Cell {
	value, ok := row[col.Key]
	cell := Cell{Key: col.Key, Value: value}
	if !ok || value == nil {
		return cell
	}

	switch col.Kind {
	case KindCurrency:
		cell.Display = FormatCurrency(value, col.Currency)
	case KindDate:
		cell.Display = formatDate(value)
	case KindBoolean:
		if b, ok := asBool(value); ok {
			if b {
				cell.Display = "Yes"
			} else {
				cell.Display = "No"
			}
		} else {
			cell.Display = Stringify(value)
		}
	case KindDropdown:
		raw := Stringify(value)
		if label, ok := col.OptionLabel(raw); ok {
			cell.Display = label
		} else {
			cell.Display = raw
		}
	case KindLink:
		cell.Href = Stringify(value)
		cell.Display = cell.Href
		if col.LinkTitleField != "" {
			if title := strings.TrimSpace(Stringify(row[col.LinkTitleField])); title != "" {
				cell.Display = title
			}
		}
	default:
		cell.Display = Stringify(value)
	}
	return cell
}

// FormatCurrency renders an amount with the currency's symbol and fraction.
// Values that are not numbers are returned unchanged.
func FormatCurrency(value any, code string) string {
	amount, ok := asDecimal(value)
	if !ok {
		return Stringify(value)
	}
	if code == "" {
		code = DefaultCurrency
	}
	code = strings.ToUpper(code)

	cur := money.GetCurrency(code)
	if cur == nil {
		return amount.StringFixed(2) + " " + code
	}
	minor := amount.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, code).Display()
}

// MoneyFromDecimal converts a decimal amount into minor units of code
func MoneyFromDecimal(amount decimal.Decimal, code string) *money.Money {
	if code == "" {
		code = DefaultCurrency
	}
	fraction := 2
	if cur := money.GetCurrency(code); cur != nil {
		fraction = cur.Fraction
	}
	return money.New(amount.Shift(int32(fraction)).Round(0).IntPart(), code)
}

func formatDate(value any) string {
	t, ok := asTime(value)
	if !ok {
		return Stringify(value)
	}
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 {
		return t.Format(time.DateOnly)
	}
	return t.Format("2006-01-02 15:04")
}
