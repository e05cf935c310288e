package grid

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// IDField is the mandatory row identifier field
const IDField = "id"

// Row is one record of an arbitrary table: field name to string, number,
// boolean or nil.
type Row map[string]any

// ID returns the row identifier normalised to a string
func (r Row) ID() (string, bool) {
	v, ok := r[IDField]
	if !ok || v == nil {
		return "", false
	}
	switch id := v.(type) {
	case string:
		if id == "" {
			return "", false
		}
		return id, true
	case json.Number, float64, float32, int, int32, int64, uint, uint32, uint64:
		return Stringify(id), true
	default:
		return "", false
	}
}

// Clone makes a shallow copy so overlays never mutate caller-owned rows
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Stringify renders a cell value the way filters and lexicographic sorting see it
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case decimal.Decimal:
		return t.String()
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.RFC3339)
	case fmt.Stringer:
		return t.String()
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

// asDecimal reports whether v parses as a number
func asDecimal(v any) (decimal.Decimal, bool) {
	switch t := v.(type) {
	case nil, bool:
		return decimal.Zero, false
	case decimal.Decimal:
		return t, true
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat(t), true
	case float32:
		if math.IsNaN(float64(t)) || math.IsInf(float64(t), 0) {
			return decimal.Zero, false
		}
		return decimal.NewFromFloat32(t), true
	case int:
		return decimal.NewFromInt(int64(t)), true
	case int32:
		return decimal.NewFromInt32(t), true
	case int64:
		return decimal.NewFromInt(t), true
	case uint:
		return decimal.NewFromUint64(uint64(t)), true
	case uint32:
		return decimal.NewFromUint64(uint64(t)), true
	case uint64:
		return decimal.NewFromUint64(t), true
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		return d, err == nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return decimal.Zero, false
		}
		d, err := decimal.NewFromString(s)
		return d, err == nil
	default:
		return decimal.Zero, false
	}
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	time.DateTime,
	time.DateOnly,
	"02.01.2006",
}

// asTime reports whether v parses as a date or timestamp
func asTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if parsed, err := time.Parse(layout, s); err == nil {
				return parsed, true
			}
		}
	}
	return time.Time{}, false
}

// asBool accepts real booleans plus the usual textual spellings
func asBool(v any) (bool, bool) {
	switch t := v.(type) {
	case bool:
		return t, true
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "ja", "on":
			return true, true
		case "false", "0", "no", "nein", "off":
			return false, true
		}
	}
	if d, ok := asDecimal(v); ok {
		return !d.IsZero(), true
	}
	return false, false
}

// ParseDate parses the date and timestamp forms the grid sorts chronologically
func ParseDate(v any) (time.Time, bool) { return asTime(v) }

// ParseBool parses booleans and their common textual spellings
func ParseBool(v any) (bool, bool) { return asBool(v) }

// ParseNumber parses numbers and numeric strings
func ParseNumber(v any) (decimal.Decimal, bool) { return asDecimal(v) }

// Equal compares two values of the column. Currency cells compare
// numerically, dates chronologically and booleans by truth value when both
// sides parse. Text, dropdown and link cells compare their string form
// exactly, so "0171" and "171" differ; only two non-string numbers compare
// numerically there.
func (c ColumnDescriptor) Equal(a, b any) bool {
	switch c.Kind {
	case KindCurrency:
		if da, ok := asDecimal(a); ok {
			if db, ok := asDecimal(b); ok {
				return da.Equal(db)
			}
		}
	case KindDate:
		if ta, ok := asTime(a); ok {
			if tb, ok := asTime(b); ok {
				return ta.Equal(tb)
			}
		}
	case KindBoolean:
		if ba, ok := asBool(a); ok {
			if bb, ok := asBool(b); ok {
				return ba == bb
			}
		}
	default:
		if isNumber(a) && isNumber(b) {
			da, _ := asDecimal(a)
			db, _ := asDecimal(b)
			return da.Equal(db)
		}
	}
	return Stringify(a) == Stringify(b)
}

// isNumber reports whether v is a numeric value rather than text
func isNumber(v any) bool {
	switch v.(type) {
	case string, nil, bool:
		return false
	}
	_, ok := asDecimal(v)
	return ok
}
