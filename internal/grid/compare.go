package grid

import "strings"

// value classes in ascending sort order
const (
	classNumber = iota
	classDate
	classText
)

// Compare orders two cell values. Numbers sort before dates and dates before
// everything else; within a class numbers compare numerically, dates
// chronologically and the rest case-sensitively by their string form.
func Compare(a, b any) int {
	ca, cb := valueClass(a), valueClass(b)
	if ca != cb {
		return ca - cb
	}
	switch ca {
	case classNumber:
		da, _ := asDecimal(a)
		db, _ := asDecimal(b)
		return da.Cmp(db)
	case classDate:
		ta, _ := asTime(a)
		tb, _ := asTime(b)
		return ta.Compare(tb)
	}
	return strings.Compare(Stringify(a), Stringify(b))
}

func valueClass(v any) int {
	if _, ok := asDecimal(v); ok {
		return classNumber
	}
	if _, ok := asTime(v); ok {
		return classDate
	}
	return classText
}
