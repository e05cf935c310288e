package grid

import (
	"errors"
	"fmt"
)

// CellKind selects the rendering and editing strategy of a column
type CellKind string

const (
	KindText     CellKind = "text"
	KindCurrency CellKind = "currency"
	KindDate     CellKind = "date"
	KindBoolean  CellKind = "boolean"
	KindDropdown CellKind = "dropdown"
	KindLink     CellKind = "link"
)

// Valid reports whether k is one of the known kinds
func (k CellKind) Valid() bool {
	switch k {
	case KindText, KindCurrency, KindDate, KindBoolean, KindDropdown, KindLink:
		return true
	}
	return false
}

// Option is one entry of a dropdown column
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
	// Type tags composite options, e.g. "tenant" or "business_partner".
	Type string `json:"type,omitempty"`
}

// ColumnDescriptor describes how one field of a Row is rendered and edited
type ColumnDescriptor struct {
	Key        string   `json:"key"`
	Label      string   `json:"label"`
	Kind       CellKind `json:"kind"`
	Editable   bool     `json:"editable"`
	Sortable   bool     `json:"sortable"`
	Filterable bool     `json:"filterable"`
	Hidden     bool     `json:"hidden,omitempty"`
	// Options lists dropdown choices in display order.
	Options []Option `json:"options,omitempty"`
	// Currency is the ISO code used by currency columns.
	Currency string `json:"currency,omitempty"`
	// LinkTitleField names the row field used as the title of link cells.
	LinkTitleField string `json:"linkTitleField,omitempty"`
}

// Config toggles grid features
type Config struct {
	EnableSorting      bool `json:"enableSorting"`
	EnableFiltering    bool `json:"enableFiltering"`
	EnablePagination   bool `json:"enablePagination"`
	EnableRowSelection bool `json:"enableRowSelection"`
	EnableDragReorder  bool `json:"enableDragReorder"`
	DefaultPageSize    int  `json:"defaultPageSize"`
}

// DefaultConfig enables sorting, filtering and pagination with 25 rows per page
func DefaultConfig() Config {
	return Config{
		EnableSorting:    true,
		EnableFiltering:  true,
		EnablePagination: true,
		DefaultPageSize:  25,
	}
}

const fallbackPageSize = 25

func (c Config) pageSize(requested int) int {
	if requested > 0 {
		return requested
	}
	if c.DefaultPageSize > 0 {
		return c.DefaultPageSize
	}
	return fallbackPageSize
}

// ValidateColumns checks keys are unique and non-empty and kinds are known
func ValidateColumns(columns []ColumnDescriptor) error {
	if len(columns) == 0 {
		return errors.New("at least one column is required")
	}
	seen := make(map[string]struct{}, len(columns))
	for i, col := range columns {
		if col.Key == "" {
			return fmt.Errorf("column %d: empty key", i)
		}
		if _, dup := seen[col.Key]; dup {
			return fmt.Errorf("column %q: duplicate key", col.Key)
		}
		seen[col.Key] = struct{}{}
		if !col.Kind.Valid() {
			return fmt.Errorf("column %q: unknown kind %q", col.Key, col.Kind)
		}
	}
	return nil
}

// FindColumn returns the descriptor for key
func FindColumn(columns []ColumnDescriptor, key string) (ColumnDescriptor, bool) {
	for _, col := range columns {
		if col.Key == key {
			return col, true
		}
	}
	return ColumnDescriptor{}, false
}

// OptionLabel maps a stored dropdown value to its label
func (c ColumnDescriptor) OptionLabel(value string) (string, bool) {
	for _, o := range c.Options {
		if o.Value == value {
			return o.Label, true
		}
	}
	return "", false
}
