package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/aryan0dhankhar/estatebooks/internal/catalog"
	"github.com/aryan0dhankhar/estatebooks/internal/domain"
	"github.com/aryan0dhankhar/estatebooks/internal/grid"
)

// ErrRowNotFound is returned when the row does not exist for the tenant
var ErrRowNotFound = errors.New("row not found")

// ValidationError rejects an edit before any mutation is attempted
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// allowedTables are the only tables edits may reach
var allowedTables = map[string]struct{}{
	"bank_transactions":      {},
	"booking_categories":     {},
	"business_partners":      {},
	"tenants":                {},
	"properties":             {},
	"tenant_rent_milestones": {},
}

// AllowedTables lists the mutable tables in sorted order
func AllowedTables() []string {
	return slices.Sorted(maps.Keys(allowedTables))
}

// Updater applies a set of column writes to one row in a single statement
type Updater interface {
	UpdateFields(ctx context.Context, tenantID, table, id string, values map[string]any) (grid.Row, error)
}

// Notifier is told about every successful update
type Notifier interface {
	RowUpdated(ctx context.Context, tenantID, table, id string, fields []string)
}

// Dispatcher routes cell edits to the store
type Dispatcher struct {
	store     Updater
	notifiers []Notifier
	logger    *slog.Logger
}

// New creates a dispatcher
func New(store Updater, logger *slog.Logger, notifiers ...Notifier) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: store, notifiers: notifiers, logger: logger}
}

// DispatchUpdate validates an edit, expands composite fields and applies all
// resulting writes atomically. It returns the updated row.
func (d *Dispatcher) DispatchUpdate(ctx context.Context, tenantID, table, id, field string, value any) (grid.Row, error) {
	if tenantID == "" {
		return nil, invalid("tenant", "no tenant selected")
	}
	if strings.TrimSpace(id) == "" {
		return nil, invalid("id", "row id is required")
	}
	values, err := Plan(table, field, value)
	if err != nil {
		return nil, err
	}

	row, err := d.store.UpdateFields(ctx, tenantID, table, id, values)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s/%s", ErrRowNotFound, table, id)
		}
		d.logger.Error("cell update failed",
			slog.String("tenant_id", tenantID),
			slog.String("table", table),
			slog.String("id", id),
			slog.String("field", field),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("update %s.%s: %w", table, field, err)
	}
	if tbl, ok := catalog.Lookup(table); ok && tbl.Derive != nil && row != nil {
		tbl.Derive(row)
	}

	fields := slices.Sorted(maps.Keys(values))
	for _, n := range d.notifiers {
		n.RowUpdated(ctx, tenantID, table, id, fields)
	}
	d.logger.Info("cell updated",
		slog.String("tenant_id", tenantID),
		slog.String("table", table),
		slog.String("id", id),
		slog.String("field", field),
	)
	return row, nil
}

// Plan turns one field edit into the column writes it implies
func Plan(table, field string, value any) (map[string]any, error) {
	if _, ok := allowedTables[table]; !ok {
		return nil, invalid("table", "table %q is not allowed", table)
	}
	if field == "" {
		return nil, invalid("field", "field is required")
	}
	if field == grid.IDField {
		return nil, invalid("field", "the id column cannot be edited")
	}

	if table == "bank_transactions" {
		switch field {
		case catalog.FieldPartnerSelection:
			sel, err := parsePartnerSelection(value)
			if err != nil {
				return nil, err
			}
			if sel.PartnerType == catalog.PartnerTenant {
				return map[string]any{catalog.FieldTenantRef: sel.PartnerID, catalog.FieldBusinessPartnerRef: nil}, nil
			}
			return map[string]any{catalog.FieldBusinessPartnerRef: sel.PartnerID, catalog.FieldTenantRef: nil}, nil
		case catalog.FieldTenantRef, catalog.FieldBusinessPartnerRef:
			ref, err := scalar(field, value)
			if err != nil {
				return nil, err
			}
			if ref == nil || ref == "" {
				return map[string]any{field: nil}, nil
			}
			sibling := catalog.FieldBusinessPartnerRef
			if field == catalog.FieldBusinessPartnerRef {
				sibling = catalog.FieldTenantRef
			}
			return map[string]any{field: ref, sibling: nil}, nil
		}
	}

	tbl, ok := catalog.Lookup(table)
	if !ok {
		return nil, invalid("table", "table %q has no definition", table)
	}
	col, ok := tbl.Column(field)
	if !ok || !col.Editable {
		return nil, invalid("field", "field %q of %s is not editable", field, table)
	}
	v, err := coerce(col, value)
	if err != nil {
		return nil, err
	}
	return map[string]any{field: v}, nil
}

func parsePartnerSelection(value any) (catalog.PartnerSelection, error) {
	var sel catalog.PartnerSelection
	switch v := value.(type) {
	case catalog.PartnerSelection:
		sel = v
	case string:
		if err := json.Unmarshal([]byte(v), &sel); err != nil {
			return sel, invalid(catalog.FieldPartnerSelection, "payload is not valid JSON")
		}
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return sel, invalid(catalog.FieldPartnerSelection, "payload cannot be encoded")
		}
		if err := json.Unmarshal(b, &sel); err != nil {
			return sel, invalid(catalog.FieldPartnerSelection, "payload has the wrong shape")
		}
	default:
		return sel, invalid(catalog.FieldPartnerSelection, "expected {partnerId, partnerType}")
	}
	sel.PartnerID = strings.TrimSpace(sel.PartnerID)
	if sel.PartnerID == "" {
		return sel, invalid(catalog.FieldPartnerSelection, "partnerId is required")
	}
	if sel.PartnerType != catalog.PartnerTenant && sel.PartnerType != catalog.PartnerBusinessPartner {
		return sel, invalid(catalog.FieldPartnerSelection, "unknown partnerType %q", sel.PartnerType)
	}
	return sel, nil
}

// scalar accepts the value shapes a single column can store
func scalar(field string, value any) (any, error) {
	switch v := value.(type) {
	case nil, string, bool, float64, float32, int, int32, int64:
		return v, nil
	case json.Number:
		return v.String(), nil
	default:
		return nil, invalid(field, "unsupported value type %T", value)
	}
}

func coerce(col grid.ColumnDescriptor, value any) (any, error) {
	v, err := scalar(col.Key, value)
	if err != nil || v == nil {
		return v, err
	}
	switch col.Kind {
	case grid.KindBoolean:
		b, ok := grid.ParseBool(v)
		if !ok {
			return nil, invalid(col.Key, "%q is not a boolean", grid.Stringify(v))
		}
		return b, nil
	case grid.KindDate:
		if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
			return nil, nil
		}
		t, ok := grid.ParseDate(v)
		if !ok {
			return nil, invalid(col.Key, "%q is not a date", grid.Stringify(v))
		}
		return t.Format(time.DateOnly), nil
	case grid.KindCurrency:
		d, ok := grid.ParseNumber(v)
		if !ok {
			return nil, invalid(col.Key, "%q is not an amount", grid.Stringify(v))
		}
		return d.String(), nil
	case grid.KindDropdown:
		if len(col.Options) > 0 {
			if _, ok := col.OptionLabel(grid.Stringify(v)); !ok {
				return nil, invalid(col.Key, "%q is not one of the options", grid.Stringify(v))
			}
		}
	}
	return v, nil
}
