package repository

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/estatebooks/internal/catalog"
	"github.com/aryan0dhankhar/estatebooks/internal/domain"
	"github.com/aryan0dhankhar/estatebooks/internal/grid"
	"github.com/aryan0dhankhar/estatebooks/pkg/database"
)

// PostgresTableRepository reads display rows through the per-table RPCs and
// applies cell updates, always inside a tenant-scoped transaction.
type PostgresTableRepository struct {
	pool   *database.ConnectionPool
	logger *slog.Logger
}

// NewPostgresTableRepository creates a new table repository
func NewPostgresTableRepository(pool *database.ConnectionPool, logger *slog.Logger) *PostgresTableRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresTableRepository{pool: pool, logger: logger}
}

// FetchRows calls the display RPC of tbl. Rows without an id are dropped and
// counted.
func (r *PostgresTableRepository) FetchRows(ctx context.Context, tenantID string, tbl catalog.Table) ([]grid.Row, int, error) {
	query := fmt.Sprintf(`SELECT row_to_json(r) FROM %s($1) AS r`, pq.QuoteIdentifier(tbl.DisplayRPC))

	var out []grid.Row
	dropped := 0
	err := r.pool.InTenantTx(ctx, tenantID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var raw []byte
			if err := rows.Scan(&raw); err != nil {
				return err
			}
			row, err := decodeRow(raw)
			if err != nil {
				return err
			}
			if _, ok := row.ID(); !ok {
				dropped++
				continue
			}
			if tbl.Derive != nil {
				tbl.Derive(row)
			}
			out = append(out, row)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch %s rows: %w", tbl.Name, err)
	}
	if dropped > 0 {
		r.logger.Warn("dropped rows without id",
			slog.String("table", tbl.Name),
			slog.Int("count", dropped),
		)
	}
	return out, dropped, nil
}

// UpdateFields writes all values to one row in a single UPDATE and returns the
// stored row.
func (r *PostgresTableRepository) UpdateFields(ctx context.Context, tenantID, table, id string, values map[string]any) (grid.Row, error) {
	if len(values) == 0 {
		return nil, errors.New("no fields to update")
	}
	query, args := buildUpdate(table, id, values)

	var row grid.Row
	err := r.pool.InTenantTx(ctx, tenantID, func(tx *sql.Tx) error {
		var raw []byte
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&raw); err != nil {
			return err
		}
		decoded, err := decodeRow(raw)
		if err != nil {
			return err
		}
		row = decoded
		return nil
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && isConstraintClass(pqErr) {
			return nil, fmt.Errorf("%w: %s", domain.ErrConstraint, pqErr.Message)
		}
		return nil, fmt.Errorf("failed to update %s: %w", table, err)
	}
	return row, nil
}

// buildUpdate renders the UPDATE statement with columns in sorted order
func buildUpdate(table, id string, values map[string]any) (string, []any) {
	keys := slices.Sorted(maps.Keys(values))
	sets := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys)+1)
	for i, k := range keys {
		sets = append(sets, fmt.Sprintf("%s = $%d", pq.QuoteIdentifier(k), i+1))
		args = append(args, values[k])
	}
	args = append(args, id)
	query := fmt.Sprintf(`UPDATE %s AS t SET %s WHERE t.id::text = $%d RETURNING row_to_json(t)`,
		pq.QuoteIdentifier(table), strings.Join(sets, ", "), len(args))
	return query, args
}

// isConstraintClass matches data exceptions (22) and integrity violations (23)
func isConstraintClass(err *pq.Error) bool {
	class := string(err.Code.Class())
	return class == "22" || class == "23"
}

// RentTransactions lists bank transactions of one booking category in a year
func (r *PostgresTableRepository) RentTransactions(ctx context.Context, tenantID, category string, year int) ([]domain.RentTransaction, error) {
	query := `
		SELECT id::text, date::text, amount::text,
		       COALESCE(payer, ''), COALESCE(partner_name, ''),
		       COALESCE(property_name, ''), COALESCE(description, '')
		FROM get_bank_transactions_display($1)
		WHERE booking_category = $2
		  AND date >= make_date($3, 1, 1)
		  AND date <= make_date($3, 12, 31)
		ORDER BY date DESC
	`
	var out []domain.RentTransaction
	err := r.pool.InTenantTx(ctx, tenantID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, tenantID, category, year)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var t domain.RentTransaction
			if err := rows.Scan(&t.ID, &t.Date, &t.Amount, &t.Payer, &t.Partner, &t.Property, &t.Description); err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list rent transactions: %w", err)
	}
	return out, nil
}

// LedgerTransactions lists bank transactions dated in [from, to)
func (r *PostgresTableRepository) LedgerTransactions(ctx context.Context, tenantID string, from, to time.Time) ([]domain.LedgerTransaction, error) {
	query := `
		SELECT id::text, date::text, COALESCE(amount, 0)::text,
		       COALESCE(booking_category, ''), COALESCE(partner_name, '')
		FROM get_bank_transactions_display($1)
		WHERE date >= $2::date AND date < $3::date
		ORDER BY date
	`
	var out []domain.LedgerTransaction
	err := r.pool.InTenantTx(ctx, tenantID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, tenantID, from.Format(time.DateOnly), to.Format(time.DateOnly))
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var t domain.LedgerTransaction
			if err := rows.Scan(&t.ID, &t.Date, &t.Amount, &t.Category, &t.Partner); err != nil {
				return err
			}
			out = append(out, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list ledger transactions: %w", err)
	}
	return out, nil
}

// TransactionMonths lists the months (YYYY-MM) holding transactions, newest
// first
func (r *PostgresTableRepository) TransactionMonths(ctx context.Context, tenantID string, limit int) ([]string, error) {
	query := `
		SELECT DISTINCT to_char(date, 'YYYY-MM') AS month
		FROM get_bank_transactions_display($1)
		WHERE date IS NOT NULL
		ORDER BY month DESC
		LIMIT $2
	`
	var out []string
	err := r.pool.InTenantTx(ctx, tenantID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, tenantID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var m string
			if err := rows.Scan(&m); err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transaction months: %w", err)
	}
	return out, nil
}

var optionQueries = map[catalog.OptionKind]string{
	catalog.OptionsTenants:           `SELECT id::text, name FROM get_tenant_dropdown_options($1) ORDER BY name`,
	catalog.OptionsBusinessPartners:  `SELECT id::text, name FROM get_business_partner_dropdown_options($1) ORDER BY name`,
	catalog.OptionsProperties:        `SELECT id::text, display_name FROM get_property_dropdown_options($1) ORDER BY display_name`,
	catalog.OptionsBookingCategories: `SELECT "Name", "Name" FROM booking_categories WHERE "Name" IS NOT NULL AND $1::text IS NOT NULL ORDER BY "Name"`,
}

// ListOptions returns the raw (id, name) pairs of one option kind. Combined
// partner lists are composed by the service.
func (r *PostgresTableRepository) ListOptions(ctx context.Context, tenantID string, kind catalog.OptionKind) ([]domain.Option, error) {
	query, ok := optionQueries[kind]
	if !ok {
		return nil, fmt.Errorf("no option query for %q", kind)
	}
	var out []domain.Option
	err := r.pool.InTenantTx(ctx, tenantID, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, query, tenantID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var o domain.Option
			if err := rows.Scan(&o.ID, &o.Label); err != nil {
				return err
			}
			o.Value = o.ID
			out = append(out, o)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list %s options: %w", kind, err)
	}
	return out, nil
}

func decodeRow(raw []byte) (grid.Row, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var row grid.Row
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("failed to decode row: %w", err)
	}
	return row, nil
}
