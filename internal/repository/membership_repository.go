package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/aryan0dhankhar/estatebooks/internal/domain"
)

// PostgresMembershipRepository implements domain.MembershipRepository on the
// tenant_users_detailed view
type PostgresMembershipRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresMembershipRepository creates a new membership repository
func NewPostgresMembershipRepository(db *sql.DB, logger *slog.Logger) *PostgresMembershipRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresMembershipRepository{db: db, logger: logger}
}

// ListAuthorized returns the active tenants of a user, oldest membership first
func (r *PostgresMembershipRepository) ListAuthorized(ctx context.Context, userID string) ([]domain.AuthorizedTenant, error) {
	query := `
		SELECT tenant_id::text, tenant_name, COALESCE(subdomain, ''), COALESCE(plan_tier, ''), role
		FROM tenant_users_detailed
		WHERE user_id::text = $1 AND tenant_is_active = true
		ORDER BY joined_at ASC, tenant_name ASC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		r.logger.Error("failed to list memberships",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	var out []domain.AuthorizedTenant
	for rows.Next() {
		var t domain.AuthorizedTenant
		var role string
		if err := rows.Scan(&t.ID, &t.Name, &t.Subdomain, &t.PlanTier, &role); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		t.Role = domain.Role(role)
		out = append(out, t)
	}
	return out, rows.Err()
}
