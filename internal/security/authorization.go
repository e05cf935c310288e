package security

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/aryan0dhankhar/estatebooks/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermReadTables   Permission = "read_tables"
	PermEditCells    Permission = "edit_cells"
	PermReadOptions  Permission = "read_options"
	PermViewRent     Permission = "view_rent_overview"
	PermViewReports  Permission = "view_reports"
	PermManageTenant Permission = "manage_tenant"
	PermViewAuditLog Permission = "view_audit_log"
)

// RolePermissions maps tenant roles to their permissions
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleOwner: {
		PermReadTables,
		PermEditCells,
		PermReadOptions,
		PermViewRent,
		PermViewReports,
		PermManageTenant,
		PermViewAuditLog,
	},
	domain.RoleAdmin: {
		PermReadTables,
		PermEditCells,
		PermReadOptions,
		PermViewRent,
		PermViewReports,
		PermViewAuditLog,
	},
	domain.RoleMember: {
		PermReadTables,
		PermEditCells,
		PermReadOptions,
		PermViewRent,
		PermViewReports,
	},
	domain.RoleViewer: {
		PermReadTables,
		PermReadOptions,
		PermViewRent,
		PermViewReports,
	},
}

// AuthorizationService handles authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role domain.Role, permission Permission) bool {
	return slices.Contains(RolePermissions[role], permission)
}

// ValidatePermission validates that a role has a specific permission
func (as *AuthorizationService) ValidatePermission(role domain.Role, permission Permission) error {
	if !as.HasPermission(role, permission) {
		as.logger.Warn("permission denied",
			slog.String("role", string(role)),
			slog.String("permission", string(permission)),
		)
		return fmt.Errorf("permission denied: %s role cannot %s", role, permission)
	}
	return nil
}
