package handler

import (
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/estatebooks/internal/domain"
	"github.com/aryan0dhankhar/estatebooks/internal/security/audit"
	"github.com/aryan0dhankhar/estatebooks/internal/security/middleware"
	"github.com/aryan0dhankhar/estatebooks/internal/tenant"
)

// TenantsHandler lists the user's tenants and switches the active one
type TenantsHandler struct {
	resolver *tenant.Resolver
	auditLog *audit.Logger
	logger   *slog.Logger
}

// NewTenantsHandler creates a tenants handler
func NewTenantsHandler(resolver *tenant.Resolver, auditLog *audit.Logger, logger *slog.Logger) *TenantsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TenantsHandler{resolver: resolver, auditLog: auditLog, logger: logger}
}

// TenantsResponse carries the authorized tenants and the current selection
type TenantsResponse struct {
	Tenants []domain.AuthorizedTenant `json:"tenants"`
	Current tenant.Selection          `json:"current"`
}

// SelectTenantRequest switches the active tenant
type SelectTenantRequest struct {
	TenantID string `json:"tenantId" validate:"required,uuid"`
}

// List handles GET /api/tenants
func (h *TenantsHandler) List(w http.ResponseWriter, r *http.Request) {
	sel, ok := selection(w, r)
	if !ok {
		return
	}
	list := tenant.AuthorizedFromContext(r.Context())
	if list == nil {
		list = []domain.AuthorizedTenant{}
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: TenantsResponse{Tenants: list, Current: sel}})
}

// Select handles POST /api/tenants/select. The tenant must be one of the
// user's memberships; the choice is persisted in the tenant cookie.
func (h *TenantsHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req SelectTenantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		WriteError(w, r, err)
		return
	}

	userID, _ := middleware.UserIDFromContext(r.Context())
	t, ok := tenant.Find(tenant.AuthorizedFromContext(r.Context()), req.TenantID)
	if !ok {
		h.auditLog.LogDenied(r.Context(), req.TenantID, userID, "tenant switch outside memberships")
		WriteError(w, r, tenant.ErrNotAuthorized)
		return
	}

	http.SetCookie(w, h.resolver.Cookie(t.ID))
	h.auditLog.LogTenantSwitch(r.Context(), t.ID, userID)
	h.logger.Info("tenant switched",
		slog.String("user_id", userID),
		slog.String("tenant_id", t.ID),
	)
	writeJSON(w, http.StatusOK, DataResponse{Data: tenant.Selection{TenantID: t.ID, Tenant: t, Source: tenant.SourceSaved}})
}
