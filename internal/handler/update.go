package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"

	"github.com/aryan0dhankhar/estatebooks/internal/dispatch"
	"github.com/aryan0dhankhar/estatebooks/internal/grid"
	"github.com/aryan0dhankhar/estatebooks/internal/observability/metrics"
	"github.com/aryan0dhankhar/estatebooks/internal/security/audit"
	"github.com/aryan0dhankhar/estatebooks/internal/security/middleware"
)

// CellDispatcher applies one cell edit for a tenant
type CellDispatcher interface {
	DispatchUpdate(ctx context.Context, tenantID, table, id, field string, value any) (grid.Row, error)
}

// UpdateHandler persists inline cell edits
type UpdateHandler struct {
	dispatcher CellDispatcher
	auditLog   *audit.Logger
	logger     *slog.Logger
}

// NewUpdateHandler creates an update handler
func NewUpdateHandler(dispatcher CellDispatcher, auditLog *audit.Logger, logger *slog.Logger) *UpdateHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UpdateHandler{dispatcher: dispatcher, auditLog: auditLog, logger: logger}
}

// RowID accepts a JSON string or number
type RowID string

func (id *RowID) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*id = RowID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number")
	}
	*id = RowID(n.String())
	return nil
}

// UpdateRequest is one cell edit. Value may be any JSON value; the
// partner_selection field takes {partnerId, partnerType} or its JSON string.
type UpdateRequest struct {
	Table string `json:"table" validate:"required"`
	ID    RowID  `json:"id" validate:"required"`
	Field string `json:"field" validate:"required"`
	Value any    `json:"value"`
}

// ServeHTTP handles POST /api/database/update
func (h *UpdateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sel, ok := selection(w, r)
	if !ok {
		return
	}

	var req UpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		metrics.ObserveCellUpdate(tableLabel(req.Table), "invalid")
		WriteError(w, r, err)
		return
	}

	userID, _ := middleware.UserIDFromContext(r.Context())
	row, err := h.dispatcher.DispatchUpdate(r.Context(), sel.TenantID, req.Table, string(req.ID), req.Field, req.Value)
	if err != nil {
		status, code, _ := classify(err)
		metrics.ObserveCellUpdate(tableLabel(req.Table), code)
		h.auditLog.LogCellUpdate(r.Context(), sel.TenantID, userID, req.Table, string(req.ID), req.Field, http.StatusText(status))
		WriteError(w, r, err)
		return
	}

	metrics.ObserveCellUpdate(tableLabel(req.Table), "ok")
	h.auditLog.LogCellUpdate(r.Context(), sel.TenantID, userID, req.Table, string(req.ID), req.Field, "ok")
	writeJSON(w, http.StatusOK, DataResponse{Data: row})
}

// tableLabel keeps metric labels bounded to known tables
func tableLabel(table string) string {
	if slices.Contains(dispatch.AllowedTables(), table) {
		return table
	}
	return "other"
}
