package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aryan0dhankhar/estatebooks/internal/dispatch"
	"github.com/aryan0dhankhar/estatebooks/internal/domain"
	"github.com/aryan0dhankhar/estatebooks/internal/grid"
	"github.com/aryan0dhankhar/estatebooks/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/estatebooks/internal/service"
	"github.com/aryan0dhankhar/estatebooks/internal/tenant"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 20

// ErrorResponse is the error envelope every endpoint returns
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// DataResponse wraps successful payloads
type DataResponse struct {
	Data any `json:"data"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}

// decodeJSON reads a bounded JSON body into dst and validates its struct tags
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return &dispatch.ValidationError{Field: "body", Message: "request body is empty"}
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &dispatch.ValidationError{Field: "body", Message: "request body too large"}
		}
		return &dispatch.ValidationError{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &dispatch.ValidationError{
				Field:   lowerFirst(fe.Field()),
				Message: fmt.Sprintf("failed %q validation", fe.Tag()),
			}
		}
		return &dispatch.ValidationError{Field: "body", Message: err.Error()}
	}
	return nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

// WriteError maps err onto a status and error envelope
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)
	if status >= http.StatusInternalServerError {
		slog.Default().ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", status),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, status, code, message)
}

func classify(err error) (int, string, string) {
	var verr *dispatch.ValidationError
	switch {
	case errors.Is(err, tenant.ErrNoTenant):
		return http.StatusForbidden, "no_tenant_access", "no tenant access for this account"
	case errors.Is(err, tenant.ErrNotAuthorized):
		return http.StatusForbidden, "tenant_not_authorized", "tenant is not authorized for this user"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid_credentials", err.Error()
	case errors.Is(err, service.ErrWeakPassword):
		return http.StatusBadRequest, "weak_password", err.Error()
	case errors.Is(err, service.ErrAlreadyRegistered):
		return http.StatusConflict, "already_registered", err.Error()
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation_error", verr.Error()
	case errors.Is(err, dispatch.ErrRowNotFound), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, domain.ErrConstraint):
		return http.StatusUnprocessableEntity, "constraint_violation", err.Error()
	case errors.Is(err, service.ErrUnknownTable), errors.Is(err, service.ErrUnknownOptionKind):
		return http.StatusNotFound, "unknown_resource", err.Error()
	case errors.Is(err, grid.ErrNotSortable), errors.Is(err, grid.ErrNotFilterable),
		errors.Is(err, grid.ErrUnknownColumn), errors.Is(err, grid.ErrNotEditable):
		return http.StatusBadRequest, "invalid_grid_state", err.Error()
	case errors.Is(err, circuitbreaker.ErrOpen):
		return http.StatusServiceUnavailable, "store_unavailable", "data store temporarily unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout", "data store timed out"
	default:
		return http.StatusBadGateway, "store_error", "data store request failed"
	}
}

// selection returns the resolved tenant or writes the no-tenant error
func selection(w http.ResponseWriter, r *http.Request) (tenant.Selection, bool) {
	sel, ok := tenant.FromContext(r.Context())
	if !ok || sel.TenantID == "" {
		WriteError(w, r, tenant.ErrNoTenant)
		return tenant.Selection{}, false
	}
	return sel, true
}
