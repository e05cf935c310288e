package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aryan0dhankhar/estatebooks/internal/dispatch"
	"github.com/aryan0dhankhar/estatebooks/internal/rent"
)

// RentOverviewer builds yearly rent overviews
type RentOverviewer interface {
	Overview(ctx context.Context, tenantID string, year int) (rent.Overview, error)
}

// RentHandler serves the rent overview
type RentHandler struct {
	rent   RentOverviewer
	logger *slog.Logger
}

// NewRentHandler creates a rent handler
func NewRentHandler(rent RentOverviewer, logger *slog.Logger) *RentHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RentHandler{rent: rent, logger: logger}
}

// ServeHTTP handles GET /api/rent-overview?year=2025. Without a year the
// current year is used.
func (h *RentHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sel, ok := selection(w, r)
	if !ok {
		return
	}

	year := 0
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1900 || y > 9999 {
			WriteError(w, r, &dispatch.ValidationError{Field: "year", Message: "must be a four digit year"})
			return
		}
		year = y
	}

	overview, err := h.rent.Overview(r.Context(), sel.TenantID, year)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: overview})
}
