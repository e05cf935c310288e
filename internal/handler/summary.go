package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/estatebooks/internal/dispatch"
	"github.com/aryan0dhankhar/estatebooks/internal/summary"
)

// MonthlySummarizer builds monthly summaries
type MonthlySummarizer interface {
	Summary(ctx context.Context, tenantID, month string) (summary.Summary, error)
}

// SummaryHandler serves the monthly summary
type SummaryHandler struct {
	summaries MonthlySummarizer
	logger    *slog.Logger
}

// NewSummaryHandler creates a monthly summary handler
func NewSummaryHandler(summaries MonthlySummarizer, logger *slog.Logger) *SummaryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SummaryHandler{summaries: summaries, logger: logger}
}

// ServeHTTP handles GET /api/monthly-summary?month=2025-03. Without a month
// the current month is used.
func (h *SummaryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sel, ok := selection(w, r)
	if !ok {
		return
	}

	month := r.URL.Query().Get("month")
	if month != "" {
		if _, err := summary.ParseMonth(month); err != nil {
			WriteError(w, r, &dispatch.ValidationError{Field: "month", Message: "must be YYYY-MM"})
			return
		}
	}

	out, err := h.summaries.Summary(r.Context(), sel.TenantID, month)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: out})
}
