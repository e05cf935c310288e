package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aryan0dhankhar/estatebooks/internal/catalog"
	"github.com/aryan0dhankhar/estatebooks/internal/dispatch"
	"github.com/aryan0dhankhar/estatebooks/internal/domain"
	"github.com/aryan0dhankhar/estatebooks/internal/grid"
	"github.com/aryan0dhankhar/estatebooks/internal/service"
)

// filterPrefix marks per-column filter query parameters, e.g. f.status=open,closed
const filterPrefix = "f."

// TableReader serves table rows and rendered pages
type TableReader interface {
	Tables() []catalog.Table
	Rows(ctx context.Context, tenantID, name string) (*service.TableData, error)
	View(ctx context.Context, tenantID, name string, state grid.State) (grid.View, error)
	Sections(ctx context.Context, tenantID string, names []string) []service.Section
}

// OptionReader serves dropdown option lists
type OptionReader interface {
	Options(ctx context.Context, tenantID string, kind catalog.OptionKind) ([]domain.Option, error)
}

// TablesHandler serves the table catalog, rows, grid pages and options
type TablesHandler struct {
	tables  TableReader
	options OptionReader
	logger  *slog.Logger
}

// NewTablesHandler creates a tables handler
func NewTablesHandler(tables TableReader, options OptionReader, logger *slog.Logger) *TablesHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TablesHandler{tables: tables, options: options, logger: logger}
}

// TableSummary is one catalog entry
type TableSummary struct {
	Name     string   `json:"name"`
	Title    string   `json:"title"`
	Editable []string `json:"editable"`
}

// List handles GET /api/tables
func (h *TablesHandler) List(w http.ResponseWriter, r *http.Request) {
	tables := h.tables.Tables()
	out := make([]TableSummary, 0, len(tables))
	for _, t := range tables {
		editable := t.EditableFields()
		if editable == nil {
			editable = []string{}
		}
		out = append(out, TableSummary{Name: t.Name, Title: t.Title, Editable: editable})
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: out})
}

// Rows handles GET /api/tables/{table}/rows
func (h *TablesHandler) Rows(w http.ResponseWriter, r *http.Request) {
	sel, ok := selection(w, r)
	if !ok {
		return
	}
	data, err := h.tables.Rows(r.Context(), sel.TenantID, r.PathValue("table"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: data})
}

// View handles GET /api/tables/{table}: one server-rendered page
func (h *TablesHandler) View(w http.ResponseWriter, r *http.Request) {
	sel, ok := selection(w, r)
	if !ok {
		return
	}
	state, err := ParseState(r.URL.Query())
	if err != nil {
		WriteError(w, r, err)
		return
	}
	view, err := h.tables.View(r.Context(), sel.TenantID, r.PathValue("table"), state)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: view})
}

// Sections handles GET /api/sections?tables=a,b. Sections fail independently,
// so the response is 200 even when some carry an error.
func (h *TablesHandler) Sections(w http.ResponseWriter, r *http.Request) {
	sel, ok := selection(w, r)
	if !ok {
		return
	}
	names := splitList(r.URL.Query().Get("tables"))
	if len(names) == 0 {
		for _, t := range h.tables.Tables() {
			names = append(names, t.Name)
		}
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: h.tables.Sections(r.Context(), sel.TenantID, names)})
}

// Options handles GET /api/options/{kind}
func (h *TablesHandler) Options(w http.ResponseWriter, r *http.Request) {
	sel, ok := selection(w, r)
	if !ok {
		return
	}
	kind := catalog.OptionKind(r.PathValue("kind"))
	if !kind.Valid() {
		WriteError(w, r, fmt.Errorf("%w: %s", service.ErrUnknownOptionKind, kind))
		return
	}
	opts, err := h.options.Options(r.Context(), sel.TenantID, kind)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	if opts == nil {
		opts = []domain.Option{}
	}
	writeJSON(w, http.StatusOK, DataResponse{Data: opts})
}

// ParseState reads grid state from query parameters: sort, desc, q,
// f.<column>=a,b, page (1-based) and pageSize.
func ParseState(q url.Values) (grid.State, error) {
	state := grid.State{
		SortKey:      strings.TrimSpace(q.Get("sort")),
		GlobalFilter: q.Get("q"),
	}
	if v := q.Get("desc"); v != "" {
		desc, err := strconv.ParseBool(v)
		if err != nil {
			return grid.State{}, &dispatch.ValidationError{Field: "desc", Message: "must be a boolean"}
		}
		state.SortDesc = desc
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return grid.State{}, &dispatch.ValidationError{Field: "page", Message: "must be a positive integer"}
		}
		state.PageIndex = page - 1
	}
	if v := q.Get("pageSize"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 {
			return grid.State{}, &dispatch.ValidationError{Field: "pageSize", Message: "must be a positive integer"}
		}
		state.PageSize = size
	}
	for key, values := range q {
		col, ok := strings.CutPrefix(key, filterPrefix)
		if !ok || col == "" {
			continue
		}
		var selected []string
		for _, v := range values {
			selected = append(selected, splitList(v)...)
		}
		if len(selected) == 0 {
			continue
		}
		if state.ColumnFilters == nil {
			state.ColumnFilters = make(map[string][]string)
		}
		state.ColumnFilters[col] = selected
	}
	return state, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
