package grid

import (
	"slices"
	"strings"
)

// State is the view state a grid is rendered with
type State struct {
	SortKey       string              `json:"sortKey,omitempty"`
	SortDesc      bool                `json:"sortDesc,omitempty"`
	ColumnFilters map[string][]string `json:"columnFilters,omitempty"`
	GlobalFilter  string              `json:"globalFilter,omitempty"`
	PageIndex     int                 `json:"pageIndex"`
	PageSize      int                 `json:"pageSize"`
}

// RenderedRow is one visible row of a View
type RenderedRow struct {
	ID       string `json:"id"`
	Cells    []Cell `json:"cells"`
	Selected bool   `json:"selected,omitempty"`
}

// View is the result of rendering rows against columns, config and state
type View struct {
	Columns      []ColumnDescriptor `json:"columns"`
	Rows         []RenderedRow      `json:"rows"`
	TotalRows    int                `json:"totalRows"`
	FilteredRows int                `json:"filteredRows"`
	PageIndex    int                `json:"pageIndex"`
	PageSize     int                `json:"pageSize"`
	PageCount    int                `json:"pageCount"`
	SortKey      string             `json:"sortKey,omitempty"`
	SortDesc     bool               `json:"sortDesc,omitempty"`
}

// Render filters, sorts and paginates rows. Columns marked hidden never
// produce cells. Rows without an id are skipped.
func Render(rows []Row, columns []ColumnDescriptor, cfg Config, state State) View {
	visible := make([]ColumnDescriptor, 0, len(columns))
	for _, col := range columns {
		if !col.Hidden {
			visible = append(visible, col)
		}
	}

	withID := make([]Row, 0, len(rows))
	for _, r := range rows {
		if _, ok := r.ID(); ok {
			withID = append(withID, r)
		}
	}

	view := View{Columns: visible, TotalRows: len(withID)}

	filtered := withID
	if cfg.EnableFiltering {
		filtered = applyFilters(withID, columns, visible, state)
	}
	view.FilteredRows = len(filtered)

	if cfg.EnableSorting && state.SortKey != "" {
		if col, ok := FindColumn(columns, state.SortKey); ok && col.Sortable {
			filtered = sortRows(filtered, col.Key, state.SortDesc)
			view.SortKey = col.Key
			view.SortDesc = state.SortDesc
		}
	}

	page := filtered
	if cfg.EnablePagination {
		size := cfg.pageSize(state.PageSize)
		count := (len(filtered) + size - 1) / size
		index := clampPage(state.PageIndex, count)
		start := min(index*size, len(filtered))
		end := min(start+size, len(filtered))
		page = filtered[start:end]
		view.PageIndex, view.PageSize, view.PageCount = index, size, count
	} else {
		view.PageSize = len(filtered)
		if len(filtered) > 0 {
			view.PageCount = 1
		}
	}

	view.Rows = make([]RenderedRow, 0, len(page))
	for _, r := range page {
		id, _ := r.ID()
		rr := RenderedRow{ID: id, Cells: make([]Cell, 0, len(visible))}
		for _, col := range visible {
			rr.Cells = append(rr.Cells, FormatCell(col, r))
		}
		view.Rows = append(view.Rows, rr)
	}
	return view
}

func clampPage(index, count int) int {
	if count == 0 || index < 0 {
		return 0
	}
	if index >= count {
		return count - 1
	}
	return index
}

// applyFilters keeps rows that match every active column filter and the
// global filter.
func applyFilters(rows []Row, columns, visible []ColumnDescriptor, state State) []Row {
	type activeFilter struct {
		key    string
		values map[string]struct{}
	}
	var active []activeFilter
	for key, values := range state.ColumnFilters {
		if len(values) == 0 {
			continue
		}
		col, ok := FindColumn(columns, key)
		if !ok || !col.Filterable {
			continue
		}
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		active = append(active, activeFilter{key: key, values: set})
	}

	needle := strings.ToLower(strings.TrimSpace(state.GlobalFilter))
	var searchable []ColumnDescriptor
	if needle != "" {
		for _, col := range visible {
			if col.Filterable {
				searchable = append(searchable, col)
			}
		}
	}

	if len(active) == 0 && needle == "" {
		return rows
	}

	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		keep := true
		for _, f := range active {
			if _, ok := f.values[Stringify(r[f.key])]; !ok {
				keep = false
				break
			}
		}
		if keep && needle != "" {
			keep = matchesGlobal(r, searchable, needle)
		}
		if keep {
			out = append(out, r)
		}
	}
	return out
}

// matchesGlobal searches the stringified values, not the formatted display
func matchesGlobal(r Row, columns []ColumnDescriptor, needle string) bool {
	for _, col := range columns {
		if strings.Contains(strings.ToLower(Stringify(r[col.Key])), needle) {
			return true
		}
	}
	return false
}

// sortRows sorts a copy stably ascending; descending is the exact reverse.
func sortRows(rows []Row, key string, desc bool) []Row {
	out := slices.Clone(rows)
	slices.SortStableFunc(out, func(a, b Row) int {
		return Compare(a[key], b[key])
	})
	if desc {
		slices.Reverse(out)
	}
	return out
}

// DistinctValues lists the distinct string forms of a column, in first-seen
// order. Filter pickers offer these values.
func DistinctValues(rows []Row, key string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, r := range rows {
		v := Stringify(r[key])
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
