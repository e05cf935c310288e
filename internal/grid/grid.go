package grid

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
)

var (
	ErrUnknownColumn   = errors.New("unknown column")
	ErrNotSortable     = errors.New("column is not sortable")
	ErrNotFilterable   = errors.New("column is not filterable")
	ErrNotEditable     = errors.New("column is not editable")
	ErrRowNotFound     = errors.New("row not found")
	ErrFeatureDisabled = errors.New("feature disabled")
	ErrCellBusy        = errors.New("a save for this cell is already in flight")
	ErrNotEditing      = errors.New("no cell is being edited")
	ErrEditInProgress  = errors.New("another cell is being edited")
)

type cellKey struct {
	rowID string
	key   string
}

// Grid holds the rows of one table together with its view state, the
// selection and the optimistic edits layered on top of the server rows.
type Grid struct {
	mu       sync.Mutex
	columns  []ColumnDescriptor
	cfg      Config
	rows     []Row
	order    []string
	state    State
	selected map[string]struct{}
	edits    map[cellKey]*OptimisticEdit
	inFlight map[cellKey]struct{}
	editing  *draft
	now      func() time.Time
}

// New creates a grid for the given columns
func New(columns []ColumnDescriptor, cfg Config) (*Grid, error) {
	if err := ValidateColumns(columns); err != nil {
		return nil, err
	}
	return &Grid{
		columns:  slices.Clone(columns),
		cfg:      cfg,
		state:    State{PageSize: cfg.pageSize(0)},
		selected: map[string]struct{}{},
		edits:    map[cellKey]*OptimisticEdit{},
		inFlight: map[cellKey]struct{}{},
		now:      time.Now,
	}, nil
}

// Columns returns the column descriptors
func (g *Grid) Columns() []ColumnDescriptor {
	return slices.Clone(g.columns)
}

// State returns the current view state
func (g *Grid) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	s := g.state
	if s.ColumnFilters != nil {
		cp := make(map[string][]string, len(s.ColumnFilters))
		for k, v := range s.ColumnFilters {
			cp[k] = slices.Clone(v)
		}
		s.ColumnFilters = cp
	}
	return s
}

// SetRows replaces the server rows. Pending optimistic edits are reconciled
// against the new data and the number of discarded edits is returned.
func (g *Grid) SetRows(rows []Row) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rows = make([]Row, 0, len(rows))
	ids := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		id, ok := r.ID()
		if !ok {
			continue
		}
		if _, dup := ids[id]; dup {
			continue
		}
		ids[id] = struct{}{}
		g.rows = append(g.rows, r)
	}

	for id := range g.selected {
		if _, ok := ids[id]; !ok {
			delete(g.selected, id)
		}
	}
	if g.editing != nil {
		if _, ok := ids[g.editing.rowID]; !ok {
			g.editing = nil
		}
	}
	if g.order != nil {
		kept := g.order[:0]
		for _, id := range g.order {
			if _, ok := ids[id]; ok {
				kept = append(kept, id)
			}
		}
		g.order = kept
	}
	return g.reconcileLocked()
}

// Rows returns the rows in base order with optimistic values applied
func (g *Grid) Rows() []Row {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.displayRowsLocked()
}

func (g *Grid) displayRowsLocked() []Row {
	byID := make(map[string]Row, len(g.rows))
	base := make([]string, 0, len(g.rows))
	for _, r := range g.rows {
		id, _ := r.ID()
		byID[id] = r
		base = append(base, id)
	}

	ordered := base
	if g.order != nil {
		ordered = make([]string, 0, len(base))
		placed := make(map[string]struct{}, len(g.order))
		for _, id := range g.order {
			ordered = append(ordered, id)
			placed[id] = struct{}{}
		}
		for _, id := range base {
			if _, ok := placed[id]; !ok {
				ordered = append(ordered, id)
			}
		}
	}

	out := make([]Row, 0, len(ordered))
	for _, id := range ordered {
		r := byID[id]
		var overlay Row
		for ck, e := range g.edits {
			if ck.rowID != id {
				continue
			}
			if overlay == nil {
				overlay = r.Clone()
			}
			overlay[ck.key] = e.Value
		}
		if overlay != nil {
			r = overlay
		}
		out = append(out, r)
	}
	return out
}

func (g *Grid) findRowLocked(id string) (Row, bool) {
	for _, r := range g.rows {
		if rid, _ := r.ID(); rid == id {
			return r, true
		}
	}
	return nil, false
}

// displayedLocked returns the value a cell currently shows
func (g *Grid) displayedLocked(rowID, key string) any {
	if e, ok := g.edits[cellKey{rowID, key}]; ok {
		return e.Value
	}
	r, _ := g.findRowLocked(rowID)
	return r[key]
}

// Value returns the value a cell currently shows, optimistic edits included
func (g *Grid) Value(rowID, key string) (any, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.findRowLocked(rowID); !ok {
		return nil, false
	}
	return g.displayedLocked(rowID, key), true
}

// ToggleSort cycles a column through ascending and descending order. Choosing
// a different column starts ascending.
func (g *Grid) ToggleSort(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.cfg.EnableSorting {
		return fmt.Errorf("sorting: %w", ErrFeatureDisabled)
	}
	col, ok := FindColumn(g.columns, key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, key)
	}
	if !col.Sortable {
		return fmt.Errorf("%w: %s", ErrNotSortable, key)
	}
	if g.state.SortKey == key {
		g.state.SortDesc = !g.state.SortDesc
	} else {
		g.state.SortKey = key
		g.state.SortDesc = false
	}
	g.state.PageIndex = 0
	return nil
}

// ClearSort restores base order
func (g *Grid) ClearSort() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.SortKey = ""
	g.state.SortDesc = false
	g.state.PageIndex = 0
}

// SetColumnFilter restricts a column to the given values. An empty set
// removes the filter.
func (g *Grid) SetColumnFilter(key string, values []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.cfg.EnableFiltering {
		return fmt.Errorf("filtering: %w", ErrFeatureDisabled)
	}
	col, ok := FindColumn(g.columns, key)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownColumn, key)
	}
	if !col.Filterable {
		return fmt.Errorf("%w: %s", ErrNotFilterable, key)
	}
	if len(values) == 0 {
		delete(g.state.ColumnFilters, key)
	} else {
		if g.state.ColumnFilters == nil {
			g.state.ColumnFilters = map[string][]string{}
		}
		g.state.ColumnFilters[key] = slices.Clone(values)
	}
	g.state.PageIndex = 0
	return nil
}

// SetGlobalFilter sets the free-text search
func (g *Grid) SetGlobalFilter(q string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.GlobalFilter = q
	g.state.PageIndex = 0
}

// ClearFilters removes all column filters and the global filter
func (g *Grid) ClearFilters() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.ColumnFilters = nil
	g.state.GlobalFilter = ""
	g.state.PageIndex = 0
}

// SetPage moves to a page; out of range indexes are clamped on render
func (g *Grid) SetPage(index int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.PageIndex = max(index, 0)
}

// SetPageSize changes the page size and returns to the first page
func (g *Grid) SetPageSize(size int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state.PageSize = g.cfg.pageSize(size)
	g.state.PageIndex = 0
}

// Move reorders a row in the base order
func (g *Grid) Move(rowID string, to int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.cfg.EnableDragReorder {
		return fmt.Errorf("reordering: %w", ErrFeatureDisabled)
	}
	if _, ok := g.findRowLocked(rowID); !ok {
		return fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
	}
	ids := make([]string, 0, len(g.rows))
	for _, r := range g.displayRowsLocked() {
		id, _ := r.ID()
		if id != rowID {
			ids = append(ids, id)
		}
	}
	to = min(max(to, 0), len(ids))
	g.order = slices.Insert(ids, to, rowID)
	return nil
}

// Order returns row ids in base order
func (g *Grid) Order() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	rows := g.displayRowsLocked()
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		id, _ := r.ID()
		ids = append(ids, id)
	}
	return ids
}

// ToggleSelect flips the selection of a row and reports the new state
func (g *Grid) ToggleSelect(rowID string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.cfg.EnableRowSelection {
		return false, fmt.Errorf("row selection: %w", ErrFeatureDisabled)
	}
	if _, ok := g.findRowLocked(rowID); !ok {
		return false, fmt.Errorf("%w: %s", ErrRowNotFound, rowID)
	}
	if _, ok := g.selected[rowID]; ok {
		delete(g.selected, rowID)
		return false, nil
	}
	g.selected[rowID] = struct{}{}
	return true, nil
}

// Selected returns the selected row ids in base order
func (g *Grid) Selected() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, r := range g.displayRowsLocked() {
		id, _ := r.ID()
		if _, ok := g.selected[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Render produces the current view, marking optimistic and edited cells
func (g *Grid) Render() View {
	g.mu.Lock()
	defer g.mu.Unlock()

	view := Render(g.displayRowsLocked(), g.columns, g.cfg, g.state)
	g.state.PageIndex = view.PageIndex
	for i := range view.Rows {
		row := &view.Rows[i]
		if _, ok := g.selected[row.ID]; ok {
			row.Selected = true
		}
		for j := range row.Cells {
			cell := &row.Cells[j]
			ck := cellKey{row.ID, cell.Key}
			if _, ok := g.edits[ck]; ok {
				cell.Pending = true
			}
			if g.editing != nil && g.editing.rowID == row.ID && g.editing.key == cell.Key {
				cell.Editing = true
				cell.Draft = g.editing.value
			}
		}
	}
	return view
}
