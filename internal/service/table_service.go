package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/aryan0dhankhar/estatebooks/internal/catalog"
	"github.com/aryan0dhankhar/estatebooks/internal/grid"
	"github.com/aryan0dhankhar/estatebooks/internal/observability/metrics"
	"github.com/aryan0dhankhar/estatebooks/internal/observability/tracing"
)

// ErrUnknownTable is returned for tables outside the catalog
var ErrUnknownTable = errors.New("unknown table")

// sectionConcurrency bounds parallel section fetches per page
const sectionConcurrency = 4

// RowStore reads display rows of one table
type RowStore interface {
	FetchRows(ctx context.Context, tenantID string, tbl catalog.Table) ([]grid.Row, int, error)
}

// TableData is one table's rows with fully populated column descriptors
type TableData struct {
	Table   string                  `json:"table"`
	Title   string                  `json:"title"`
	Columns []grid.ColumnDescriptor `json:"columns"`
	Rows    []grid.Row              `json:"rows"`
	// Dropped counts rows the store returned without an id.
	Dropped int `json:"dropped,omitempty"`
}

// Section is one independently loaded block of a multi-table page
type Section struct {
	Table string     `json:"table"`
	Title string     `json:"title"`
	Data  *TableData `json:"data,omitempty"`
	Error string     `json:"error,omitempty"`
}

// TableService serves table rows, server-rendered grid pages and sections
type TableService struct {
	rows        RowStore
	options     *OptionsService
	guard       *storeGuard
	pageSize    int
	maxPageSize int
	logger      *slog.Logger
}

// NewTableService creates a table service
func NewTableService(rows RowStore, options *OptionsService, defaultPageSize, maxPageSize int, logger *slog.Logger) *TableService {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultPageSize <= 0 {
		defaultPageSize = grid.DefaultConfig().DefaultPageSize
	}
	if maxPageSize < defaultPageSize {
		maxPageSize = defaultPageSize
	}
	return &TableService{
		rows:        rows,
		options:     options,
		guard:       newStoreGuard(logger),
		pageSize:    defaultPageSize,
		maxPageSize: maxPageSize,
		logger:      logger,
	}
}

// Tables lists the catalog
func (s *TableService) Tables() []catalog.Table {
	return catalog.All()
}

func (s *TableService) lookup(name string) (catalog.Table, error) {
	tbl, ok := catalog.Lookup(name)
	if !ok {
		return catalog.Table{}, fmt.Errorf("%w: %q", ErrUnknownTable, name)
	}
	return tbl, nil
}

// Columns returns the descriptors of a table with dropdown options filled in.
// An option list that fails to load leaves its column without options.
func (s *TableService) Columns(ctx context.Context, tenantID string, tbl catalog.Table) []grid.ColumnDescriptor {
	cols := tbl.Columns
	if s.options == nil || len(tbl.Options) == 0 {
		return cols
	}

	filled := make([][]grid.Option, len(cols))
	g, gctx := errgroup.WithContext(ctx)
	for i, col := range cols {
		kind, ok := tbl.Options[col.Key]
		if !ok {
			continue
		}
		g.Go(func() error {
			opts, err := s.options.Options(gctx, tenantID, kind)
			if err != nil {
				s.logger.Warn("failed to load column options",
					slog.String("table", tbl.Name),
					slog.String("column", col.Key),
					slog.String("error", err.Error()),
				)
				return nil
			}
			list := make([]grid.Option, 0, len(opts))
			for _, o := range opts {
				list = append(list, grid.Option{Label: o.Label, Value: o.Value, Type: o.Type})
			}
			filled[i] = list
			return nil
		})
	}
	_ = g.Wait()

	for i := range cols {
		if filled[i] != nil {
			cols[i].Options = filled[i]
		}
	}
	return cols
}

// Rows loads a table's rows and its columns concurrently
func (s *TableService) Rows(ctx context.Context, tenantID, name string) (*TableData, error) {
	ctx, span := otel.Tracer(tracing.TracerName).Start(ctx, "TableService.Rows")
	defer span.End()
	span.SetAttributes(attribute.String("table", name))

	tbl, err := s.lookup(name)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	data := &TableData{Table: tbl.Name, Title: tbl.Title}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		type fetched struct {
			rows    []grid.Row
			dropped int
		}
		res, err := guardRead(gctx, s.guard, "fetch_rows", tenantID+"/"+tbl.DisplayRPC, func(ctx context.Context) (fetched, error) {
			rows, dropped, err := s.rows.FetchRows(ctx, tenantID, tbl)
			return fetched{rows: rows, dropped: dropped}, err
		})
		if err != nil {
			return err
		}
		data.Rows, data.Dropped = res.rows, res.dropped
		return nil
	})
	g.Go(func() error {
		data.Columns = s.Columns(gctx, tenantID, tbl)
		return nil
	})
	if err := g.Wait(); err != nil {
		metrics.ObserveSectionFetch(tbl.Name, "error", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	metrics.ObserveSectionFetch(tbl.Name, "ok", time.Since(start))
	if data.Rows == nil {
		data.Rows = []grid.Row{}
	}
	span.SetAttributes(attribute.Int("rows", len(data.Rows)), attribute.Int("dropped", data.Dropped))
	return data, nil
}

// View renders one page of a table server side
func (s *TableService) View(ctx context.Context, tenantID, name string, state grid.State) (grid.View, error) {
	data, err := s.Rows(ctx, tenantID, name)
	if err != nil {
		return grid.View{}, err
	}
	cfg := grid.DefaultConfig()
	cfg.DefaultPageSize = s.pageSize
	if state.PageSize > s.maxPageSize {
		state.PageSize = s.maxPageSize
	}
	if state.SortKey != "" {
		if col, ok := grid.FindColumn(data.Columns, state.SortKey); !ok || !col.Sortable {
			return grid.View{}, fmt.Errorf("%w: %q", grid.ErrNotSortable, state.SortKey)
		}
	}
	return grid.Render(data.Rows, data.Columns, cfg, state), nil
}

// Sections loads several tables in parallel. A failing table carries its error
// and never prevents the others from rendering.
func (s *TableService) Sections(ctx context.Context, tenantID string, names []string) []Section {
	out := make([]Section, len(names))
	var g errgroup.Group
	g.SetLimit(sectionConcurrency)
	for i, name := range names {
		out[i] = Section{Table: name}
		if tbl, ok := catalog.Lookup(name); ok {
			out[i].Title = tbl.Title
		}
		g.Go(func() error {
			data, err := s.Rows(ctx, tenantID, name)
			if err != nil {
				s.logger.Warn("section failed to load",
					slog.String("table", name),
					slog.String("tenant_id", tenantID),
					slog.String("error", err.Error()),
				)
				out[i].Error = sectionError(err)
				return nil
			}
			out[i].Data = data
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func sectionError(err error) string {
	switch {
	case errors.Is(err, ErrUnknownTable):
		return "unknown table"
	case errors.Is(err, context.DeadlineExceeded):
		return "timed out loading data"
	default:
		return "failed to load data"
	}
}
