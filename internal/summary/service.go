package summary

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aryan0dhankhar/estatebooks/internal/domain"
)

// Store reads the transactions and months a summary is built from
type Store interface {
	LedgerTransactions(ctx context.Context, tenantID string, from, to time.Time) ([]domain.LedgerTransaction, error)
	TransactionMonths(ctx context.Context, tenantID string, limit int) ([]string, error)
}

// Service serves monthly summaries
type Service struct {
	store   Store
	builder *Builder
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a monthly summary service
func NewService(store Store, builder *Builder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, builder: builder, logger: logger, now: time.Now}
}

// Summary builds the summary of month (YYYY-MM); an empty month means the
// current one.
func (s *Service) Summary(ctx context.Context, tenantID, month string) (Summary, error) {
	now := s.now()
	m := MonthOf(now)
	if month != "" {
		parsed, err := ParseMonth(month)
		if err != nil {
			return Summary{}, err
		}
		m = parsed
	}

	var (
		txs    []domain.LedgerTransaction
		months []string
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.store.LedgerTransactions(gctx, tenantID, m.Previous().Start(), m.Next().Start())
		return err
	})
	g.Go(func() error {
		var err error
		months, err = s.store.TransactionMonths(gctx, tenantID, MaxMonths)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, err
	}

	s.logger.Debug("building monthly summary",
		slog.String("tenant_id", tenantID),
		slog.String("month", m.String()),
		slog.Int("transactions", len(txs)),
	)
	out := s.builder.Build(m, txs, now)
	if months != nil {
		out.Months = months
	}
	return out, nil
}
