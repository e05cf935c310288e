package rent

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/estatebooks/internal/domain"
)

// Store lists rent transactions of a booking category in a year
type Store interface {
	RentTransactions(ctx context.Context, tenantID, category string, year int) ([]domain.RentTransaction, error)
}

// Service serves rent overviews
type Service struct {
	store    Store
	builder  *Builder
	category string
	logger   *slog.Logger
	now      func() time.Time
}

// NewService creates a rent overview service for the given booking category
func NewService(store Store, builder *Builder, category string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, builder: builder, category: category, logger: logger, now: time.Now}
}

// Overview builds the overview of year; year 0 means the current year
func (s *Service) Overview(ctx context.Context, tenantID string, year int) (Overview, error) {
	if year == 0 {
		year = s.now().Year()
	}
	if year < 1900 || year > 9999 {
		return Overview{}, fmt.Errorf("invalid year %d", year)
	}
	txs, err := s.store.RentTransactions(ctx, tenantID, s.category, year)
	if err != nil {
		return Overview{}, err
	}
	s.logger.Debug("building rent overview",
		slog.String("tenant_id", tenantID),
		slog.Int("year", year),
		slog.Int("transactions", len(txs)),
	)
	return s.builder.Build(year, txs), nil
}
