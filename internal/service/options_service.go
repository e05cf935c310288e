package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/aryan0dhankhar/estatebooks/internal/catalog"
	"github.com/aryan0dhankhar/estatebooks/internal/domain"
)

// ErrUnknownOptionKind is returned for option kinds outside the catalog
var ErrUnknownOptionKind = errors.New("unknown option kind")

// OptionStore lists raw option pairs per tenant
type OptionStore interface {
	ListOptions(ctx context.Context, tenantID string, kind catalog.OptionKind) ([]domain.Option, error)
}

// OptionsCache is the read-through cache used for option lists
type OptionsCache interface {
	Get(ctx context.Context, tenantID string, kind catalog.OptionKind) ([]domain.Option, bool)
	Set(ctx context.Context, tenantID string, kind catalog.OptionKind, opts []domain.Option)
}

// OptionsService builds dropdown option lists
type OptionsService struct {
	store  OptionStore
	cache  OptionsCache
	guard  *storeGuard
	logger *slog.Logger
}

// NewOptionsService creates an options service; cache may be nil
func NewOptionsService(store OptionStore, cache OptionsCache, logger *slog.Logger) *OptionsService {
	if logger == nil {
		logger = slog.Default()
	}
	return &OptionsService{store: store, cache: cache, guard: newStoreGuard(logger), logger: logger}
}

// Options returns the option list of kind for the tenant
func (s *OptionsService) Options(ctx context.Context, tenantID string, kind catalog.OptionKind) ([]domain.Option, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOptionKind, kind)
	}
	if s.cache != nil {
		if opts, ok := s.cache.Get(ctx, tenantID, kind); ok {
			return opts, nil
		}
	}

	var (
		opts []domain.Option
		err  error
	)
	if kind == catalog.OptionsCombinedPartners {
		opts, err = s.combinedPartners(ctx, tenantID)
	} else {
		opts, err = guardRead(ctx, s.guard, "list_options", tenantID+"/"+string(kind), func(ctx context.Context) ([]domain.Option, error) {
			return s.store.ListOptions(ctx, tenantID, kind)
		})
	}
	if err != nil {
		return nil, err
	}
	if opts == nil {
		opts = []domain.Option{}
	}

	if s.cache != nil {
		s.cache.Set(ctx, tenantID, kind, opts)
	}
	return opts, nil
}

// combinedPartners merges renters and business partners into one list whose
// values are encoded partner selections.
func (s *OptionsService) combinedPartners(ctx context.Context, tenantID string) ([]domain.Option, error) {
	var renters, partners []domain.Option
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		renters, err = s.Options(gctx, tenantID, catalog.OptionsTenants)
		return err
	})
	g.Go(func() error {
		var err error
		partners, err = s.Options(gctx, tenantID, catalog.OptionsBusinessPartners)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to build combined partner options: %w", err)
	}

	out := make([]domain.Option, 0, len(renters)+len(partners))
	for _, o := range renters {
		out = append(out, partnerOption(o, catalog.PartnerTenant, "Tenant"))
	}
	for _, o := range partners {
		out = append(out, partnerOption(o, catalog.PartnerBusinessPartner, "Business"))
	}
	return out, nil
}

func partnerOption(o domain.Option, partnerType, suffix string) domain.Option {
	return domain.Option{
		ID:    o.ID,
		Label: fmt.Sprintf("%s (%s)", o.Label, suffix),
		Value: catalog.PartnerSelection{PartnerID: o.ID, PartnerType: partnerType}.Encode(),
		Type:  partnerType,
	}
}
