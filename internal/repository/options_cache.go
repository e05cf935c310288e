package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aryan0dhankhar/estatebooks/internal/catalog"
	"github.com/aryan0dhankhar/estatebooks/internal/domain"
	"github.com/aryan0dhankhar/estatebooks/internal/infrastructure/redis"
	"github.com/aryan0dhankhar/estatebooks/internal/observability/metrics"
	"github.com/aryan0dhankhar/estatebooks/pkg/cache"
)

// KV is the subset of the Redis client the options cache needs
type KV interface {
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	DeletePrefix(ctx context.Context, prefix string) error
}

// optionSources maps edited tables to the option kinds built from them
var optionSources = map[string][]catalog.OptionKind{
	"tenants":            {catalog.OptionsTenants, catalog.OptionsCombinedPartners},
	"business_partners":  {catalog.OptionsBusinessPartners, catalog.OptionsCombinedPartners},
	"properties":         {catalog.OptionsProperties},
	"booking_categories": {catalog.OptionsBookingCategories},
}

// OptionsCache caches option lists per tenant in Redis, falling back to an
// in-process cache when Redis is absent or failing.
type OptionsCache struct {
	remote KV
	local  *cache.Cache[[]domain.Option]
	ttl    time.Duration
	logger *slog.Logger
}

// NewOptionsCache creates an options cache; remote may be nil
func NewOptionsCache(remote KV, ttl time.Duration, logger *slog.Logger) *OptionsCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &OptionsCache{remote: remote, local: cache.New[[]domain.Option](), ttl: ttl, logger: logger}
}

func optionsKey(tenantID string, kind catalog.OptionKind) string {
	return fmt.Sprintf("options:%s:%s", tenantID, kind)
}

func optionsPrefix(tenantID string) string {
	return fmt.Sprintf("options:%s:", tenantID)
}

// Get returns cached options
func (c *OptionsCache) Get(ctx context.Context, tenantID string, kind catalog.OptionKind) ([]domain.Option, bool) {
	key := optionsKey(tenantID, kind)
	if c.remote != nil {
		data, err := c.remote.Get(ctx, key)
		switch {
		case err == nil:
			var opts []domain.Option
			if err := json.Unmarshal([]byte(data), &opts); err == nil {
				metrics.ObserveOptionsCache(string(kind), true)
				return opts, true
			}
			c.logger.Warn("discarding undecodable cached options", slog.String("key", key))
		case errors.Is(err, redis.ErrMiss):
		default:
			c.logger.Warn("options cache read failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
	opts, ok := c.local.Get(key)
	metrics.ObserveOptionsCache(string(kind), ok)
	return opts, ok
}

// Set stores options for the configured TTL
func (c *OptionsCache) Set(ctx context.Context, tenantID string, kind catalog.OptionKind, opts []domain.Option) {
	key := optionsKey(tenantID, kind)
	c.local.Set(key, opts, c.ttl)
	if c.remote == nil {
		return
	}
	data, err := json.Marshal(opts)
	if err != nil {
		return
	}
	if err := c.remote.Set(ctx, key, string(data), c.ttl); err != nil {
		c.logger.Warn("options cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
}

// InvalidateTenant drops every cached option list of a tenant
func (c *OptionsCache) InvalidateTenant(ctx context.Context, tenantID string) {
	prefix := optionsPrefix(tenantID)
	c.local.Invalidate(prefix)
	if c.remote == nil {
		return
	}
	if err := c.remote.DeletePrefix(ctx, prefix); err != nil {
		c.logger.Warn("options cache invalidation failed", slog.String("tenant_id", tenantID), slog.String("error", err.Error()))
	}
}

// RowUpdated invalidates option lists derived from the edited table
func (c *OptionsCache) RowUpdated(ctx context.Context, tenantID, table, _ string, _ []string) {
	kinds := optionSources[table]
	if len(kinds) == 0 {
		return
	}
	keys := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		key := optionsKey(tenantID, kind)
		c.local.Delete(key)
		keys = append(keys, key)
	}
	if c.remote == nil {
		return
	}
	if err := c.remote.Delete(ctx, keys...); err != nil {
		c.logger.Warn("options cache invalidation failed", slog.String("table", table), slog.String("error", err.Error()))
	}
}
