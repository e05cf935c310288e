package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/aryan0dhankhar/estatebooks/internal/domain"
	"github.com/aryan0dhankhar/estatebooks/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/estatebooks/internal/reliability/retry"
	"github.com/aryan0dhankhar/estatebooks/pkg/database"
)

// storeGuard wraps idempotent store reads with retries and one circuit
// breaker per tenant and read target. A broken table RPC never fails its
// sibling sections or another tenant's reads. Writes never go through it.
type storeGuard struct {
	mu       sync.Mutex
	breakers map[string]*circuitbreaker.CircuitBreaker
	retry    *retry.Config
	logger   *slog.Logger
}

func newStoreGuard(logger *slog.Logger) *storeGuard {
	cfg := retry.DefaultConfig()
	cfg.MaxBackoff = time.Second
	cfg.Retryable = transient
	return &storeGuard{
		breakers: make(map[string]*circuitbreaker.CircuitBreaker),
		retry:    cfg,
		logger:   logger,
	}
}

func (g *storeGuard) breaker(target string) *circuitbreaker.CircuitBreaker {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cb, ok := g.breakers[target]; ok {
		return cb
	}
	cb := circuitbreaker.NewCircuitBreaker(5, 2, 10*time.Second)
	cb.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		g.logger.Warn("store circuit breaker changed state",
			slog.String("target", target),
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	g.breakers[target] = cb
	return cb
}

// transientSQLClasses are the SQLSTATE classes a repeated read can recover
// from: connection exceptions, transaction rollbacks, insufficient resources
// and operator intervention.
var transientSQLClasses = map[pq.ErrorClass]bool{
	"08": true,
	"40": true,
	"53": true,
	"57": true,
}

// transient reports whether a failed read is worth repeating. Errors the
// database raised for the statement itself (undefined objects, raised
// exceptions, bad data) are permanent.
func transient(err error) bool {
	if errors.Is(err, domain.ErrNotFound) ||
		errors.Is(err, domain.ErrConstraint) ||
		errors.Is(err, database.ErrNoTenant) ||
		errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return transientSQLClasses[pqErr.Code.Class()]
	}
	return true
}

// guardRead runs fn under the breaker of target with retries
func guardRead[T any](ctx context.Context, g *storeGuard, op, target string, fn func(ctx context.Context) (T, error)) (T, error) {
	cb := g.breaker(target)
	return retry.Do(ctx, g.retry, g.logger, op, func(ctx context.Context) (T, error) {
		return circuitbreaker.Execute(ctx, cb, func(err error) bool { return !transient(err) }, fn)
	})
}
