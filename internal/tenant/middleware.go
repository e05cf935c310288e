package tenant

import (
	"context"
	"errors"
	"net/http"

	"github.com/aryan0dhankhar/estatebooks/internal/domain"
	"github.com/aryan0dhankhar/estatebooks/internal/observability/metrics"
)

type selectionKey struct{}
type authorizedKey struct{}

// WithSelection attaches a selection to ctx
func WithSelection(ctx context.Context, sel Selection) context.Context {
	return context.WithValue(ctx, selectionKey{}, sel)
}

// FromContext returns the selection attached by the middleware
func FromContext(ctx context.Context) (Selection, bool) {
	sel, ok := ctx.Value(selectionKey{}).(Selection)
	return sel, ok
}

// AuthorizedFromContext returns the user's tenant list attached by the middleware
func AuthorizedFromContext(ctx context.Context) []domain.AuthorizedTenant {
	list, _ := ctx.Value(authorizedKey{}).([]domain.AuthorizedTenant)
	return list
}

// UserIDFunc extracts the authenticated user id from a request context
type UserIDFunc func(ctx context.Context) (string, bool)

// ErrorWriter renders a resolution failure
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware resolves the tenant for authenticated requests. Requests without
// a user pass through untouched so public routes keep working.
func Middleware(res *Resolver, userID UserIDFunc, fail ErrorWriter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			uid, ok := userID(r.Context())
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			sel, authorized, err := res.Resolve(r.Context(), uid, r)
			if err != nil {
				if errors.Is(err, ErrNoTenant) {
					metrics.ObserveTenantResolution("none")
				}
				fail(w, r, err)
				return
			}
			metrics.ObserveTenantResolution(string(sel.Source))

			ctx := WithSelection(r.Context(), sel)
			ctx = context.WithValue(ctx, authorizedKey{}, authorized)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
