package tenant

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/aryan0dhankhar/estatebooks/internal/domain"
	"github.com/aryan0dhankhar/estatebooks/internal/featureflags"
)

// ResolverOptions configures where the server looks for the selection
type ResolverOptions struct {
	CookieName      string
	CookieMaxAge    time.Duration
	QueryParam      string
	DefaultTenantID string
	SecureCookie    bool
}

// Resolver determines the active tenant of a server request from the query
// parameter, the tenant cookie and the user's memberships.
type Resolver struct {
	members domain.MembershipRepository
	flags   *featureflags.Set
	opts    ResolverOptions
	logger  *slog.Logger
}

// NewResolver creates a resolver
func NewResolver(members domain.MembershipRepository, flags *featureflags.Set, opts ResolverOptions, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.CookieName == "" {
		opts.CookieName = "selectedTenantId"
	}
	if opts.QueryParam == "" {
		opts.QueryParam = "tenant"
	}
	if opts.CookieMaxAge == 0 {
		opts.CookieMaxAge = 30 * 24 * time.Hour
	}
	return &Resolver{members: members, flags: flags, opts: opts, logger: logger}
}

// Resolve returns the selection and the user's authorized tenants. A cookie
// naming a tenant the user no longer belongs to is ignored.
func (r *Resolver) Resolve(ctx context.Context, userID string, req *http.Request) (Selection, []domain.AuthorizedTenant, error) {
	urlParam := req.URL.Query().Get(r.opts.QueryParam)
	cookieValue := ""
	if c, err := req.Cookie(r.opts.CookieName); err == nil {
		cookieValue = c.Value
	}

	authorized, err := r.members.ListAuthorized(ctx, userID)
	if err != nil {
		return Selection{}, nil, fmt.Errorf("list authorized tenants: %w", err)
	}

	if len(authorized) == 0 {
		if cookieValue == "" && r.opts.DefaultTenantID != "" && r.flags.Enabled(featureflags.DemoTenantFallback) {
			r.logger.Warn("using demo tenant fallback", slog.String("user_id", userID))
			return Selection{
				TenantID: r.opts.DefaultTenantID,
				Tenant:   domain.AuthorizedTenant{ID: r.opts.DefaultTenantID, Role: domain.RoleViewer},
				Source:   SourceFallback,
			}, nil, nil
		}
		return Selection{}, nil, ErrNoTenant
	}

	if cookieValue != "" {
		if _, ok := Find(authorized, cookieValue); !ok {
			r.logger.Info("ignoring tenant cookie outside user's memberships",
				slog.String("user_id", userID),
				slog.String("tenant_id", cookieValue),
			)
		}
	}

	sel, err := ResolveInitial(authorized, urlParam, cookieValue)
	if err != nil {
		return Selection{}, nil, err
	}
	return sel, authorized, nil
}

// Cookie builds the tenant cookie for id
func (r *Resolver) Cookie(id string) *http.Cookie {
	return &http.Cookie{
		Name:     r.opts.CookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(r.opts.CookieMaxAge.Seconds()),
		Secure:   r.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// ClearCookie expires the tenant cookie
func (r *Resolver) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     r.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Secure:   r.opts.SecureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

// CookieName returns the tenant cookie name
func (r *Resolver) CookieName() string { return r.opts.CookieName }
