package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/aryan0dhankhar/estatebooks/internal/domain"
)

// PreferenceStore keeps the locally saved tenant id
type PreferenceStore interface {
	Load() (string, error)
	Save(tenantID string) error
	Clear() error
}

// CookieWriter writes the tenant cookie read by server-rendered requests
type CookieWriter interface {
	SetTenantCookie(ctx context.Context, tenantID string) error
	ClearTenantCookie(ctx context.Context) error
}

// Reloader refetches all tenant-scoped data after a switch
type Reloader func(ctx context.Context, sel Selection) error

// Context holds the client-side tenant selection. Every change is written to
// the preference store and the cookie before it becomes visible.
type Context struct {
	mu         sync.RWMutex
	prefs      PreferenceStore
	cookies    CookieWriter
	reload     Reloader
	logger     *slog.Logger
	authorized []domain.AuthorizedTenant
	current    *Selection
}

// NewContext creates a tenant context
func NewContext(prefs PreferenceStore, cookies CookieWriter, reload Reloader, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{prefs: prefs, cookies: cookies, reload: reload, logger: logger}
}

// Initialize resolves the selection for a page load and persists it
func (c *Context) Initialize(ctx context.Context, authorized []domain.AuthorizedTenant, urlParam string) (Selection, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.authorized = slices.Clone(authorized)

	saved, err := c.prefs.Load()
	if err != nil {
		c.logger.Warn("failed to load saved tenant preference", slog.String("error", err.Error()))
		saved = ""
	}

	sel, err := ResolveInitial(authorized, urlParam, saved)
	if err != nil {
		c.current = nil
		if errors.Is(err, ErrNoTenant) && saved != "" {
			// membership was revoked
			if clearErr := c.clearLocked(ctx); clearErr != nil {
				c.logger.Warn("failed to clear revoked tenant", slog.String("error", clearErr.Error()))
			}
		}
		return Selection{}, err
	}

	if err := c.persistLocked(ctx, sel.TenantID); err != nil {
		return Selection{}, err
	}
	c.current = &sel
	c.logger.Info("tenant resolved", slog.String("tenant_id", sel.TenantID), slog.String("source", string(sel.Source)))
	return sel, nil
}

// Switch makes t the active tenant and reloads tenant-scoped data
func (c *Context) Switch(ctx context.Context, t domain.AuthorizedTenant) error {
	c.mu.Lock()
	authorized, ok := Find(c.authorized, t.ID)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotAuthorized, t.ID)
	}
	if err := c.persistLocked(ctx, authorized.ID); err != nil {
		c.mu.Unlock()
		return err
	}
	sel := Selection{TenantID: authorized.ID, Tenant: authorized, Source: SourceSaved}
	c.current = &sel
	c.mu.Unlock()

	c.logger.Info("tenant switched", slog.String("tenant_id", sel.TenantID))
	if c.reload == nil {
		return nil
	}
	if err := c.reload(ctx, sel); err != nil {
		return fmt.Errorf("reload after tenant switch: %w", err)
	}
	return nil
}

// Current returns the active selection
func (c *Context) Current() (Selection, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return Selection{}, false
	}
	return *c.current, true
}

// Authorized returns the tenants the user may switch to
func (c *Context) Authorized() []domain.AuthorizedTenant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.authorized)
}

// SignOut forgets the selection everywhere
func (c *Context) SignOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.authorized = nil
	return c.clearLocked(ctx)
}

// persistLocked writes the preference then the cookie; a failed cookie write
// puts the previous preference back so both stores keep agreeing.
func (c *Context) persistLocked(ctx context.Context, tenantID string) error {
	previous, _ := c.prefs.Load()
	if err := c.prefs.Save(tenantID); err != nil {
		return fmt.Errorf("save tenant preference: %w", err)
	}
	if err := c.cookies.SetTenantCookie(ctx, tenantID); err != nil {
		var revertErr error
		if previous == "" {
			revertErr = c.prefs.Clear()
		} else {
			revertErr = c.prefs.Save(previous)
		}
		if revertErr != nil {
			c.logger.Error("failed to revert tenant preference", slog.String("error", revertErr.Error()))
		}
		return fmt.Errorf("write tenant cookie: %w", err)
	}
	return nil
}

func (c *Context) clearLocked(ctx context.Context) error {
	return errors.Join(c.prefs.Clear(), c.cookies.ClearTenantCookie(ctx))
}
