// Package client talks to the estatebooks HTTP API on behalf of the CLI. The
// session and tenant cookies live in a FileJar so they survive between runs.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aryan0dhankhar/estatebooks/internal/catalog"
	"github.com/aryan0dhankhar/estatebooks/internal/domain"
	"github.com/aryan0dhankhar/estatebooks/internal/grid"
	"github.com/aryan0dhankhar/estatebooks/internal/handler"
	"github.com/aryan0dhankhar/estatebooks/internal/reliability/retry"
	"github.com/aryan0dhankhar/estatebooks/internal/rent"
	"github.com/aryan0dhankhar/estatebooks/internal/service"
	"github.com/aryan0dhankhar/estatebooks/internal/summary"
)

// DefaultTenantCookie is the cookie the server reads the active tenant from
const DefaultTenantCookie = "selectedTenantId"

// APIError is a non-2xx response decoded from the error envelope
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, e.Code)
	}
	return fmt.Sprintf("api: %s (%d): %s", e.Code, e.Status, e.Message)
}

// IsCode reports whether err is an APIError with code
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// Options configures a Client
type Options struct {
	BaseURL      string
	StateDir     string
	TenantCookie string
	Timeout      time.Duration
	Logger       *slog.Logger
}

// Client is an API client with a persistent cookie jar
type Client struct {
	base         *url.URL
	http         *http.Client
	jar          *FileJar
	prefs        *FilePreferences
	tenantCookie string
	retry        *retry.Config
	logger       *slog.Logger
}

// New creates a client. Cookies are kept in <StateDir>/cookies.json and the
// tenant preference in <StateDir>/tenant.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API URL %q", opts.BaseURL)
	}
	if opts.TenantCookie == "" {
		opts.TenantCookie = DefaultTenantCookie
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	jar, err := NewFileJar(base, filepath.Join(opts.StateDir, "cookies.json"))
	if err != nil {
		return nil, err
	}

	rc := retry.DefaultConfig()
	rc.MaxBackoff = 2 * time.Second
	rc.Retryable = transient

	return &Client{
		base:         base,
		http:         &http.Client{Jar: jar, Timeout: opts.Timeout},
		jar:          jar,
		prefs:        NewFilePreferences(filepath.Join(opts.StateDir, "tenant")),
		tenantCookie: opts.TenantCookie,
		retry:        rc,
		logger:       opts.Logger,
	}, nil
}

// Preferences returns the tenant preference store
func (c *Client) Preferences() *FilePreferences { return c.prefs }

// SignedIn reports whether a session cookie is stored
func (c *Client) SignedIn(sessionCookie string) bool {
	_, ok := c.jar.Value(sessionCookie)
	return ok
}

// transient retries network failures and gateway errors only
func transient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusBadGateway ||
			apiErr.Status == http.StatusServiceUnavailable ||
			apiErr.Status == http.StatusGatewayTimeout
	}
	return !errors.Is(err, context.Canceled)
}

type envelope[T any] struct {
	Data T `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
	}

	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.jar.Save(); err != nil {
		c.logger.Warn("failed to persist cookies", slog.String("error", err.Error()))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &APIError{Status: resp.StatusCode}
		var e handler.ErrorResponse
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&e); err == nil {
			apiErr.Code, apiErr.Message = e.Code, e.Message
		}
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// get issues an idempotent GET with retries on transient failures
func get[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	return retry.Do(ctx, c.retry, c.logger, "GET "+path, func(ctx context.Context) (T, error) {
		var env envelope[T]
		err := c.do(ctx, http.MethodGet, path, query, nil, &env)
		return env.Data, err
	})
}

// Login signs in; the server sets the session cookie
func (c *Client) Login(ctx context.Context, email, password string) (*service.LoginResult, error) {
	var env envelope[*service.LoginResult]
	err := c.do(ctx, http.MethodPost, "/api/auth/login", nil, handler.LoginRequest{Email: email, Password: password}, &env)
	return env.Data, err
}

// Logout ends the session and forgets the tenant selection locally
func (c *Client) Logout(ctx context.Context) error {
	err := c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil, nil)
	return errors.Join(err, c.ClearTenantCookie(ctx), c.prefs.Clear())
}

// Me returns the signed-in user
func (c *Client) Me(ctx context.Context) (handler.UserResponse, error) {
	return get[handler.UserResponse](ctx, c, "/api/auth/me", nil)
}

// Tenants lists the user's tenants and the server's current selection
func (c *Client) Tenants(ctx context.Context) (handler.TenantsResponse, error) {
	return get[handler.TenantsResponse](ctx, c, "/api/tenants", nil)
}

// SetTenantCookie asks the server to select tenantID; the server answers with
// the tenant cookie, which lands in the jar.
func (c *Client) SetTenantCookie(ctx context.Context, tenantID string) error {
	return c.do(ctx, http.MethodPost, "/api/tenants/select", nil, handler.SelectTenantRequest{TenantID: tenantID}, nil)
}

// ClearTenantCookie drops the tenant cookie from the jar
func (c *Client) ClearTenantCookie(context.Context) error {
	c.jar.Remove(c.tenantCookie)
	return c.jar.Save()
}

// Tables lists the table catalog
func (c *Client) Tables(ctx context.Context) ([]handler.TableSummary, error) {
	return get[[]handler.TableSummary](ctx, c, "/api/tables", nil)
}

// Rows returns the raw rows and columns of a table
func (c *Client) Rows(ctx context.Context, table string) (*service.TableData, error) {
	return get[*service.TableData](ctx, c, "/api/tables/"+url.PathEscape(table)+"/rows", nil)
}

// View returns one server-rendered page of a table
func (c *Client) View(ctx context.Context, table string, state grid.State) (grid.View, error) {
	return get[grid.View](ctx, c, "/api/tables/"+url.PathEscape(table), StateQuery(state))
}

// Sections loads several tables at once
func (c *Client) Sections(ctx context.Context, tables []string) ([]service.Section, error) {
	q := url.Values{}
	if len(tables) > 0 {
		q.Set("tables", strings.Join(tables, ","))
	}
	return get[[]service.Section](ctx, c, "/api/sections", q)
}

// Options returns one option list
func (c *Client) Options(ctx context.Context, kind catalog.OptionKind) ([]domain.Option, error) {
	return get[[]domain.Option](ctx, c, "/api/options/"+url.PathEscape(string(kind)), nil)
}

// Update persists one cell edit and returns the updated row. Edits are not
// retried.
func (c *Client) Update(ctx context.Context, table, id, field string, value any) (grid.Row, error) {
	var env envelope[grid.Row]
	req := handler.UpdateRequest{Table: table, ID: handler.RowID(id), Field: field, Value: value}
	err := c.do(ctx, http.MethodPost, "/api/database/update", nil, req, &env)
	return env.Data, err
}

// RentOverview returns the rent overview of year; 0 means the current year
func (c *Client) RentOverview(ctx context.Context, year int) (rent.Overview, error) {
	q := url.Values{}
	if year != 0 {
		q.Set("year", strconv.Itoa(year))
	}
	return get[rent.Overview](ctx, c, "/api/rent-overview", q)
}

// MonthlySummary fetches the summary of month (YYYY-MM), the current month
// when empty
func (c *Client) MonthlySummary(ctx context.Context, month string) (summary.Summary, error) {
	q := url.Values{}
	if month != "" {
		q.Set("month", month)
	}
	return get[summary.Summary](ctx, c, "/api/monthly-summary", q)
}

// StateQuery encodes grid state as the query parameters the server parses
func StateQuery(s grid.State) url.Values {
	q := url.Values{}
	if s.SortKey != "" {
		q.Set("sort", s.SortKey)
		if s.SortDesc {
			q.Set("desc", "true")
		}
	}
	if s.GlobalFilter != "" {
		q.Set("q", s.GlobalFilter)
	}
	if s.PageIndex > 0 {
		q.Set("page", strconv.Itoa(s.PageIndex+1))
	}
	if s.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(s.PageSize))
	}
	for col, values := range s.ColumnFilters {
		if len(values) > 0 {
			q.Set("f."+col, strings.Join(values, ","))
		}
	}
	return q
}
