package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/estatebooks/internal/catalog"
	"github.com/aryan0dhankhar/estatebooks/internal/dispatch"
	"github.com/aryan0dhankhar/estatebooks/internal/domain"
	"github.com/aryan0dhankhar/estatebooks/internal/featureflags"
	"github.com/aryan0dhankhar/estatebooks/internal/grid"
	"github.com/aryan0dhankhar/estatebooks/internal/reliability/circuitbreaker"
	"github.com/aryan0dhankhar/estatebooks/internal/rent"
	"github.com/aryan0dhankhar/estatebooks/internal/security/audit"
	"github.com/aryan0dhankhar/estatebooks/internal/security/auth"
	"github.com/aryan0dhankhar/estatebooks/internal/security/middleware"
	"github.com/aryan0dhankhar/estatebooks/internal/service"
	"github.com/aryan0dhankhar/estatebooks/internal/summary"
	"github.com/aryan0dhankhar/estatebooks/internal/tenant"
)

const (
	tenantA = "11111111-1111-1111-1111-111111111111"
	tenantB = "22222222-2222-2222-2222-222222222222"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memMembers map[string][]domain.AuthorizedTenant

func (m memMembers) ListAuthorized(_ context.Context, userID string) ([]domain.AuthorizedTenant, error) {
	return m[userID], nil
}

var members = memMembers{
	"u1": {
		{ID: tenantA, Name: "Acme Immobilien", Role: domain.RoleOwner},
		{ID: tenantB, Name: "Beta Haus", Role: domain.RoleViewer},
	},
}

func newResolver() *tenant.Resolver {
	return tenant.NewResolver(members, featureflags.FromMap(nil), tenant.ResolverOptions{}, testLogger())
}

// withTenant runs h behind the tenant middleware as an authenticated user
func withTenant(h http.Handler) http.Handler {
	return tenant.Middleware(newResolver(), middleware.UserIDFromContext, WriteError)(h)
}

func authed(r *http.Request, userID string) *http.Request {
	ctx := context.WithValue(r.Context(), middleware.ClaimsContextKey{}, &auth.Claims{UserID: userID})
	return r.WithContext(ctx)
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var e ErrorResponse
	decodeBody(t, rec, &e)
	return e.Code
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"no tenant", tenant.ErrNoTenant, http.StatusForbidden, "no_tenant_access"},
		{"not authorized", tenant.ErrNotAuthorized, http.StatusForbidden, "tenant_not_authorized"},
		{"validation", &dispatch.ValidationError{Field: "table", Message: "nope"}, http.StatusBadRequest, "validation_error"},
		{"row not found", fmt.Errorf("%w: x/1", dispatch.ErrRowNotFound), http.StatusNotFound, "not_found"},
		{"constraint", fmt.Errorf("update: %w", domain.ErrConstraint), http.StatusUnprocessableEntity, "constraint_violation"},
		{"unknown table", service.ErrUnknownTable, http.StatusNotFound, "unknown_resource"},
		{"not sortable", grid.ErrNotSortable, http.StatusBadRequest, "invalid_grid_state"},
		{"breaker open", circuitbreaker.ErrOpen, http.StatusServiceUnavailable, "store_unavailable"},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{"credentials", service.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{"store", errors.New("connection reset"), http.StatusBadGateway, "store_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code, _ := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestTenantMiddlewareWithoutMembership(t *testing.T) {
	h := withTenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/tables/tenants", nil), "nobody"))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "no_tenant_access", errorCode(t, rec))
}

// --- tables ---

type fakeTables struct {
	gotTenant string
	gotState  grid.State
	gotNames  []string
	err       error
}

func (f *fakeTables) Tables() []catalog.Table {
	t, _ := catalog.Lookup("tenants")
	return []catalog.Table{t}
}

func (f *fakeTables) Rows(_ context.Context, tenantID, name string) (*service.TableData, error) {
	f.gotTenant = tenantID
	if f.err != nil {
		return nil, f.err
	}
	return &service.TableData{Table: name, Rows: []grid.Row{{"id": "1"}}}, nil
}

func (f *fakeTables) View(_ context.Context, tenantID, name string, state grid.State) (grid.View, error) {
	f.gotTenant, f.gotState = tenantID, state
	if f.err != nil {
		return grid.View{}, f.err
	}
	return grid.View{TotalRows: 3, PageIndex: state.PageIndex}, nil
}

func (f *fakeTables) Sections(_ context.Context, tenantID string, names []string) []service.Section {
	f.gotTenant, f.gotNames = tenantID, names
	out := make([]service.Section, len(names))
	for i, n := range names {
		out[i] = service.Section{Table: n, Error: "failed to load data"}
	}
	return out
}

type fakeOptions struct {
	opts []domain.Option
	err  error
}

func (f *fakeOptions) Options(context.Context, string, catalog.OptionKind) ([]domain.Option, error) {
	return f.opts, f.err
}

func TestParseState(t *testing.T) {
	q, err := url.ParseQuery("sort=amount&desc=true&q=miete&page=3&pageSize=50&f.status=open,%20closed&f.=x&other=1")
	require.NoError(t, err)

	state, err := ParseState(q)
	require.NoError(t, err)
	assert.Equal(t, "amount", state.SortKey)
	assert.True(t, state.SortDesc)
	assert.Equal(t, "miete", state.GlobalFilter)
	assert.Equal(t, 2, state.PageIndex)
	assert.Equal(t, 50, state.PageSize)
	assert.Equal(t, map[string][]string{"status": {"open", "closed"}}, state.ColumnFilters)

	for _, bad := range []string{"desc=maybe", "page=0", "page=x", "pageSize=-1"} {
		q, _ := url.ParseQuery(bad)
		_, err := ParseState(q)
		var verr *dispatch.ValidationError
		assert.ErrorAs(t, err, &verr, bad)
	}
}

func TestTablesView(t *testing.T) {
	tables := &fakeTables{}
	h := NewTablesHandler(tables, &fakeOptions{}, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tables/{table}", h.View)

	rec := httptest.NewRecorder()
	req := authed(httptest.NewRequest(http.MethodGet, "/api/tables/tenants?tenant="+tenantB+"&page=2", nil), "u1")
	withTenant(mux).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, tenantB, tables.gotTenant)
	assert.Equal(t, 1, tables.gotState.PageIndex)

	tables.err = fmt.Errorf("%w: %q", grid.ErrNotSortable, "notes")
	rec = httptest.NewRecorder()
	withTenant(mux).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/tables/tenants?sort=notes", nil), "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_grid_state", errorCode(t, rec))
}

func TestTablesRowsUnknownTable(t *testing.T) {
	tables := &fakeTables{err: fmt.Errorf("%w: nope", service.ErrUnknownTable)}
	h := NewTablesHandler(tables, &fakeOptions{}, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/tables/{table}/rows", h.Rows)

	rec := httptest.NewRecorder()
	withTenant(mux).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/tables/nope/rows", nil), "u1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, tenantA, tables.gotTenant)
}

func TestSectionsDefaultsToCatalogAndDegradesPerSection(t *testing.T) {
	tables := &fakeTables{}
	h := NewTablesHandler(tables, &fakeOptions{}, testLogger())

	rec := httptest.NewRecorder()
	withTenant(http.HandlerFunc(h.Sections)).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/sections", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"tenants"}, tables.gotNames)

	rec = httptest.NewRecorder()
	withTenant(http.HandlerFunc(h.Sections)).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/sections?tables=tenants,,properties", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"tenants", "properties"}, tables.gotNames)

	var body struct {
		Data []service.Section `json:"data"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Data, 2)
	assert.Equal(t, "failed to load data", body.Data[1].Error)
}

func TestOptions(t *testing.T) {
	opts := &fakeOptions{opts: []domain.Option{{Label: "Anna (Tenant)", Value: `{"partnerId":"1","partnerType":"tenant"}`}}}
	h := NewTablesHandler(&fakeTables{}, opts, testLogger())
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/options/{kind}", h.Options)

	rec := httptest.NewRecorder()
	withTenant(mux).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/options/combined_partners", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []domain.Option `json:"data"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, opts.opts, body.Data)

	rec = httptest.NewRecorder()
	withTenant(mux).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/options/landlords", nil), "u1"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	opts.opts, opts.err = nil, errors.New("rpc failed")
	rec = httptest.NewRecorder()
	withTenant(mux).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/options/tenants", nil), "u1"))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

// --- update ---

type fakeDispatcher struct {
	tenantID, table, id, field string
	value                      any
	row                        grid.Row
	err                        error
}

func (f *fakeDispatcher) DispatchUpdate(_ context.Context, tenantID, table, id, field string, value any) (grid.Row, error) {
	f.tenantID, f.table, f.id, f.field, f.value = tenantID, table, id, field, value
	return f.row, f.err
}

func postUpdate(h http.Handler, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/database/update", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	withTenant(h).ServeHTTP(rec, authed(req, "u1"))
	return rec
}

func TestUpdateDispatchesWithResolvedTenant(t *testing.T) {
	d := &fakeDispatcher{row: grid.Row{"id": "42", "tenant_ref": "7", "business_partner_ref": nil}}
	h := NewUpdateHandler(d, audit.NewLogger(testLogger()), testLogger())

	rec := postUpdate(h, `{"table":"bank_transactions","id":42,"field":"partner_selection","value":{"partnerId":"7","partnerType":"tenant"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, tenantA, d.tenantID)
	assert.Equal(t, "bank_transactions", d.table)
	assert.Equal(t, "42", d.id)
	assert.Equal(t, "partner_selection", d.field)
	assert.IsType(t, map[string]any{}, d.value)

	var body struct {
		Data grid.Row `json:"data"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "7", body.Data["tenant_ref"])
}

func TestUpdateErrors(t *testing.T) {
	d := &fakeDispatcher{}
	h := NewUpdateHandler(d, audit.NewLogger(testLogger()), testLogger())

	rec := postUpdate(h, `{"table":"bank_transactions","field":"notes"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", errorCode(t, rec))
	assert.Empty(t, d.table, "dispatcher must not run")

	rec = postUpdate(h, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	d.err = &dispatch.ValidationError{Field: "table", Message: `table "users" is not allowed`}
	rec = postUpdate(h, `{"table":"users","id":"1","field":"email","value":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	d.err = fmt.Errorf("%w: bank_transactions/9", dispatch.ErrRowNotFound)
	rec = postUpdate(h, `{"table":"bank_transactions","id":"9","field":"notes","value":"x"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	d.err = errors.New("pq: connection refused")
	rec = postUpdate(h, `{"table":"bank_transactions","id":"9","field":"notes","value":"x"}`)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "store_error", errorCode(t, rec))
}

func TestUpdateWithoutTenant(t *testing.T) {
	h := NewUpdateHandler(&fakeDispatcher{}, audit.NewLogger(testLogger()), testLogger())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/database/update", strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "no_tenant_access", errorCode(t, rec))
}

// --- tenants ---

func TestTenantsListAndSelect(t *testing.T) {
	h := NewTenantsHandler(newResolver(), audit.NewLogger(testLogger()), testLogger())

	rec := httptest.NewRecorder()
	withTenant(http.HandlerFunc(h.List)).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/tenants", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Data TenantsResponse `json:"data"`
	}
	decodeBody(t, rec, &list)
	assert.Len(t, list.Data.Tenants, 2)
	assert.Equal(t, tenantA, list.Data.Current.TenantID)
	assert.Equal(t, tenant.SourceFirst, list.Data.Current.Source)

	rec = httptest.NewRecorder()
	req := authed(httptest.NewRequest(http.MethodPost, "/api/tenants/select", strings.NewReader(`{"tenantId":"`+tenantB+`"}`)), "u1")
	withTenant(http.HandlerFunc(h.Select)).ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "selectedTenantId", cookies[0].Name)
	assert.Equal(t, tenantB, cookies[0].Value)
	assert.Equal(t, "/", cookies[0].Path)
	assert.Equal(t, int((30 * 24 * time.Hour).Seconds()), cookies[0].MaxAge)
}

func TestTenantsSelectRejectsForeignTenant(t *testing.T) {
	h := NewTenantsHandler(newResolver(), audit.NewLogger(testLogger()), testLogger())

	rec := httptest.NewRecorder()
	req := authed(httptest.NewRequest(http.MethodPost, "/api/tenants/select", strings.NewReader(`{"tenantId":"33333333-3333-3333-3333-333333333333"}`)), "u1")
	withTenant(http.HandlerFunc(h.Select)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	rec = httptest.NewRecorder()
	req = authed(httptest.NewRequest(http.MethodPost, "/api/tenants/select", strings.NewReader(`{"tenantId":"acme"}`)), "u1")
	withTenant(http.HandlerFunc(h.Select)).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- auth ---

type fakeAuth struct {
	changed bool
}

func (f *fakeAuth) Register(_ context.Context, email, username, _ string) (*service.RegisterResult, error) {
	return &service.RegisterResult{UserID: "u2", Email: email, Username: username, Token: "tok"}, nil
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (*service.LoginResult, error) {
	if password != "correct horse" {
		return nil, service.ErrInvalidCredentials
	}
	return &service.LoginResult{UserID: "u1", Email: email, Token: "tok", ExpiresIn: 3600, TokenType: "Bearer"}, nil
}

func (f *fakeAuth) Me(_ context.Context, userID string) (*domain.User, error) {
	if userID != "u1" {
		return nil, domain.ErrNotFound
	}
	return &domain.User{ID: "u1", Email: "anna@example.org", Username: "anna", PasswordHash: "secret-hash"}, nil
}

func (f *fakeAuth) ChangePassword(_ context.Context, _, oldPassword, _ string) error {
	if oldPassword != "correct horse" {
		return service.ErrInvalidCredentials
	}
	f.changed = true
	return nil
}

func newAuthHandler(a Authenticator) *AuthHandler {
	return NewAuthHandler(a, nil, newResolver(), SessionOptions{CookieName: "session", TTL: time.Hour}, testLogger())
}

func TestLoginSetsSessionCookie(t *testing.T) {
	h := newAuthHandler(&fakeAuth{})

	rec := httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"anna@example.org","password":"correct horse"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "session", cookies[0].Name)
	assert.Equal(t, "tok", cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, 3600, cookies[0].MaxAge)

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"anna@example.org","password":"wrong"}`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, rec.Result().Cookies())

	rec = httptest.NewRecorder()
	h.Login(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"not-an-email","password":"x"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogoutClearsSessionAndTenantCookies(t *testing.T) {
	h := newAuthHandler(&fakeAuth{})
	rec := httptest.NewRecorder()
	h.Logout(rec, httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	got := map[string]int{}
	for _, c := range rec.Result().Cookies() {
		got[c.Name] = c.MaxAge
	}
	assert.Equal(t, map[string]int{"session": -1, "selectedTenantId": -1}, got)
}

func TestMeHidesPasswordHash(t *testing.T) {
	h := newAuthHandler(&fakeAuth{})

	rec := httptest.NewRecorder()
	h.Me(rec, authed(httptest.NewRequest(http.MethodGet, "/api/auth/me", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"username":"anna"`)
	assert.NotContains(t, rec.Body.String(), "secret-hash")

	rec = httptest.NewRecorder()
	h.Me(rec, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestChangePassword(t *testing.T) {
	a := &fakeAuth{}
	h := newAuthHandler(a)

	rec := httptest.NewRecorder()
	body := `{"oldPassword":"correct horse","newPassword":"battery staple"}`
	h.ChangePassword(rec, authed(httptest.NewRequest(http.MethodPost, "/api/auth/change-password", strings.NewReader(body)), "u1"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, a.changed)

	rec = httptest.NewRecorder()
	body = `{"oldPassword":"nope","newPassword":"battery staple"}`
	h.ChangePassword(rec, authed(httptest.NewRequest(http.MethodPost, "/api/auth/change-password", strings.NewReader(body)), "u1"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// --- rent ---

type fakeRent struct {
	gotYear int
}

func (f *fakeRent) Overview(_ context.Context, _ string, year int) (rent.Overview, error) {
	f.gotYear = year
	return rent.Overview{Year: 2025, Properties: []rent.PropertyBlock{}}, nil
}

func TestRentOverviewYear(t *testing.T) {
	r := &fakeRent{}
	h := NewRentHandler(r, testLogger())

	rec := httptest.NewRecorder()
	withTenant(h).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/rent-overview?year=2025", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2025, r.gotYear)

	rec = httptest.NewRecorder()
	withTenant(h).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/rent-overview", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, r.gotYear)

	rec = httptest.NewRecorder()
	withTenant(h).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/rent-overview?year=25", nil), "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// --- monthly summary ---

type fakeSummaries struct {
	gotMonth string
}

func (f *fakeSummaries) Summary(_ context.Context, _, month string) (summary.Summary, error) {
	f.gotMonth = month
	return summary.Summary{Month: "2025-03", Months: []string{"2025-03"}}, nil
}

func TestMonthlySummaryMonth(t *testing.T) {
	f := &fakeSummaries{}
	h := NewSummaryHandler(f, testLogger())

	rec := httptest.NewRecorder()
	withTenant(h).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/monthly-summary?month=2025-03", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-03", f.gotMonth)
	var body struct {
		Data summary.Summary `json:"data"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, []string{"2025-03"}, body.Data.Months)

	rec = httptest.NewRecorder()
	withTenant(h).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/monthly-summary", nil), "u1"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, f.gotMonth)

	f.gotMonth = "untouched"
	rec = httptest.NewRecorder()
	withTenant(h).ServeHTTP(rec, authed(httptest.NewRequest(http.MethodGet, "/api/monthly-summary?month=2025-13", nil), "u1"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "untouched", f.gotMonth)
}

// --- health ---

func TestReadiness(t *testing.T) {
	ok := PingFunc(func(context.Context) error { return nil })
	down := PingFunc(func(context.Context) error { return errors.New("down") })

	rec := httptest.NewRecorder()
	NewHealthHandler(ok, down, testLogger()).Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	var body ReadinessResponse
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body.Checks["database"])
	assert.Equal(t, "degraded: down", body.Checks["redis"])

	rec = httptest.NewRecorder()
	NewHealthHandler(down, nil, testLogger()).Ready(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	NewHealthHandler(nil, nil, testLogger()).Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
