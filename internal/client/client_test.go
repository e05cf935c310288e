package client

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/estatebooks/internal/grid"
	"github.com/aryan0dhankhar/estatebooks/internal/handler"
	"github.com/aryan0dhankhar/estatebooks/internal/service"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newClient(t *testing.T, baseURL, stateDir string) *Client {
	t.Helper()
	c, err := New(Options{BaseURL: baseURL, StateDir: stateDir, Logger: quietLogger()})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewRejectsInvalidURL(t *testing.T) {
	_, err := New(Options{BaseURL: "localhost", StateDir: t.TempDir()})
	assert.Error(t, err)
}

func TestLoginPersistsSessionAcrossClients(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req handler.LoginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, handler.ErrorResponse{Code: "invalid_credentials", Message: "invalid email or password"})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "session", Value: "tok", Path: "/", MaxAge: 3600, HttpOnly: true})
		writeJSON(w, http.StatusOK, handler.DataResponse{Data: service.LoginResult{UserID: "u1", Email: req.Email}})
	})
	mux.HandleFunc("GET /api/auth/me", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("session"); err != nil || c.Value != "tok" {
			writeJSON(w, http.StatusUnauthorized, handler.ErrorResponse{Code: "unauthorized"})
			return
		}
		writeJSON(w, http.StatusOK, handler.DataResponse{Data: handler.UserResponse{ID: "u1", Email: "a@example.com"}})
	})
	mux.HandleFunc("POST /api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "session", Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	stateDir := t.TempDir()
	c := newClient(t, srv.URL, stateDir)

	_, err := c.Login(t.Context(), "a@example.com", "wrong")
	assert.True(t, IsCode(err, "invalid_credentials"))
	assert.False(t, c.SignedIn("session"))

	res, err := c.Login(t.Context(), "a@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", res.UserID)
	assert.True(t, c.SignedIn("session"))

	info, err := os.Stat(filepath.Join(stateDir, "cookies.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// a fresh client picks the session up from disk
	again := newClient(t, srv.URL, stateDir)
	me, err := again.Me(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "u1", me.ID)

	require.NoError(t, again.Preferences().Save("t1"))
	require.NoError(t, again.Logout(t.Context()))
	assert.False(t, again.SignedIn("session"))
	saved, err := again.Preferences().Load()
	require.NoError(t, err)
	assert.Empty(t, saved)

	third := newClient(t, srv.URL, stateDir)
	_, err = third.Me(t.Context())
	assert.True(t, IsCode(err, "unauthorized"))
}

func TestTenantCookieRoundTrip(t *testing.T) {
	var seen atomic.Value
	seen.Store("")
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tenants/select", func(w http.ResponseWriter, r *http.Request) {
		var req handler.SelectTenantRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		http.SetCookie(w, &http.Cookie{Name: DefaultTenantCookie, Value: req.TenantID, Path: "/", MaxAge: 60})
		writeJSON(w, http.StatusOK, handler.DataResponse{Data: map[string]string{"tenantId": req.TenantID}})
	})
	mux.HandleFunc("GET /api/tables", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(DefaultTenantCookie); err == nil {
			seen.Store(c.Value)
		} else {
			seen.Store("")
		}
		writeJSON(w, http.StatusOK, handler.DataResponse{Data: []handler.TableSummary{}})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := newClient(t, srv.URL, t.TempDir())
	require.NoError(t, c.SetTenantCookie(t.Context(), "t1"))
	_, err := c.Tables(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "t1", seen.Load())

	require.NoError(t, c.ClearTenantCookie(t.Context()))
	_, err = c.Tables(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "", seen.Load())
}

func TestReadsRetryGatewayErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			writeJSON(w, http.StatusServiceUnavailable, handler.ErrorResponse{Code: "store_unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, handler.DataResponse{Data: []handler.TableSummary{{Name: "bank_transactions"}}})
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, t.TempDir())
	tables, err := c.Tables(t.Context())
	require.NoError(t, err)
	assert.Len(t, tables, 1)
	assert.EqualValues(t, 3, calls.Load())
}

func TestReadsDoNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		writeJSON(w, http.StatusNotFound, handler.ErrorResponse{Code: "unknown_resource", Message: "unknown table"})
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, t.TempDir())
	_, err := c.Rows(t.Context(), "nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
	assert.Equal(t, "unknown table", apiErr.Message)
	assert.EqualValues(t, 1, calls.Load())
}

func TestUpdateIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	requests := make(chan handler.UpdateRequest, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var req handler.UpdateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		requests <- req
		writeJSON(w, http.StatusBadGateway, handler.ErrorResponse{Code: "store_error"})
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, t.TempDir())
	_, err := c.Update(t.Context(), "bank_transactions", "7", "notes", "x")
	assert.True(t, IsCode(err, "store_error"))
	assert.EqualValues(t, 1, calls.Load())
	got := <-requests
	assert.Equal(t, handler.RowID("7"), got.ID)
	assert.Equal(t, "notes", got.Field)
}

func TestUpdateReturnsRow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, handler.DataResponse{Data: grid.Row{"id": "7", "notes": "x"}})
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, t.TempDir())
	row, err := c.Update(t.Context(), "bank_transactions", "7", "notes", "x")
	require.NoError(t, err)
	assert.Equal(t, "x", row["notes"])
}

func TestStateQuery(t *testing.T) {
	q := StateQuery(grid.State{
		SortKey:       "date",
		SortDesc:      true,
		GlobalFilter:  "miete",
		PageIndex:     1,
		PageSize:      50,
		ColumnFilters: map[string][]string{"category": {"Rent", "Fees"}, "empty": nil},
	})
	assert.Equal(t, url.Values{
		"sort":       {"date"},
		"desc":       {"true"},
		"q":          {"miete"},
		"page":       {"2"},
		"pageSize":   {"50"},
		"f.category": {"Rent,Fees"},
	}, q)

	assert.Empty(t, StateQuery(grid.State{}))
}

func TestStateQueryRoundTripsThroughParseState(t *testing.T) {
	in := grid.State{
		SortKey:       "amount",
		PageIndex:     3,
		PageSize:      10,
		ColumnFilters: map[string][]string{"category": {"Rent"}},
	}
	out, err := handler.ParseState(StateQuery(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFilePreferences(t *testing.T) {
	p := NewFilePreferences(filepath.Join(t.TempDir(), "nested", "tenant"))

	id, err := p.Load()
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, p.Save("t2"))
	id, err = p.Load()
	require.NoError(t, err)
	assert.Equal(t, "t2", id)

	require.NoError(t, p.Clear())
	require.NoError(t, p.Clear())
	id, err = p.Load()
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestFileJarDropsExpiredCookies(t *testing.T) {
	base, err := url.Parse("http://api.example.com")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "cookies.json")

	jar, err := NewFileJar(base, path)
	require.NoError(t, err)
	now := time.Date(2020, 1, 1, 12, 0, 0, 0, time.UTC)
	jar.now = func() time.Time { return now }

	jar.SetCookies(base, []*http.Cookie{
		{Name: "session", Value: "s", Path: "/", MaxAge: 3600},
		{Name: "short", Value: "x", Path: "/", Expires: now.Add(time.Minute)},
	})
	other, _ := url.Parse("http://elsewhere.example.com")
	jar.SetCookies(other, []*http.Cookie{{Name: "foreign", Value: "f", Path: "/"}})
	require.NoError(t, jar.Save())

	_, ok := jar.Value("foreign")
	assert.False(t, ok)

	// a real clock is far past the expiry of both cookies
	reloaded, err := NewFileJar(base, path)
	require.NoError(t, err)
	_, ok = reloaded.Value("session")
	assert.False(t, ok)
	_, ok = reloaded.Value("short")
	assert.False(t, ok)
}

func TestFileJarRemove(t *testing.T) {
	base, _ := url.Parse("http://api.example.com")
	path := filepath.Join(t.TempDir(), "cookies.json")
	jar, err := NewFileJar(base, path)
	require.NoError(t, err)

	jar.SetCookies(base, []*http.Cookie{{Name: DefaultTenantCookie, Value: "t1", Path: "/"}})
	v, ok := jar.Value(DefaultTenantCookie)
	require.True(t, ok)
	assert.Equal(t, "t1", v)
	assert.Len(t, jar.Cookies(base), 1)

	jar.Remove(DefaultTenantCookie)
	_, ok = jar.Value(DefaultTenantCookie)
	assert.False(t, ok)
	assert.Empty(t, jar.Cookies(base))
}
