package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestStatusWriterCapturesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	ww := &statusWriter{ResponseWriter: rec, status: 200}
	ww.WriteHeader(http.StatusTeapot)
	if ww.status != http.StatusTeapot || rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418 recorded, got %d/%d", ww.status, rec.Code)
	}
	if _, _, err := ww.Hijack(); err == nil {
		t.Fatalf("expected hijack to fail on a recorder")
	}
}

func TestHTTPMetricsMiddlewarePassesThrough(t *testing.T) {
	mux := http.NewServeMux()
	var pattern string
	mux.HandleFunc("GET /api/tables/{table}", func(w http.ResponseWriter, r *http.Request) {
		pattern = r.Pattern
		w.WriteHeader(http.StatusNoContent)
	})
	rec := httptest.NewRecorder()
	HTTPMetricsMiddleware(mux).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/tables/tenants", nil))

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if pattern != "GET /api/tables/{table}" {
		t.Fatalf("expected route pattern, got %q", pattern)
	}
}
