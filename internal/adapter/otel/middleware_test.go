package otel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestSpanName_UsesRoutePattern(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.RoutePatterns = []string{"/api/v1/*", "/tenant/modules"}
	r := httptest.NewRequest(http.MethodGet, "/api/v1/tenant/modules", http.NoBody)
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	if got := spanName("", r); got != "GET /api/v1/tenant/modules" {
		t.Fatalf("span name = %q", got)
	}
}

func TestSpanName_UnroutedFallsBackToPath(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/payments/webhook", http.NoBody)
	if got := spanName("", r); got != "POST /payments/webhook" {
		t.Fatalf("span name = %q", got)
	}
}

func TestHTTPMiddleware_PassesThrough(t *testing.T) {
	called := false
	h := HTTPMiddleware("billing")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
	if !called || rec.Code != http.StatusNoContent {
		t.Fatalf("called = %v, status = %d", called, rec.Code)
	}
}
