package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jegasuite/jega/internal/domain/principal"
	"github.com/jegasuite/jega/internal/middleware"
)

func serveWith(h http.Handler, p *principal.Principal) int {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", http.NoBody)
	if p != nil {
		req = req.WithContext(middleware.WithPrincipal(req.Context(), p))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRequireRole(t *testing.T) {
	h := middleware.RequireRole("Admin")(okHandler())
	if code := serveWith(h, nil); code != http.StatusUnauthorized {
		t.Errorf("no principal: %d", code)
	}
	if code := serveWith(h, newPrincipal("u", "1")); code != http.StatusOK {
		t.Errorf("admin: %d", code)
	}
	emp := principal.New(map[string]string{"userId": "u", "role": "Employee"})
	if code := serveWith(h, emp); code != http.StatusForbidden {
		t.Errorf("employee: %d", code)
	}
}

func TestRequireModuleRole(t *testing.T) {
	h := middleware.RequireModuleRole("admin")(okHandler())
	base := newPrincipal("u", "1")
	if code := serveWith(h, base); code != http.StatusForbidden {
		t.Errorf("no module role: %d", code)
	}
	if code := serveWith(h, base.WithModule("extra-hours", "admin")); code != http.StatusOK {
		t.Errorf("module admin: %d", code)
	}
	if code := serveWith(h, base.WithModule("extra-hours", "employee")); code != http.StatusForbidden {
		t.Errorf("module employee: %d", code)
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}
