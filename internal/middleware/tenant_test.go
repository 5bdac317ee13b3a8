package middleware_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/jegasuite/jega/internal/config"
	"github.com/jegasuite/jega/internal/domain/principal"
	"github.com/jegasuite/jega/internal/middleware"
	"github.com/jegasuite/jega/internal/tenantctx"
)

func tenantCfg(allowDefault bool) config.Tenant {
	return config.Tenant{DefaultID: 1, AllowDefaultFallback: allowDefault}
}

// resolve runs ResolveTenant and returns the status and the tenant id the
// handler observed.
func resolve(t *testing.T, cfg config.Tenant, p *principal.Principal, header string) (int, int64) {
	t.Helper()
	var got int64
	h := middleware.ResolveTenant(cfg, testPublic, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := tenantctx.FromContext(r.Context())
		if err != nil {
			t.Errorf("tenant not set: %v", err)
		}
		got = id
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tenant", http.NoBody)
	if p != nil {
		req = req.WithContext(middleware.WithPrincipal(req.Context(), p))
	}
	if header != "" {
		req.Header.Set(middleware.HeaderTenantID, header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code, got
}

func TestResolveTenant_Order(t *testing.T) {
	both := principal.New(map[string]string{"userId": "u", "tenant_id": "5", "tenantId": "6"})
	altOnly := principal.New(map[string]string{"userId": "u", "tenantId": "6"})
	badClaim := principal.New(map[string]string{"userId": "u", "tenant_id": "abc"})
	zeroClaim := principal.New(map[string]string{"userId": "u", "tenant_id": "0"})

	cases := []struct {
		name   string
		p      *principal.Principal
		header string
		want   int64
	}{
		{"claim wins over header", both, "9", 5},
		{"alt claim", altOnly, "9", 6},
		{"header when no claim", nil, "9", 9},
		{"invalid claim falls to header", badClaim, "9", 9},
		{"zero claim falls to header", zeroClaim, "9", 9},
		{"default", nil, "", 1},
		{"invalid header falls to default", nil, "-3", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			code, got := resolve(t, tenantCfg(true), tc.p, tc.header)
			if code != http.StatusOK || got != tc.want {
				t.Fatalf("status=%d tenant=%d, want 200/%d", code, got, tc.want)
			}
		})
	}
}

func TestResolveTenant_FallbackLogsWarning(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	if code, got := resolve(t, tenantCfg(true), nil, ""); code != http.StatusOK || got != 1 {
		t.Fatalf("status=%d tenant=%d", code, got)
	}
	out := buf.String()
	if !strings.Contains(out, `"level":"WARN"`) || !strings.Contains(out, `"tenant_fallback":true`) {
		t.Fatalf("expected fallback warning, got %s", out)
	}
}

func TestResolveTenant_FallbackDisabled(t *testing.T) {
	h := middleware.ResolveTenant(tenantCfg(false), testPublic, nil)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Fatal("handler reached")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tenant", http.NoBody))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestResolveTenant_PublicPathHasEmptyCarrier(t *testing.T) {
	h := middleware.ResolveTenant(tenantCfg(true), testPublic, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := tenantctx.FromContext(r.Context()); err == nil {
			t.Error("public path resolved a tenant")
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", http.NoBody))
}

func TestResolveTenant_ConcurrentRequestsIsolated(t *testing.T) {
	h := middleware.ResolveTenant(tenantCfg(true), testPublic, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := tenantctx.FromContext(r.Context())
		_, _ = w.Write([]byte(strings.Repeat("x", int(id))))
	}))
	srv := httptest.NewServer(h)
	defer srv.Close()

	errs := make(chan string, 40)
	for i := 1; i <= 40; i++ {
		go func(id int) {
			req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, srv.URL+"/api/v1/tenant", http.NoBody)
			req.Header.Set(middleware.HeaderTenantID, strconv.Itoa(id))
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				errs <- err.Error()
				return
			}
			defer resp.Body.Close()
			var buf bytes.Buffer
			_, _ = buf.ReadFrom(resp.Body)
			if buf.Len() != id {
				errs <- "request observed another tenant"
				return
			}
			errs <- ""
		}(i)
	}
	for range 40 {
		if e := <-errs; e != "" {
			t.Fatal(e)
		}
	}
}
