package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jegasuite/jega/internal/middleware"
)

// RouteMiddleware holds per-route middleware. Nil entries are skipped.
type RouteMiddleware struct {
	// VerifySignature guards the gateway webhook.
	VerifySignature func(http.Handler) http.Handler
	// RateLimit guards unauthenticated endpoints that accept credentials or
	// create records.
	RateLimit func(http.Handler) http.Handler
	// Idempotency replays repeated checkout submissions.
	Idempotency func(http.Handler) http.Handler
	// RequireTenantAdmin guards tenant administration reads.
	RequireTenantAdmin func(http.Handler) http.Handler
}

func chain(mws ...func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	out := make([]func(http.Handler) http.Handler, 0, len(mws))
	for _, mw := range mws {
		if mw != nil {
			out = append(out, mw)
		}
	}
	return out
}

// MountRoutes registers the billing service routes. Authentication and
// tenant resolution run router-wide and honor the public path allowlist.
func MountRoutes(r chi.Router, h *Handlers, mw RouteMiddleware) {
	r.Get("/health", h.Health.Live)
	r.Get("/health/ready", h.Health.Ready)

	// Gateway-facing webhook; the versioned path below is an alias.
	webhook := chain(mw.RateLimit, mw.VerifySignature)
	r.With(webhook...).Post("/payments/webhook", h.PaymentWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"service":"billing"}`))
		})

		r.With(webhook...).Post("/webhooks/payments", h.PaymentWebhook)
		r.With(chain(mw.RateLimit, mw.Idempotency)...).Post("/payments/checkout", h.StartCheckout)

		r.With(chain(mw.RateLimit)...).Post("/auth/login", h.Login)
		r.Post("/auth/logout", h.Logout)

		r.Get("/access/check-access", h.CheckAccess)

		r.Get("/tenant", h.CurrentTenant)
		r.Get("/tenant/modules", h.TenantModules)
		r.With(chain(mw.RequireTenantAdmin)...).Get("/tenant/users", h.TenantUsers)
	})
}

// MountModuleRoutes registers the module host routes. The trust boundary
// middleware runs router-wide.
func MountModuleRoutes(r chi.Router, h *ModuleHandlers) {
	r.Get("/health", h.Health.Live)
	r.Get("/health/ready", h.Health.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/me", h.Me)
		r.With(middleware.RequireModuleRole("admin")).Get("/users", h.ListUsers)
	})
}
