package middleware

import (
	"log/slog"
	"net/http"

	jotel "github.com/jegasuite/jega/internal/adapter/otel"
	"github.com/jegasuite/jega/internal/config"
	"github.com/jegasuite/jega/internal/domain/principal"
	"github.com/jegasuite/jega/internal/tenantctx"
)

// HeaderTenantID carries an explicit tenant id from trusted callers.
const HeaderTenantID = "X-Tenant-Id"

// Tenant resolution sources, used in logs and metrics.
const (
	sourceClaim    = "claim"
	sourceClaimAlt = "claim_alt"
	sourceHeader   = "header"
	sourceDefault  = "default"
)

// ResolveTenant attaches a fresh tenant carrier to every request and fills
// it from, in order: the tenant_id claim, the tenantId claim, the
// X-Tenant-Id header, then the configured default. Values that are not
// positive integers are skipped. Public paths get an empty carrier.
func ResolveTenant(cfg config.Tenant, public PublicPaths, metrics *jotel.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, carrier := tenantctx.WithCarrier(r.Context())
			r = r.WithContext(ctx)

			if public.Match(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			p := PrincipalFromContext(ctx)
			id, source := resolveTenantID(p, r)

			var err error
			switch {
			case id > 0:
				err = carrier.Set(id)
			case cfg.AllowDefaultFallback:
				source = sourceDefault
				slog.WarnContext(ctx, "no tenant claim or header, using default tenant",
					"tenant_fallback", true,
					"tenant_id", cfg.DefaultID,
					"path", r.URL.Path,
				)
				err = carrier.SetFallback(cfg.DefaultID)
			default:
				slog.WarnContext(ctx, "request rejected: tenant could not be resolved", "path", r.URL.Path)
				http.Error(w, `{"error":"tenant could not be resolved"}`, http.StatusUnauthorized)
				return
			}
			if err != nil {
				slog.ErrorContext(ctx, "tenant carrier rejected id", "source", source, "error", err)
				http.Error(w, `{"error":"tenant could not be resolved"}`, http.StatusUnauthorized)
				return
			}

			metrics.RecordTenantResolution(ctx, source)
			next.ServeHTTP(w, r)
		})
	}
}

func resolveTenantID(p *principal.Principal, r *http.Request) (int64, string) {
	if p != nil {
		if id, ok := p.TenantClaim(principal.ClaimTenantID); ok {
			return id, sourceClaim
		}
		if id, ok := p.TenantClaim(principal.ClaimTenantIDAlt); ok {
			return id, sourceClaimAlt
		}
	}
	if id, ok := principal.ParseTenantID(r.Header.Get(HeaderTenantID)); ok {
		return id, sourceHeader
	}
	return 0, ""
}
