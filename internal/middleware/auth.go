package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jegasuite/jega/internal/domain/principal"
	"github.com/jegasuite/jega/internal/port/authority"
)

type principalCtxKey struct{}

// PrincipalExtractor validates a bearer token. A nil result means the token
// is not acceptable.
type PrincipalExtractor interface {
	ExtractPrincipal(ctx context.Context, token string) *principal.Principal
}

// Authenticate returns middleware that requires a valid bearer token on
// every non-public path and stores the resulting principal in the context.
func Authenticate(extractor PrincipalExtractor, public PublicPaths) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public.Match(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
				return
			}
			token, ok := bearerToken(authHeader)
			if !ok {
				http.Error(w, `{"error":"invalid authorization header"}`, http.StatusUnauthorized)
				return
			}

			p := extractor.ExtractPrincipal(r.Context(), token)
			if p == nil {
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}
			if p.UserID == "" {
				slog.WarnContext(r.Context(), "bearer token has no user id claim")
				http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
				return
			}

			ctx := authority.WithBearer(WithPrincipal(r.Context(), p), token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p *principal.Principal) context.Context {
	return context.WithValue(ctx, principalCtxKey{}, p)
}

// PrincipalFromContext returns the authenticated caller, or nil.
func PrincipalFromContext(ctx context.Context) *principal.Principal {
	p, _ := ctx.Value(principalCtxKey{}).(*principal.Principal)
	return p
}
