package middleware

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	jotel "github.com/jegasuite/jega/internal/adapter/otel"
	"github.com/jegasuite/jega/internal/config"
	"github.com/jegasuite/jega/internal/port/authority"
)

const defaultDeniedMessage = "You do not have access to this module. Please contact your administrator."

// Access decisions recorded in metrics.
const (
	decisionAllowed     = "allowed"
	decisionDenied      = "denied"
	decisionRejected    = "rejected"
	decisionFailOpen    = "fail_open"
	decisionUnavailable = "unavailable"
)

// AuthorizeModule returns middleware that asks the access authority whether
// the authenticated user may use cfg.ModuleName. Public paths and requests
// without a principal pass through; Authenticate has already rejected the
// latter on protected paths.
//
// When the authority cannot be reached the request proceeds without a
// module role if cfg.FailOpen is set, and gets 503 otherwise.
func AuthorizeModule(checker authority.Checker, cfg config.Authority, public PublicPaths, metrics *jotel.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if public.Match(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			p := PrincipalFromContext(ctx)
			if p == nil {
				next.ServeHTTP(w, r)
				return
			}
			if p.UserID == "" {
				http.Error(w, `{"error":"authorization required"}`, http.StatusUnauthorized)
				return
			}

			d, err := checker.CheckAccess(ctx, p.UserID, cfg.ModuleName)
			if err != nil && ctx.Err() != nil {
				slog.DebugContext(ctx, "request ended during access check", "user_id", p.UserID)
				return
			}
			if err != nil {
				var se *authority.StatusError
				if errors.As(err, &se) {
					metrics.RecordAccessDecision(ctx, cfg.ModuleName, decisionRejected)
					slog.WarnContext(ctx, "authority rejected access check",
						"user_id", p.UserID, "module", cfg.ModuleName, "status", se.StatusCode)
					writeDenied(w, defaultDeniedMessage)
					return
				}
				if !cfg.FailOpen {
					metrics.RecordAccessDecision(ctx, cfg.ModuleName, decisionUnavailable)
					slog.ErrorContext(ctx, "authority unavailable, rejecting request",
						"user_id", p.UserID, "module", cfg.ModuleName, "error", err)
					http.Error(w, `{"error":"access authority unavailable"}`, http.StatusServiceUnavailable)
					return
				}
				metrics.RecordAccessDecision(ctx, cfg.ModuleName, decisionFailOpen)
				slog.WarnContext(ctx, "authority unavailable, allowing request without module role",
					"user_id", p.UserID, "module", cfg.ModuleName, "fail_open", true, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			if !d.HasAccess {
				metrics.RecordAccessDecision(ctx, cfg.ModuleName, decisionDenied)
				slog.InfoContext(ctx, "module access denied", "user_id", p.UserID, "module", cfg.ModuleName)
				msg := d.Message
				if msg == "" {
					msg = defaultDeniedMessage
				}
				writeDenied(w, msg)
				return
			}

			metrics.RecordAccessDecision(ctx, cfg.ModuleName, decisionAllowed)
			enriched := p.WithModule(cfg.ModuleName, d.Role)
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, enriched)))
		})
	}
}

func writeDenied(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
