package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
)

// HeaderIntegrity carries the gateway's HMAC-SHA256 of the raw body.
const HeaderIntegrity = "X-Integrity"

// maxWebhookBody bounds webhook payloads.
const maxWebhookBody = 1 << 20

type rawBodyCtxKey struct{}

// SignatureChecker applies the webhook signature policy to a raw body.
type SignatureChecker interface {
	Check(rawBody []byte, signature string) error
}

// VerifyWebhook returns middleware that authenticates gateway deliveries
// against the exact bytes received. The raw body is kept in the context and
// restored on the request for the handler.
func VerifyWebhook(checker SignatureChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
			if err != nil {
				var tooLarge *http.MaxBytesError
				if errors.As(err, &tooLarge) {
					http.Error(w, `{"error":"payload too large"}`, http.StatusRequestEntityTooLarge)
					return
				}
				http.Error(w, `{"error":"failed to read body"}`, http.StatusBadRequest)
				return
			}

			if err := checker.Check(body, r.Header.Get(HeaderIntegrity)); err != nil {
				slog.WarnContext(r.Context(), "webhook rejected", "error", err, "remote", r.RemoteAddr)
				http.Error(w, `{"error":"invalid signature"}`, http.StatusUnauthorized)
				return
			}

			r.Body = io.NopCloser(bytes.NewReader(body))
			ctx := context.WithValue(r.Context(), rawBodyCtxKey{}, body)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RawBodyFromContext returns the verified webhook body, or nil.
func RawBodyFromContext(ctx context.Context) []byte {
	b, _ := ctx.Value(rawBodyCtxKey{}).([]byte)
	return b
}
