// Package middleware provides the HTTP trust boundary for Jega services:
// request ids, bearer authentication, tenant resolution, module
// authorization and webhook signature checks.
package middleware

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jegasuite/jega/internal/logger"
)

const headerRequestID = "X-Request-ID"

const maxRequestIDLen = 128

// RequestID tags each request with an id that every later log line carries,
// so a rejected webhook or a tenant fallback warning can be traced back to
// one gateway delivery. A caller-supplied X-Request-ID is kept when it is
// short printable ASCII; anything else is replaced with a fresh UUID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(headerRequestID)
		if !validRequestID(id) {
			id = uuid.NewString()
		}

		ctx := logger.WithRequestID(r.Context(), id)
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validRequestID rejects ids that could forge or split log records.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		if c := id[i]; c < 0x21 || c > 0x7e {
			return false
		}
	}
	return true
}
