package otel

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
)

// HTTPMiddleware traces inbound requests. Spans are named by method and
// route pattern ("POST /payments/webhook") once chi has routed the
// request, so per-tenant paths do not explode span cardinality. Health
// probes are not traced.
func HTTPMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		routed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			// The pattern is only known after chi has routed the request.
			trace.SpanFromContext(r.Context()).SetName(spanName("", r))
		})
		return otelhttp.NewHandler(routed, serviceName,
			otelhttp.WithFilter(func(r *http.Request) bool {
				return !strings.HasPrefix(r.URL.Path, "/health")
			}),
			otelhttp.WithSpanNameFormatter(spanName),
		)
	}
}

func spanName(_ string, r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return r.Method + " " + p
		}
	}
	return r.Method + " " + r.URL.Path
}

// HTTPTransport wraps base so authority calls carry the caller's trace
// context to the billing service.
func HTTPTransport(base http.RoundTripper) http.RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return otelhttp.NewTransport(base)
}
