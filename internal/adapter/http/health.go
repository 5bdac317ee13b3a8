package http

import (
	"context"
	"net/http"
	"sort"
	"time"
)

const readinessTimeout = 2 * time.Second

// Health serves liveness and readiness. Readiness runs every registered
// check and fails if any of them does.
type Health struct {
	service string
	checks  map[string]func(context.Context) error
}

// NewHealth creates a Health for the named service.
func NewHealth(service string) *Health {
	return &Health{service: service, checks: make(map[string]func(context.Context) error)}
}

// AddCheck registers a readiness dependency.
func (h *Health) AddCheck(name string, fn func(context.Context) error) {
	h.checks[name] = fn
}

// Live handles GET /health.
func (h *Health) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": h.service})
}

// Ready handles GET /health/ready.
func (h *Health) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := http.StatusOK
	results := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name](ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "unavailable"
	}
	writeJSON(w, status, map[string]any{"status": overall, "checks": results})
}
