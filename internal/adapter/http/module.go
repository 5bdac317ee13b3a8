package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/jegasuite/jega/internal/adapter/legacyidentity"
	"github.com/jegasuite/jega/internal/domain"
	"github.com/jegasuite/jega/internal/middleware"
	"github.com/jegasuite/jega/internal/tenantctx"
)

// ModuleUserReader reads the module identity store of the resolved tenant.
type ModuleUserReader interface {
	GetByEmail(ctx context.Context, email string) (*legacyidentity.User, error)
	ListUsers(ctx context.Context) ([]legacyidentity.User, error)
}

// ModuleHandlers holds the module host HTTP handlers.
type ModuleHandlers struct {
	ModuleName string
	Users      ModuleUserReader
	Health     *Health
}

type meResponse struct {
	UserID       string               `json:"userId"`
	Email        string               `json:"email"`
	Name         string               `json:"name,omitempty"`
	Role         string               `json:"role"`
	ModuleName   string               `json:"moduleName"`
	ModuleRole   string               `json:"moduleRole,omitempty"`
	TenantID     int64                `json:"tenantId"`
	TenantSource string               `json:"tenantSource"`
	Profile      *legacyidentity.User `json:"profile,omitempty"`
}

// Me handles GET /api/v1/me. It reports who the trust boundary decided the
// caller is, plus the module profile when one exists.
func (h *ModuleHandlers) Me(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p := middleware.PrincipalFromContext(ctx)
	if p == nil {
		writeError(w, http.StatusUnauthorized, "authorization required")
		return
	}
	tid, err := tenantctx.FromContext(ctx)
	if err != nil {
		writeDomainError(w, err, "tenant not found")
		return
	}

	resp := meResponse{
		UserID:       p.UserID,
		Email:        p.Email,
		Name:         p.Name,
		Role:         p.Role,
		ModuleName:   h.ModuleName,
		ModuleRole:   p.ModuleRole(),
		TenantID:     tid,
		TenantSource: "resolved",
	}
	if c := tenantctx.CarrierFrom(ctx); c != nil && c.IsFallback() {
		resp.TenantSource = "default"
	}

	if p.Email != "" && h.Users != nil {
		profile, err := h.Users.GetByEmail(ctx, p.Email)
		switch {
		case err == nil:
			resp.Profile = profile
		case !errors.Is(err, domain.ErrNotFound):
			writeInternalError(w, r, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListUsers handles GET /api/v1/users.
func (h *ModuleHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	handleList(h.Users.ListUsers, "tenant not found")(w, r)
}
