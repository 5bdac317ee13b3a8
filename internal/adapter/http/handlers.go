package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/jegasuite/jega/internal/domain/payment"
	"github.com/jegasuite/jega/internal/domain/principal"
	"github.com/jegasuite/jega/internal/domain/tenant"
	"github.com/jegasuite/jega/internal/domain/user"
	"github.com/jegasuite/jega/internal/domain/webhook"
	"github.com/jegasuite/jega/internal/middleware"
	"github.com/jegasuite/jega/internal/port/authority"
	"github.com/jegasuite/jega/internal/service"
)

// PaymentEventHandler applies one gateway event.
type PaymentEventHandler interface {
	HandlePaymentEvent(ctx context.Context, ev *payment.Event) (*service.ProvisioningResult, error)
}

// CheckoutStarter opens a purchase.
type CheckoutStarter interface {
	Start(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutResponse, error)
}

// Authenticator logs users in and out.
type Authenticator interface {
	Login(ctx context.Context, req user.LoginRequest) (*user.LoginResponse, error)
	Logout(ctx context.Context, p *principal.Principal) error
}

// TenantReader serves reads scoped to the resolved tenant.
type TenantReader interface {
	Current(ctx context.Context) (*tenant.Tenant, error)
	Modules(ctx context.Context) ([]tenant.ModuleGrant, error)
	Users(ctx context.Context) ([]user.User, error)
}

// Handlers holds the billing service HTTP handlers.
type Handlers struct {
	Provisioner PaymentEventHandler
	Checkout    CheckoutStarter
	Auth        Authenticator
	Access      authority.Checker
	Tenants     TenantReader
	Health      *Health
}

// PaymentWebhook handles POST /payments/webhook (alias
// /api/v1/webhooks/payments). The body has
// already passed signature verification.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	raw := middleware.RawBodyFromContext(ctx)

	ev, err := webhook.Decode(raw)
	if err != nil {
		slog.WarnContext(ctx, "rejecting undecodable payment event", "error", err)
		writeError(w, http.StatusBadRequest, "malformed event")
		return
	}

	res, err := h.Provisioner.HandlePaymentEvent(ctx, ev)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// StartCheckout handles POST /api/v1/payments/checkout.
func (h *Handlers) StartCheckout(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[payment.CheckoutRequest](w, r)
	if !ok {
		return
	}
	resp, err := h.Checkout.Start(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "module not found")
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Login handles POST /api/v1/auth/login.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[user.LoginRequest](w, r)
	if !ok {
		return
	}
	resp, err := h.Auth.Login(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid email or password")
	case errors.Is(err, service.ErrAccountDisabled):
		writeError(w, http.StatusForbidden, "account is disabled")
	case err != nil:
		writeDomainError(w, err, "user not found")
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

// Logout handles POST /api/v1/auth/logout.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.Auth.Logout(r.Context(), middleware.PrincipalFromContext(r.Context())); err != nil {
		writeInternalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckAccess handles GET /api/v1/access/check-access. Callers may only ask
// about themselves.
func (h *Handlers) CheckAccess(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("userId")
	moduleName := r.URL.Query().Get("moduleName")
	if !requireField(w, userID, "userId") || !requireField(w, moduleName, "moduleName") {
		return
	}
	p := middleware.PrincipalFromContext(r.Context())
	if p == nil || p.UserID != userID {
		writeError(w, http.StatusForbidden, "access checks are limited to the calling user")
		return
	}

	d, err := h.Access.CheckAccess(r.Context(), userID, moduleName)
	if err != nil {
		writeDomainError(w, err, "user not found")
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// CurrentTenant handles GET /api/v1/tenant.
func (h *Handlers) CurrentTenant(w http.ResponseWriter, r *http.Request) {
	handleCurrent(h.Tenants.Current, "tenant not found")(w, r)
}

// TenantModules handles GET /api/v1/tenant/modules.
func (h *Handlers) TenantModules(w http.ResponseWriter, r *http.Request) {
	handleList(h.Tenants.Modules, "tenant not found")(w, r)
}

// TenantUsers handles GET /api/v1/tenant/users.
func (h *Handlers) TenantUsers(w http.ResponseWriter, r *http.Request) {
	handleList(h.Tenants.Users, "tenant not found")(w, r)
}
