// Package database defines the database store port (interface).
package database

import (
	"context"
	"time"

	"github.com/jegasuite/jega/internal/domain/payment"
	"github.com/jegasuite/jega/internal/domain/tenant"
	"github.com/jegasuite/jega/internal/domain/user"
)

// Store is the port interface for the billing database.
//
// Methods taking an explicit tenant id serve provisioning and the access
// authority, which act across tenants. The Current* methods are
// tenant-scoped and read the id from the request's tenant context; they
// fail when no tenant has been resolved.
type Store interface {
	// Tenants
	CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error)
	GetTenant(ctx context.Context, id int64) (*tenant.Tenant, error)
	ListTenants(ctx context.Context) ([]tenant.Tenant, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	DeactivateTenant(ctx context.Context, id int64) error
	CurrentTenant(ctx context.Context) (*tenant.Tenant, error)

	// Module grants
	ListModuleGrants(ctx context.Context, tenantID int64) ([]tenant.ModuleGrant, error)
	// GrantModule inserts an active grant and reports whether a row was
	// added. An existing grant for the pair is left untouched.
	GrantModule(ctx context.Context, tenantID int64, moduleName string, purchasedAt time.Time) (bool, error)
	ListCurrentModuleGrants(ctx context.Context) ([]tenant.ModuleGrant, error)

	// Users. CreateUser returns domain.ErrConflict when the email is taken.
	CreateUser(ctx context.Context, u *user.User) error
	GetUser(ctx context.Context, id string) (*user.User, error)
	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
	ListCurrentUsers(ctx context.Context) ([]user.User, error)

	// Payments
	UpsertPayment(ctx context.Context, p *payment.Payment) (*payment.Payment, error)
	GetPaymentByReference(ctx context.Context, reference string) (*payment.Payment, error)
	// SetPaymentTenant records the tenant a payment provisioned into.
	SetPaymentTenant(ctx context.Context, reference string, tenantID int64) error
	MarkPaymentProvisioned(ctx context.Context, reference string, modules []string, at time.Time) error
	NextReferenceSeq(ctx context.Context) (int64, error)

	// Token invalidation
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}
