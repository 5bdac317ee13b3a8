package service

import (
	"context"
	"fmt"

	"github.com/jegasuite/jega/internal/domain/tenant"
	"github.com/jegasuite/jega/internal/domain/user"
	"github.com/jegasuite/jega/internal/port/database"
)

// TenantService serves tenant-scoped reads. The tenant is taken from the
// request context, never from the caller's arguments.
type TenantService struct {
	store database.Store
}

// NewTenantService creates a new TenantService.
func NewTenantService(store database.Store) *TenantService {
	return &TenantService{store: store}
}

// Current returns the tenant resolved for this request.
func (s *TenantService) Current(ctx context.Context) (*tenant.Tenant, error) {
	t, err := s.store.CurrentTenant(ctx)
	if err != nil {
		return nil, fmt.Errorf("current tenant: %w", err)
	}
	return t, nil
}

// Modules returns the module grants of the current tenant.
func (s *TenantService) Modules(ctx context.Context) ([]tenant.ModuleGrant, error) {
	grants, err := s.store.ListCurrentModuleGrants(ctx)
	if err != nil {
		return nil, fmt.Errorf("current tenant grants: %w", err)
	}
	return grants, nil
}

// Users returns the users of the current tenant.
func (s *TenantService) Users(ctx context.Context) ([]user.User, error) {
	users, err := s.store.ListCurrentUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("current tenant users: %w", err)
	}
	return users, nil
}

// List returns all tenants. Used by the admin CLI only.
func (s *TenantService) List(ctx context.Context) ([]tenant.Tenant, error) {
	return s.store.ListTenants(ctx)
}
