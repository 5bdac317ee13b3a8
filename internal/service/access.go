package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jegasuite/jega/internal/domain"
	"github.com/jegasuite/jega/internal/domain/tenant"
	"github.com/jegasuite/jega/internal/domain/user"
	"github.com/jegasuite/jega/internal/port/authority"
	"github.com/jegasuite/jega/internal/port/database"
)

// Module roles returned by the authority.
const (
	ModuleRoleAdmin    = "admin"
	ModuleRoleEmployee = "employee"
)

const deniedMessage = "You do not have access to this module. Please contact your administrator."

// AccessService answers module access checks from the billing store. It is
// the server side of authority.Checker.
type AccessService struct {
	store database.Store
}

// NewAccessService creates an AccessService.
func NewAccessService(store database.Store) *AccessService {
	return &AccessService{store: store}
}

// CheckAccess implements authority.Checker. Unknown users and modules are
// denials, not errors; only store failures are returned.
func (s *AccessService) CheckAccess(ctx context.Context, userID, moduleName string) (*authority.Decision, error) {
	if userID == "" || moduleName == "" {
		return nil, fmt.Errorf("%w: userId and moduleName are required", domain.ErrValidation)
	}

	u, err := s.store.GetUser(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return deny("unknown user"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", userID, err)
	}
	if !u.Active {
		return deny("user is disabled"), nil
	}

	t, err := s.store.GetTenant(ctx, u.TenantID)
	if errors.Is(err, domain.ErrNotFound) {
		return deny("unknown tenant"), nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tenant %d: %w", u.TenantID, err)
	}
	if !t.Active {
		return deny("tenant is disabled"), nil
	}

	grants, err := s.store.ListModuleGrants(ctx, t.ID)
	if err != nil {
		return nil, fmt.Errorf("list grants for tenant %d: %w", t.ID, err)
	}
	for _, g := range grants {
		if g.ModuleName == moduleName && g.Status == tenant.GrantActive {
			return &authority.Decision{
				HasAccess: true,
				Role:      moduleRole(u.Role),
				TenantID:  t.ID,
			}, nil
		}
	}

	slog.InfoContext(ctx, "module access denied", "user_id", userID, "module", moduleName, "tenant_id", t.ID)
	d := deny("module not purchased")
	d.TenantID = t.ID
	return d, nil
}

func deny(reason string) *authority.Decision {
	return &authority.Decision{HasAccess: false, Message: deniedMessage + " (" + reason + ")"}
}

func moduleRole(r user.Role) string {
	if r == user.RoleAdmin {
		return ModuleRoleAdmin
	}
	return ModuleRoleEmployee
}
