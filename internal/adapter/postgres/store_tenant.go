package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jegasuite/jega/internal/domain/tenant"
)

const tenantColumns = `id, name, slug, active, created_at, updated_at`

func scanTenant(row scannable) (tenant.Tenant, error) {
	var t tenant.Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

// --- Tenants ---

func (s *Store) CreateTenant(ctx context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("create tenant: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`INSERT INTO tenants (name, slug) VALUES ($1, $2)
		 RETURNING `+tenantColumns,
		req.Name, req.Slug,
	)
	t, err := scanTenant(row)
	if err != nil {
		return nil, conflictWrap(err, "create tenant %s", req.Slug)
	}
	return &t, nil
}

func (s *Store) GetTenant(ctx context.Context, id int64) (*tenant.Tenant, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	t, err := scanTenant(row)
	if err != nil {
		return nil, notFoundWrap(err, "get tenant %d", id)
	}
	return &t, nil
}

func (s *Store) ListTenants(ctx context.Context) ([]tenant.Tenant, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tenantColumns+` FROM tenants ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []tenant.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	return tenants, rows.Err()
}

func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tenants WHERE slug = $1)`, slug).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check slug %s: %w", slug, err)
	}
	return exists, nil
}

func (s *Store) DeactivateTenant(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE tenants SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	return execExpectOne(tag, err, "deactivate tenant %d", id)
}

func (s *Store) CurrentTenant(ctx context.Context) (*tenant.Tenant, error) {
	id, err := tenantFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	return s.GetTenant(ctx, id)
}

// --- Module grants ---

func (s *Store) ListModuleGrants(ctx context.Context, tenantID int64) ([]tenant.ModuleGrant, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT tenant_id, module_name, status, purchased_at
		 FROM tenant_modules WHERE tenant_id = $1 ORDER BY purchased_at, module_name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list grants for tenant %d: %w", tenantID, err)
	}
	defer rows.Close()

	var grants []tenant.ModuleGrant
	for rows.Next() {
		var g tenant.ModuleGrant
		if err := rows.Scan(&g.TenantID, &g.ModuleName, &g.Status, &g.PurchasedAt); err != nil {
			return nil, fmt.Errorf("scan grant: %w", err)
		}
		grants = append(grants, g)
	}
	return grants, rows.Err()
}

// GrantModule inserts an active grant. It reports false when the tenant
// already holds the module; the unique index settles concurrent inserts.
func (s *Store) GrantModule(ctx context.Context, tenantID int64, moduleName string, purchasedAt time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO tenant_modules (tenant_id, module_name, status, purchased_at)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (tenant_id, module_name) DO NOTHING`,
		tenantID, moduleName, tenant.GrantActive, purchasedAt)
	if err != nil {
		return false, fmt.Errorf("grant %s to tenant %d: %w", moduleName, tenantID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) ListCurrentModuleGrants(ctx context.Context) ([]tenant.ModuleGrant, error) {
	id, err := tenantFromCtx(ctx)
	if err != nil {
		return nil, err
	}
	return s.ListModuleGrants(ctx, id)
}
