package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jegasuite/jega/internal/domain"
	"github.com/jegasuite/jega/internal/domain/payment"
	"github.com/jegasuite/jega/internal/domain/tenant"
	"github.com/jegasuite/jega/internal/domain/user"
	"github.com/jegasuite/jega/internal/tenantctx"
)

// mockStore is an in-memory database.Store that enforces the same unique
// constraints as the Postgres schema.
type mockStore struct {
	mu       sync.Mutex
	nextID   int64
	seq      int64
	tenants  map[int64]*tenant.Tenant
	grants   map[int64][]tenant.ModuleGrant
	users    map[string]*user.User // by id
	payments map[string]*payment.Payment
	revoked  map[string]time.Time

	// Fault injection.
	createUserErr    error
	grantErr         error
	upsertErr        error
	revokedErr       error
	beforeCreateUser func() // runs without the lock held
}

func newMockStore() *mockStore {
	return &mockStore{
		tenants:  make(map[int64]*tenant.Tenant),
		grants:   make(map[int64][]tenant.ModuleGrant),
		users:    make(map[string]*user.User),
		payments: make(map[string]*payment.Payment),
		revoked:  make(map[string]time.Time),
	}
}

// --- Tenants ---

func (m *mockStore) CreateTenant(_ context.Context, req tenant.CreateRequest) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		if t.Slug == req.Slug {
			return nil, fmt.Errorf("create tenant: %w", domain.ErrConflict)
		}
	}
	m.nextID++
	now := time.Now().UTC()
	t := &tenant.Tenant{ID: m.nextID, Name: req.Name, Slug: req.Slug, Active: true, CreatedAt: now, UpdatedAt: now}
	m.tenants[t.ID] = t
	cp := *t
	return &cp, nil
}

func (m *mockStore) GetTenant(_ context.Context, id int64) (*tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, fmt.Errorf("get tenant %d: %w", id, domain.ErrNotFound)
	}
	cp := *t
	return &cp, nil
}

func (m *mockStore) ListTenants(_ context.Context) ([]tenant.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]tenant.Tenant, 0, len(m.tenants))
	for id := int64(1); id <= m.nextID; id++ {
		if t, ok := m.tenants[id]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *mockStore) SlugExists(_ context.Context, slug string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		if t.Slug == slug {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockStore) DeactivateTenant(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return domain.ErrNotFound
	}
	t.Active = false
	return nil
}

func (m *mockStore) CurrentTenant(ctx context.Context) (*tenant.Tenant, error) {
	id, err := tenantctx.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return m.GetTenant(ctx, id)
}

// --- Grants ---

func (m *mockStore) ListModuleGrants(_ context.Context, tenantID int64) ([]tenant.ModuleGrant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]tenant.ModuleGrant(nil), m.grants[tenantID]...), nil
}

func (m *mockStore) GrantModule(_ context.Context, tenantID int64, moduleName string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.grantErr != nil {
		return false, m.grantErr
	}
	for _, g := range m.grants[tenantID] {
		if g.ModuleName == moduleName {
			return false, nil
		}
	}
	m.grants[tenantID] = append(m.grants[tenantID], tenant.ModuleGrant{
		TenantID: tenantID, ModuleName: moduleName, Status: tenant.GrantActive, PurchasedAt: at,
	})
	return true, nil
}

func (m *mockStore) ListCurrentModuleGrants(ctx context.Context) ([]tenant.ModuleGrant, error) {
	id, err := tenantctx.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	return m.ListModuleGrants(ctx, id)
}

// --- Users ---

func (m *mockStore) CreateUser(_ context.Context, u *user.User) error {
	if m.beforeCreateUser != nil {
		m.beforeCreateUser()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createUserErr != nil {
		return m.createUserErr
	}
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return fmt.Errorf("create user: %w", domain.ErrConflict)
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *mockStore) GetUser(_ context.Context, id string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, fmt.Errorf("get user %s: %w", id, domain.ErrNotFound)
	}
	cp := *u
	return &cp, nil
}

func (m *mockStore) GetUserByEmail(_ context.Context, email string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("get user by email %s: %w", email, domain.ErrNotFound)
}

func (m *mockStore) ListCurrentUsers(ctx context.Context) ([]user.User, error) {
	id, err := tenantctx.FromContext(ctx)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []user.User
	for _, u := range m.users {
		if u.TenantID == id {
			out = append(out, *u)
		}
	}
	return out, nil
}

// --- Payments ---

func (m *mockStore) UpsertPayment(_ context.Context, p *payment.Payment) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}
	existing, ok := m.payments[p.Reference]
	if !ok {
		cp := *p
		cp.ID = uuid.NewString()
		m.payments[p.Reference] = &cp
		out := cp
		return &out, nil
	}
	if existing.Status != payment.StatusApproved {
		existing.Status = p.Status
	}
	if p.TransactionID != "" {
		existing.TransactionID = p.TransactionID
	}
	if p.AmountInCents != 0 {
		existing.AmountInCents = p.AmountInCents
	}
	if p.CustomerEmail != "" {
		existing.CustomerEmail = p.CustomerEmail
	}
	out := *existing
	return &out, nil
}

func (m *mockStore) GetPaymentByReference(_ context.Context, reference string) (*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[reference]
	if !ok {
		return nil, fmt.Errorf("get payment %s: %w", reference, domain.ErrNotFound)
	}
	cp := *p
	return &cp, nil
}

func (m *mockStore) SetPaymentTenant(_ context.Context, reference string, tenantID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[reference]
	if !ok {
		return domain.ErrNotFound
	}
	p.TenantID = tenantID
	return nil
}

func (m *mockStore) MarkPaymentProvisioned(_ context.Context, reference string, modules []string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[reference]
	if !ok {
		return domain.ErrNotFound
	}
	p.Modules = modules
	p.ProvisionedAt = &at
	return nil
}

func (m *mockStore) NextReferenceSeq(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	return m.seq, nil
}

// --- Tokens ---

func (m *mockStore) RevokeToken(_ context.Context, jti string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[jti] = expiresAt
	return nil
}

func (m *mockStore) IsTokenRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revokedErr != nil {
		return false, m.revokedErr
	}
	_, ok := m.revoked[jti]
	return ok, nil
}

func (m *mockStore) PurgeExpiredTokens(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	now := time.Now()
	for jti, exp := range m.revoked {
		if exp.Before(now) {
			delete(m.revoked, jti)
			n++
		}
	}
	return n, nil
}

// --- helpers for assertions ---

func (m *mockStore) tenantCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tenants)
}

func (m *mockStore) activeTenantCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tenants {
		if t.Active {
			n++
		}
	}
	return n
}

func (m *mockStore) userCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

func (m *mockStore) grantNames(tenantID int64) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, g := range m.grants[tenantID] {
		out = append(out, g.ModuleName)
	}
	return out
}
