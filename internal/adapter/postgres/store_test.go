package postgres_test

import (
	"context"
	"errors"
	"os"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jegasuite/jega/internal/adapter/postgres"
	"github.com/jegasuite/jega/internal/domain"
	"github.com/jegasuite/jega/internal/domain/payment"
	"github.com/jegasuite/jega/internal/domain/tenant"
	"github.com/jegasuite/jega/internal/domain/user"
	"github.com/jegasuite/jega/internal/tenantctx"
)

// setupStore creates a pgxpool connection, runs all migrations, and returns a
// ready-to-use Store. The pool is closed via t.Cleanup.
func setupStore(t *testing.T) *postgres.Store {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("requires DATABASE_URL")
	}

	ctx := context.Background()
	if err := postgres.RunMigrations(ctx, dsn); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return postgres.NewStore(pool)
}

func createTestTenant(t *testing.T, store *postgres.Store) *tenant.Tenant {
	t.Helper()
	slug := "test-" + uuid.NewString()[:8]
	tn, err := store.CreateTenant(context.Background(), tenant.CreateRequest{Name: "Test " + slug, Slug: slug})
	if err != nil {
		t.Fatalf("create test tenant: %v", err)
	}
	return tn
}

func createTestUser(t *testing.T, store *postgres.Store, tenantID int64) *user.User {
	t.Helper()
	u := &user.User{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		Email:        uuid.NewString()[:8] + "@example.test",
		Name:         "Test",
		PasswordHash: "x",
		Role:         user.RoleAdmin,
		Active:       true,
	}
	if err := store.CreateUser(context.Background(), u); err != nil {
		t.Fatalf("create test user: %v", err)
	}
	return u
}

func TestStore_TenantSlugUnique(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	tn := createTestTenant(t, store)

	exists, err := store.SlugExists(ctx, tn.Slug)
	if err != nil || !exists {
		t.Fatalf("SlugExists = %v, %v", exists, err)
	}
	_, err = store.CreateTenant(ctx, tenant.CreateRequest{Name: "dup", Slug: tn.Slug})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestStore_DeactivateTenant(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	tn := createTestTenant(t, store)

	if err := store.DeactivateTenant(ctx, tn.ID); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetTenant(ctx, tn.ID)
	if err != nil || got.Active {
		t.Fatalf("tenant = %+v, %v", got, err)
	}
	if err := store.DeactivateTenant(ctx, 1<<60); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_GrantModuleIdempotent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	tn := createTestTenant(t, store)

	var wg sync.WaitGroup
	inserted := make(chan bool, 8)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.GrantModule(ctx, tn.ID, "extra-hours", time.Now())
			if err != nil {
				t.Error(err)
			}
			inserted <- ok
		}()
	}
	wg.Wait()
	close(inserted)

	n := 0
	for ok := range inserted {
		if ok {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("%d concurrent grants reported insertion, want 1", n)
	}
	grants, err := store.ListModuleGrants(ctx, tn.ID)
	if err != nil || len(grants) != 1 || grants[0].Status != tenant.GrantActive {
		t.Fatalf("grants = %+v, %v", grants, err)
	}
}

func TestStore_UserEmailUniqueAcrossTenants(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	a := createTestTenant(t, store)
	b := createTestTenant(t, store)
	u := createTestUser(t, store, a.ID)

	dup := &user.User{ID: uuid.NewString(), TenantID: b.ID, Email: " " + u.Email, PasswordHash: "x", Role: user.RoleAdmin, Active: true}
	if err := store.CreateUser(ctx, dup); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	got, err := store.GetUserByEmail(ctx, "  "+u.Email)
	if err != nil || got.ID != u.ID {
		t.Fatalf("GetUserByEmail = %+v, %v", got, err)
	}
	if _, err := store.GetUserByEmail(ctx, "missing@example.test"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_TenantScopedReads(t *testing.T) {
	store := setupStore(t)
	a := createTestTenant(t, store)
	b := createTestTenant(t, store)
	ua := createTestUser(t, store, a.ID)
	createTestUser(t, store, b.ID)

	ctx, err := tenantctx.WithTenant(context.Background(), a.ID)
	if err != nil {
		t.Fatal(err)
	}
	users, err := store.ListCurrentUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 || users[0].ID != ua.ID {
		t.Fatalf("users = %+v", users)
	}

	cur, err := store.CurrentTenant(ctx)
	if err != nil || cur.ID != a.ID {
		t.Fatalf("CurrentTenant = %+v, %v", cur, err)
	}

	unresolved, _ := tenantctx.WithCarrier(context.Background())
	if _, err := store.ListCurrentUsers(unresolved); !errors.Is(err, tenantctx.ErrNotSet) {
		t.Fatalf("expected ErrNotSet, got %v", err)
	}
}

func TestStore_PaymentLifecycle(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	ref := "JEGA-TEST-" + uuid.NewString()[:8]

	seq1, err := store.NextReferenceSeq(ctx)
	if err != nil {
		t.Fatal(err)
	}
	seq2, _ := store.NextReferenceSeq(ctx)
	if seq2 <= seq1 {
		t.Fatalf("sequence did not advance: %d, %d", seq1, seq2)
	}

	p, err := store.UpsertPayment(ctx, &payment.Payment{
		Reference: ref, Status: payment.StatusPending, AmountInCents: 100, Currency: "COP",
		CustomerEmail: "a@example.test", Modules: []string{"extra-hours"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p.ID == "" || p.Status != payment.StatusPending {
		t.Fatalf("payment = %+v", p)
	}

	approved, err := store.UpsertPayment(ctx, &payment.Payment{Reference: ref, Status: payment.StatusApproved, TransactionID: "txn-1"})
	if err != nil {
		t.Fatal(err)
	}
	if approved.Status != payment.StatusApproved || approved.CustomerEmail != "a@example.test" || approved.AmountInCents != 100 {
		t.Fatalf("approved = %+v", approved)
	}
	if !slices.Equal(approved.Modules, []string{"extra-hours"}) {
		t.Fatalf("modules = %v", approved.Modules)
	}

	late, err := store.UpsertPayment(ctx, &payment.Payment{Reference: ref, Status: payment.StatusDeclined})
	if err != nil {
		t.Fatal(err)
	}
	if late.Status != payment.StatusApproved {
		t.Fatalf("approved payment downgraded to %s", late.Status)
	}

	tn := createTestTenant(t, store)
	if err := store.SetPaymentTenant(ctx, ref, tn.ID); err != nil {
		t.Fatal(err)
	}
	at := time.Now().UTC().Truncate(time.Second)
	if err := store.MarkPaymentProvisioned(ctx, ref, []string{"extra-hours", "report-builder"}, at); err != nil {
		t.Fatal(err)
	}
	got, err := store.GetPaymentByReference(ctx, ref)
	if err != nil {
		t.Fatal(err)
	}
	if got.TenantID != tn.ID || got.ProvisionedAt == nil || !got.ProvisionedAt.Equal(at) || len(got.Modules) != 2 {
		t.Fatalf("payment = %+v", got)
	}
}

func TestStore_RevokedTokens(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	live := uuid.NewString()
	dead := uuid.NewString()

	if err := store.RevokeToken(ctx, live, time.Now().Add(time.Hour)); err != nil {
		t.Fatal(err)
	}
	if err := store.RevokeToken(ctx, live, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("second revoke: %v", err)
	}
	if err := store.RevokeToken(ctx, dead, time.Now().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	if ok, err := store.IsTokenRevoked(ctx, live); err != nil || !ok {
		t.Fatalf("IsTokenRevoked = %v, %v", ok, err)
	}
	if _, err := store.PurgeExpiredTokens(ctx); err != nil {
		t.Fatal(err)
	}
	if ok, _ := store.IsTokenRevoked(ctx, dead); ok {
		t.Fatal("expired revocation not purged")
	}
}
