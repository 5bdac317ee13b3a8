package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/jegasuite/jega/internal/config"
	"github.com/jegasuite/jega/internal/domain/tenant"
	"github.com/jegasuite/jega/internal/domain/user"
)

const testSecret = "test-secret-key-must-be-long-enough"

func testAuthConfig() *config.Auth {
	return &config.Auth{
		JWTSecret:         testSecret,
		Issuer:            "jega-identity",
		Audience:          "jega-modules",
		AccessTokenExpiry: 15 * time.Minute,
		BcryptCost:        bcrypt.MinCost,
	}
}

func newTestTokens(inv Invalidator) *TokenService {
	return NewTokenService(testAuthConfig(), func() string { return testSecret }, inv)
}

func testUser() *user.User {
	return &user.User{ID: "u-1", TenantID: 42, Email: "ana@acme.test", Name: "Ana", Role: user.RoleAdmin, Active: true}
}

func TestTokenService_IssueAndExtract(t *testing.T) {
	tokens := newTestTokens(nil)
	tok, exp, err := tokens.Issue(testUser())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if time.Until(exp) <= 0 {
		t.Fatalf("expiry in the past: %v", exp)
	}

	p := tokens.ExtractPrincipal(context.Background(), tok)
	if p == nil {
		t.Fatal("expected principal")
	}
	if p.UserID != "u-1" || p.Email != "ana@acme.test" || p.Role != "Admin" || p.Name != "Ana" {
		t.Errorf("principal = %+v", p)
	}
	if id, ok := p.TenantClaim("tenant_id"); !ok || id != 42 {
		t.Errorf("tenant claim = %d, %v", id, ok)
	}
	if p.JTI == "" || p.ExpiresAt.IsZero() {
		t.Errorf("jti/exp not projected: %+v", p)
	}
}

func signClaims(t *testing.T, method jwt.SigningMethod, key any, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func baseClaims() jwt.MapClaims {
	now := time.Now()
	return jwt.MapClaims{
		"userId":    "u-1",
		"email":     "ana@acme.test",
		"role":      "Employee",
		"tenant_id": "42",
		"iss":       "jega-identity",
		"aud":       "jega-modules",
		"iat":       now.Unix(),
		"exp":       now.Add(time.Hour).Unix(),
	}
}

func TestTokenService_RejectsInvalidTokens(t *testing.T) {
	tokens := newTestTokens(nil)
	key := []byte(testSecret)

	mutate := func(f func(jwt.MapClaims)) jwt.MapClaims {
		c := baseClaims()
		f(c)
		return c
	}

	cases := map[string]string{
		"garbage":        "not-a-token",
		"wrong key":      signClaims(t, jwt.SigningMethodHS256, []byte("another-secret-of-enough-length"), baseClaims()),
		"wrong issuer":   signClaims(t, jwt.SigningMethodHS256, key, mutate(func(c jwt.MapClaims) { c["iss"] = "evil" })),
		"wrong audience": signClaims(t, jwt.SigningMethodHS256, key, mutate(func(c jwt.MapClaims) { c["aud"] = "other" })),
		"expired":        signClaims(t, jwt.SigningMethodHS256, key, mutate(func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Minute).Unix() })),
		"no expiry":      signClaims(t, jwt.SigningMethodHS256, key, mutate(func(c jwt.MapClaims) { delete(c, "exp") })),
		"hs512":          signClaims(t, jwt.SigningMethodHS512, key, baseClaims()),
		"alg none":       signClaims(t, jwt.SigningMethodNone, jwt.UnsafeAllowNoneSignatureType, baseClaims()),
	}
	for name, tok := range cases {
		t.Run(name, func(t *testing.T) {
			if p := tokens.ExtractPrincipal(context.Background(), tok); p != nil {
				t.Fatalf("expected nil principal, got %+v", p)
			}
		})
	}
}

func TestTokenService_NumericTenantClaim(t *testing.T) {
	tokens := newTestTokens(nil)
	c := baseClaims()
	delete(c, "tenant_id")
	c["tenantId"] = 7
	p := tokens.ExtractPrincipal(context.Background(), signClaims(t, jwt.SigningMethodHS256, []byte(testSecret), c))
	if p == nil {
		t.Fatal("expected principal")
	}
	if id, ok := p.TenantClaim("tenantId"); !ok || id != 7 {
		t.Fatalf("tenantId = %d, %v", id, ok)
	}
}

func TestTokenService_Revocation(t *testing.T) {
	store := newMockStore()
	tokens := newTestTokens(store)
	tok, _, err := tokens.Issue(testUser())
	if err != nil {
		t.Fatal(err)
	}
	p := tokens.ExtractPrincipal(context.Background(), tok)
	if p == nil {
		t.Fatal("expected principal before revocation")
	}

	if err := store.RevokeToken(context.Background(), p.JTI, p.ExpiresAt); err != nil {
		t.Fatal(err)
	}
	if tokens.ExtractPrincipal(context.Background(), tok) != nil {
		t.Fatal("revoked token accepted")
	}
}

func TestTokenService_RevocationCheckFailureRejects(t *testing.T) {
	store := newMockStore()
	store.revokedErr = errors.New("db down")
	tokens := newTestTokens(store)
	tok, _, _ := tokens.Issue(testUser())
	if tokens.ExtractPrincipal(context.Background(), tok) != nil {
		t.Fatal("token accepted while revocation check failed")
	}
}

func seedLoginUser(t *testing.T, store *mockStore, password string) *user.User {
	t.Helper()
	ctx := context.Background()
	tn, err := store.CreateTenant(ctx, tenant.CreateRequest{Name: "Acme", Slug: "acme"})
	if err != nil {
		t.Fatal(err)
	}
	hash, err := hashPassword(password, bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	u := &user.User{TenantID: tn.ID, Email: "ana@acme.test", Name: "Ana", PasswordHash: hash, Role: user.RoleAdmin, Active: true}
	if err := store.CreateUser(ctx, u); err != nil {
		t.Fatal(err)
	}
	return u
}

func TestAuthService_LoginAndLogout(t *testing.T) {
	store := newMockStore()
	seedLoginUser(t, store, "abcd-efgh-jkmn")
	tokens := newTestTokens(store)
	svc := NewAuthService(store, tokens)
	ctx := context.Background()

	resp, err := svc.Login(ctx, user.LoginRequest{Email: "ANA@acme.test", Password: "abcd-efgh-jkmn"})
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if resp.AccessToken == "" || resp.ExpiresIn <= 0 {
		t.Fatalf("response = %+v", resp)
	}

	p := tokens.ExtractPrincipal(ctx, resp.AccessToken)
	if p == nil {
		t.Fatal("issued token rejected")
	}
	if err := svc.Logout(ctx, p); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if tokens.ExtractPrincipal(ctx, resp.AccessToken) != nil {
		t.Fatal("token still valid after logout")
	}
}

func TestAuthService_LoginFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong password", func(t *testing.T) {
		store := newMockStore()
		seedLoginUser(t, store, "right-pass")
		_, err := NewAuthService(store, newTestTokens(nil)).Login(ctx, user.LoginRequest{Email: "ana@acme.test", Password: "wrong"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := NewAuthService(newMockStore(), newTestTokens(nil)).Login(ctx, user.LoginRequest{Email: "x@y.test", Password: "p"})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("inactive tenant", func(t *testing.T) {
		store := newMockStore()
		u := seedLoginUser(t, store, "right-pass")
		if err := store.DeactivateTenant(ctx, u.TenantID); err != nil {
			t.Fatal(err)
		}
		_, err := NewAuthService(store, newTestTokens(nil)).Login(ctx, user.LoginRequest{Email: "ana@acme.test", Password: "right-pass"})
		if !errors.Is(err, ErrAccountDisabled) {
			t.Fatalf("expected ErrAccountDisabled, got %v", err)
		}
	})
}

func TestAuthService_PurgeExpiredRevocations(t *testing.T) {
	store := newMockStore()
	ctx := context.Background()
	_ = store.RevokeToken(ctx, "old", time.Now().Add(-time.Hour))
	_ = store.RevokeToken(ctx, "live", time.Now().Add(time.Hour))

	n, err := NewAuthService(store, newTestTokens(nil)).PurgeExpiredRevocations(ctx)
	if err != nil || n != 1 {
		t.Fatalf("purged %d, %v; want 1", n, err)
	}
}
