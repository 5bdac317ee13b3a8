package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/jegasuite/jega/internal/config"
	"github.com/jegasuite/jega/internal/domain"
	"github.com/jegasuite/jega/internal/domain/principal"
	"github.com/jegasuite/jega/internal/domain/user"
	"github.com/jegasuite/jega/internal/port/database"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDisabled    = errors.New("account is disabled")
)

// Invalidator reports whether a token id has been revoked.
type Invalidator interface {
	IsTokenRevoked(ctx context.Context, jti string) (bool, error)
}

// AccessClaims is the payload of issued access tokens. The JSON names are
// the short claim names every module reads.
type AccessClaims struct {
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
	Name     string `json:"name"`
	jwt.RegisteredClaims
}

// TokenService issues and validates bearer tokens shared across modules.
type TokenService struct {
	secret      func() string
	issuer      string
	audience    string
	expiry      time.Duration
	invalidator Invalidator
	now         func() time.Time
}

// NewTokenService creates a TokenService. secret is read per call so a
// reloaded key applies immediately. invalidator may be nil.
func NewTokenService(cfg *config.Auth, secret func() string, invalidator Invalidator) *TokenService {
	return &TokenService{
		secret:      secret,
		issuer:      cfg.Issuer,
		audience:    cfg.Audience,
		expiry:      cfg.AccessTokenExpiry,
		invalidator: invalidator,
		now:         time.Now,
	}
}

// Issue signs an access token for u.
func (s *TokenService) Issue(u *user.User) (string, time.Time, error) {
	now := s.now()
	exp := now.Add(s.expiry)
	claims := AccessClaims{
		UserID:   u.ID,
		Email:    u.Email,
		Role:     string(u.Role),
		TenantID: strconv.FormatInt(u.TenantID, 10),
		Name:     u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.secret()))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// ExtractPrincipal validates token and projects its claims. Any failure
// yields nil and a warning; errors never cross this boundary.
func (s *TokenService) ExtractPrincipal(ctx context.Context, token string) *principal.Principal {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithAudience(s.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)

	claims := jwt.MapClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return []byte(s.secret()), nil
	})
	if err != nil {
		slog.WarnContext(ctx, "bearer token rejected", "error", err)
		return nil
	}

	flat := make(map[string]string, 8)
	for _, name := range []string{
		principal.ClaimUserID, principal.ClaimUserIDAlt, principal.ClaimEmail,
		principal.ClaimRole, principal.ClaimTenantID, principal.ClaimTenantIDAlt,
		principal.ClaimName,
	} {
		if v, ok := claimString(claims[name]); ok {
			flat[name] = v
		}
	}
	p := principal.New(flat)
	p.JTI, _ = claimString(claims["jti"])
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		p.ExpiresAt = exp.Time
	}

	if p.JTI != "" && s.invalidator != nil {
		revoked, err := s.invalidator.IsTokenRevoked(ctx, p.JTI)
		if err != nil {
			slog.ErrorContext(ctx, "token revocation check failed, rejecting token", "jti", p.JTI, "error", err)
			return nil
		}
		if revoked {
			slog.WarnContext(ctx, "bearer token revoked", "jti", p.JTI)
			return nil
		}
	}
	return p
}

// claimString renders a string or numeric claim as text.
func claimString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, t != ""
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int64:
		return strconv.FormatInt(t, 10), true
	default:
		return "", false
	}
}

// AuthService handles login and logout against the billing identity store.
type AuthService struct {
	store  database.Store
	tokens *TokenService
}

// NewAuthService creates a new authentication service.
func NewAuthService(store database.Store, tokens *TokenService) *AuthService {
	return &AuthService{store: store, tokens: tokens}
}

// Login checks email and password and returns a signed access token.
func (s *AuthService) Login(ctx context.Context, req user.LoginRequest) (*user.LoginResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}

	u, err := s.store.GetUserByEmail(ctx, user.NormalizeEmail(req.Email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, ErrAccountDisabled
	}
	t, err := s.store.GetTenant(ctx, u.TenantID)
	if err != nil {
		return nil, fmt.Errorf("get tenant: %w", err)
	}
	if !t.Active {
		return nil, ErrAccountDisabled
	}

	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return nil, err
	}
	return &user.LoginResponse{
		AccessToken: token,
		ExpiresIn:   int(time.Until(exp).Seconds()),
		User:        *u,
	}, nil
}

// Logout revokes the caller's access token by jti.
func (s *AuthService) Logout(ctx context.Context, p *principal.Principal) error {
	if p == nil || p.JTI == "" {
		return nil
	}
	exp := p.ExpiresAt
	if exp.IsZero() {
		exp = time.Now().Add(s.tokens.expiry)
	}
	if err := s.store.RevokeToken(ctx, p.JTI, exp); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// PurgeExpiredRevocations deletes revocation rows whose tokens have expired.
func (s *AuthService) PurgeExpiredRevocations(ctx context.Context) (int64, error) {
	return s.store.PurgeExpiredTokens(ctx)
}
