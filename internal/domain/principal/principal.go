// Package principal defines the request-scoped identity projected from a
// bearer token and enriched by the module authority.
package principal

import (
	"strconv"
	"strings"
	"time"
)

// Claim names shared by every module in the federation. Tokens are issued
// with exactly these names and parsers look them up verbatim.
const (
	ClaimUserID      = "userId"
	ClaimUserIDAlt   = "id"
	ClaimEmail       = "email"
	ClaimRole        = "role"
	ClaimTenantID    = "tenant_id"
	ClaimTenantIDAlt = "tenantId"
	ClaimName        = "name"
	ClaimModuleRole  = "module_role"
	ClaimModuleName  = "module_name"
)

// DefaultModuleRole is merged when the authority grants access without a role.
const DefaultModuleRole = "employee"

// Principal is the authenticated caller of one request. It is rebuilt per
// request and never persisted.
type Principal struct {
	UserID string
	Email  string
	Role   string
	Name   string
	JTI    string
	// ExpiresAt is the token expiry; zero for principals built in tests.
	ExpiresAt time.Time

	claims map[string]string
}

// New builds a Principal from a flat claim set. Recognized claims are
// projected onto fields; every claim stays available through Claim.
func New(claims map[string]string) *Principal {
	c := make(map[string]string, len(claims))
	for k, v := range claims {
		c[k] = v
	}
	userID := c[ClaimUserID]
	if userID == "" {
		userID = c[ClaimUserIDAlt]
	}
	return &Principal{
		UserID: userID,
		Email:  c[ClaimEmail],
		Role:   c[ClaimRole],
		Name:   c[ClaimName],
		claims: c,
	}
}

// Claim returns the raw value of a claim, or "" when absent.
func (p *Principal) Claim(name string) string {
	if p == nil {
		return ""
	}
	return p.claims[name]
}

// TenantClaim parses a tenant id claim. It reports false when the claim is
// absent or is not a positive integer.
func (p *Principal) TenantClaim(name string) (int64, bool) {
	return ParseTenantID(p.Claim(name))
}

// WithModule returns a copy of p carrying the module-scoped role and name
// granted by the authority. The receiver is left untouched.
func (p *Principal) WithModule(moduleName, moduleRole string) *Principal {
	if moduleRole == "" {
		moduleRole = DefaultModuleRole
	}
	cp := *p
	cp.claims = make(map[string]string, len(p.claims)+2)
	for k, v := range p.claims {
		cp.claims[k] = v
	}
	cp.claims[ClaimModuleName] = moduleName
	cp.claims[ClaimModuleRole] = moduleRole
	return &cp
}

// ModuleRole is the role granted inside the current module, or "" when the
// authority has not been consulted.
func (p *Principal) ModuleRole() string {
	return p.Claim(ClaimModuleRole)
}

// Claims returns a copy of the full claim set.
func (p *Principal) Claims() map[string]string {
	out := make(map[string]string, len(p.claims))
	for k, v := range p.claims {
		out[k] = v
	}
	return out
}

// ParseTenantID parses a decimal tenant id. Only positive values are valid.
func ParseTenantID(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
