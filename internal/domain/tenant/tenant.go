// Package tenant defines the tenant and module grant domain model.
package tenant

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// Tenant is an isolated customer account. All tenant-scoped data is
// partitioned by its ID. Tenants are deactivated, never deleted.
type Tenant struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateRequest holds the fields required to create a new tenant.
type CreateRequest struct {
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Validate checks that the CreateRequest has all required fields.
func (r *CreateRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.New("tenant name is required")
	}
	if r.Slug == "" {
		return errors.New("tenant slug is required")
	}
	return nil
}

// GrantStatus is the lifecycle state of a module grant.
type GrantStatus string

const (
	GrantActive    GrantStatus = "active"
	GrantSuspended GrantStatus = "suspended"
)

// ModuleGrant records that a tenant purchased a product module.
// At most one grant exists per (TenantID, ModuleName).
type ModuleGrant struct {
	TenantID    int64       `json:"tenant_id"`
	ModuleName  string      `json:"module_name"`
	Status      GrantStatus `json:"status"`
	PurchasedAt time.Time   `json:"purchased_at"`
}

// fallbackSlug is used when a customer name has no sluggable characters.
const fallbackSlug = "tenant"

// BaseSlug turns a customer name into a subdomain-safe slug.
func BaseSlug(name string) string {
	s := slug.Make(name)
	if len(s) > 48 {
		s = strings.TrimRight(s[:48], "-")
	}
	if s == "" {
		return fallbackSlug
	}
	return s
}

// SlugCandidate returns the n-th candidate for base. The first candidate is
// base itself, then base-2, base-3 and so on.
func SlugCandidate(base string, n int) string {
	if n <= 1 {
		return base
	}
	return base + "-" + strconv.Itoa(n)
}
