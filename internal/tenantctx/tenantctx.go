// Package tenantctx carries the resolved tenant id through one request.
//
// A Carrier is created per request and attached to the request context, so
// every goroutine that inherits the context sees the same value while
// concurrent requests never share a Carrier.
package tenantctx

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotSet is returned by reads that happen before resolution.
	ErrNotSet = errors.New("no tenant context has been set")
	// ErrInvalidTenantID rejects zero and negative ids.
	ErrInvalidTenantID = errors.New("tenant id must be positive")
	// ErrAlreadySet rejects a second write with a different id.
	ErrAlreadySet = errors.New("tenant context already set")
	// ErrNoCarrier means the context never went through WithCarrier.
	ErrNoCarrier = errors.New("no tenant carrier in context")
)

// Carrier holds the tenant id of one logical request. The zero value is
// unset and ready to use.
type Carrier struct {
	mu       sync.RWMutex
	id       int64
	fallback bool
}

// Set records id. The first successful write wins; repeating the same id is
// a no-op.
func (c *Carrier) Set(id int64) error {
	return c.set(id, false)
}

// SetFallback records id and marks it as coming from the default tenant
// rather than from the caller.
func (c *Carrier) SetFallback(id int64) error {
	return c.set(id, true)
}

func (c *Carrier) set(id int64, fallback bool) error {
	if id <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidTenantID, id)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.id != 0 {
		if c.id == id {
			return nil
		}
		return fmt.Errorf("%w: have %d, got %d", ErrAlreadySet, c.id, id)
	}
	c.id = id
	c.fallback = fallback
	return nil
}

// ID returns the tenant id, or ErrNotSet before the first Set.
func (c *Carrier) ID() (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.id == 0 {
		return 0, ErrNotSet
	}
	return c.id, nil
}

// IsFallback reports whether the id came from the default tenant.
func (c *Carrier) IsFallback() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fallback
}

type carrierKey struct{}

// WithCarrier returns a child context holding a fresh Carrier.
func WithCarrier(ctx context.Context) (context.Context, *Carrier) {
	c := &Carrier{}
	return context.WithValue(ctx, carrierKey{}, c), c
}

// CarrierFrom returns the Carrier attached to ctx, or nil.
func CarrierFrom(ctx context.Context) *Carrier {
	c, _ := ctx.Value(carrierKey{}).(*Carrier)
	return c
}

// FromContext returns the resolved tenant id. Tenant-scoped repositories
// call this on every query; it fails instead of defaulting.
func FromContext(ctx context.Context) (int64, error) {
	c := CarrierFrom(ctx)
	if c == nil {
		return 0, ErrNoCarrier
	}
	return c.ID()
}

// WithTenant is a convenience for background jobs and tests: it returns a
// context whose carrier already holds id.
func WithTenant(ctx context.Context, id int64) (context.Context, error) {
	ctx, c := WithCarrier(ctx)
	if err := c.Set(id); err != nil {
		return nil, err
	}
	return ctx, nil
}
