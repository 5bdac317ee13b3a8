// Package secrets holds gateway and signing keys in memory and swaps them
// atomically on reload.
package secrets

import (
	"fmt"
	"sort"
	"sync"
)

// Well-known secret names.
const (
	GatewayIntegrityKey = "JEGA_GATEWAY_INTEGRITY_KEY"
	GatewayPrivateKey   = "JEGA_GATEWAY_PRIVATE_KEY"
	JWTSecret           = "JEGA_JWT_SECRET"
)

// Loader retrieves secrets from a source (env vars, file, remote vault, etc.).
type Loader func() (map[string]string, error)

// Vault holds secret values in memory and supports atomic reloading.
type Vault struct {
	mu     sync.RWMutex
	values map[string]string
	loader Loader
}

// NewVault creates a Vault, calling the loader once to populate initial values.
func NewVault(loader Loader) (*Vault, error) {
	vals, err := loader()
	if err != nil {
		return nil, fmt.Errorf("initial secret load: %w", err)
	}
	return &Vault{
		values: vals,
		loader: loader,
	}, nil
}

// Get returns the secret for key, or an empty string if not found.
func (v *Vault) Get(key string) string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.values[key]
}

// Getter returns a func bound to key, suitable for components that must
// observe reloads.
func (v *Vault) Getter(key string) func() string {
	return func() string { return v.Get(key) }
}

// Redacted returns the first two characters of the secret followed by
// "****". Secrets of four characters or fewer are fully masked.
func (v *Vault) Redacted(key string) string {
	s := v.Get(key)
	switch {
	case s == "":
		return ""
	case len(s) <= 4:
		return "****"
	default:
		return s[:2] + "****"
	}
}

// Keys returns the loaded secret names in sorted order.
func (v *Vault) Keys() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	keys := make([]string, 0, len(v.values))
	for k := range v.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Reload calls the loader and swaps in the new values atomically.
// If the loader returns an error, existing values are preserved.
func (v *Vault) Reload() error {
	newVals, err := v.loader()
	if err != nil {
		return fmt.Errorf("reload secrets: %w", err)
	}
	v.mu.Lock()
	v.values = newVals
	v.mu.Unlock()
	return nil
}
