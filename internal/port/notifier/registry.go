package notifier

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// DefaultBackend logs notifications instead of delivering them. Billing
// falls back to it when no SMTP host is configured.
const DefaultBackend = "log"

// Factory builds a Notifier from backend settings (SMTP host, sender...).
type Factory func(config map[string]string) (Notifier, error)

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register makes a backend available by name. Adapters call it from init;
// a duplicate name panics.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[name]; exists {
		panic(fmt.Sprintf("notifier: duplicate registration for %q", name))
	}
	factories[name] = factory
}

// New builds the backend registered under name.
func New(name string, config map[string]string) (Notifier, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("notifier: unknown backend %q (available: %s)", name, strings.Join(Available(), ", "))
	}
	return factory(config)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()
	return slices.Sorted(maps.Keys(factories))
}
