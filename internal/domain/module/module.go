// Package module defines the catalog of sellable product modules and the
// resolvers that map a payment to the modules it purchased.
package module

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jegasuite/jega/internal/domain/payment"
)

// Module names known across the federation.
const (
	ExtraHours    = "extra-hours"
	ReportBuilder = "report-builder"
)

// ReferencePrefix starts every checkout reference.
const ReferencePrefix = "JEGA"

// Definition describes one sellable module.
type Definition struct {
	Name         string `yaml:"name"`
	Token        string `yaml:"token"` // uppercase marker embedded in payment references
	SKU          string `yaml:"sku"`
	PriceInCents int64  `yaml:"price_in_cents"`
}

// Catalog is the immutable set of modules a deployment sells.
type Catalog struct {
	defs          []Definition
	byName        map[string]Definition
	bySKU         map[string]Definition
	defaultModule string
}

// DefaultDefinitions is the module line-up shipped with the product.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Name: ExtraHours, Token: "EXTRAHOURS", SKU: "jega-extra-hours", PriceInCents: 9_900_000},
		{Name: ReportBuilder, Token: "REPORTS", SKU: "jega-report-builder", PriceInCents: 7_900_000},
	}
}

// NewCatalog validates defs and builds a Catalog. defaultModule must be one
// of the defined names.
func NewCatalog(defs []Definition, defaultModule string) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, errors.New("module catalog is empty")
	}
	c := &Catalog{
		byName:        make(map[string]Definition, len(defs)),
		bySKU:         make(map[string]Definition, len(defs)),
		defaultModule: defaultModule,
	}
	for _, d := range defs {
		if d.Name == "" || d.Token == "" {
			return nil, fmt.Errorf("module definition %+v: name and token are required", d)
		}
		d.Token = strings.ToUpper(d.Token)
		if _, dup := c.byName[d.Name]; dup {
			return nil, fmt.Errorf("duplicate module %q", d.Name)
		}
		c.byName[d.Name] = d
		if d.SKU != "" {
			c.bySKU[d.SKU] = d
		}
		c.defs = append(c.defs, d)
	}
	if _, ok := c.byName[defaultModule]; !ok {
		return nil, fmt.Errorf("default module %q is not in the catalog", defaultModule)
	}
	return c, nil
}

// Lookup returns the definition for name.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	d, ok := c.byName[name]
	return d, ok
}

// Default returns the module granted when a payment names none.
func (c *Catalog) Default() string {
	return c.defaultModule
}

// Reference builds a checkout reference such as JEGA-EXTRAHOURS-REPORTS-001.
// Tokens appear in catalog order so the same purchase always yields the
// same prefix.
func (c *Catalog) Reference(modules []string, seq string) (string, error) {
	want := make(map[string]bool, len(modules))
	for _, m := range modules {
		if _, ok := c.byName[m]; !ok {
			return "", fmt.Errorf("unknown module %q", m)
		}
		want[m] = true
	}
	parts := []string{ReferencePrefix}
	for _, d := range c.defs {
		if want[d.Name] {
			parts = append(parts, d.Token)
		}
	}
	parts = append(parts, seq)
	return strings.Join(parts, "-"), nil
}

// Price sums the catalog price of modules.
func (c *Catalog) Price(modules []string) int64 {
	var total int64
	for _, m := range modules {
		total += c.byName[m].PriceInCents
	}
	return total
}

// Resolver decides which modules a payment event purchased.
type Resolver interface {
	Resolve(ev *payment.Event) []string
}

// ReferenceResolver is the legacy resolver: it pattern-matches module tokens
// inside the payment reference. It never returns an empty list.
type ReferenceResolver struct {
	Catalog *Catalog
}

// Resolve implements Resolver.
func (r ReferenceResolver) Resolve(ev *payment.Event) []string {
	ref := strings.ToUpper(ev.Reference)
	var out []string
	for _, d := range r.Catalog.defs {
		if strings.Contains(ref, d.Token) {
			out = append(out, d.Name)
		}
	}
	if len(out) == 0 {
		return []string{r.Catalog.defaultModule}
	}
	return out
}

// LineItemResolver maps structured line items to modules by SKU and defers
// to Fallback when the event carries no recognizable items.
type LineItemResolver struct {
	Catalog  *Catalog
	Fallback Resolver
}

// Resolve implements Resolver.
func (r LineItemResolver) Resolve(ev *payment.Event) []string {
	seen := make(map[string]bool)
	var out []string
	for _, li := range ev.LineItems {
		d, ok := r.Catalog.bySKU[li.SKU]
		if !ok || seen[d.Name] {
			continue
		}
		seen[d.Name] = true
		out = append(out, d.Name)
	}
	if len(out) > 0 {
		return out
	}
	return r.Fallback.Resolve(ev)
}

// NewResolver returns the standard chain: line items first, reference
// tokens as the legacy path.
func NewResolver(c *Catalog) Resolver {
	return LineItemResolver{Catalog: c, Fallback: ReferenceResolver{Catalog: c}}
}
