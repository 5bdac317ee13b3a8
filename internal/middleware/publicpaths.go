package middleware

import "strings"

// PublicPaths is the allowlist of routes that skip authentication, tenant
// resolution and module authorization. An entry matches a path exactly,
// unless it ends in "/*", in which case it matches that prefix.
type PublicPaths struct {
	exact    map[string]bool
	prefixes []string
}

// NewPublicPaths builds the allowlist from config entries.
func NewPublicPaths(patterns []string) PublicPaths {
	p := PublicPaths{exact: make(map[string]bool, len(patterns))}
	for _, pat := range patterns {
		pat = strings.TrimSpace(pat)
		if pat == "" {
			continue
		}
		if prefix, ok := strings.CutSuffix(pat, "/*"); ok {
			p.prefixes = append(p.prefixes, prefix+"/")
			continue
		}
		p.exact[pat] = true
	}
	return p
}

// Match reports whether path is public.
func (p PublicPaths) Match(path string) bool {
	if p.exact[path] {
		return true
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
