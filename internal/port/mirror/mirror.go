// Package mirror defines the port for copying provisioned credentials into
// a module-owned identity store.
package mirror

import "context"

// Credential is the subset of a provisioned admin that a module store keeps.
type Credential struct {
	TenantID     int64
	Email        string
	Name         string
	PasswordHash string
	Role         string
}

// Mirror writes credentials into a secondary identity store. Writes must be
// idempotent by email.
type Mirror interface {
	MirrorCredential(ctx context.Context, c Credential) error
}
