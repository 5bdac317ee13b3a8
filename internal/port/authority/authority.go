// Package authority defines the module access authority port.
package authority

import (
	"context"
	"fmt"
)

// Decision is the authority's answer for one (user, module) pair.
type Decision struct {
	HasAccess bool   `json:"hasAccess"`
	Role      string `json:"role,omitempty"`
	TenantID  int64  `json:"tenantId,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Checker asks the authority whether a user may use a module.
//
// A *StatusError means the authority answered with a non-2xx status. Any
// other error means the authority could not be consulted.
type Checker interface {
	CheckAccess(ctx context.Context, userID, moduleName string) (*Decision, error)
}

// StatusError reports a non-2xx response from the authority.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("authority returned status %d", e.StatusCode)
}
