package messagequeue

import "time"

// TenantProvisionedPayload is the schema for tenants.provisioned messages.
type TenantProvisionedPayload struct {
	TenantID   int64     `json:"tenant_id"`
	TenantSlug string    `json:"tenant_slug"`
	AdminEmail string    `json:"admin_email"`
	Modules    []string  `json:"modules"`
	Reference  string    `json:"reference"`
	OccurredAt time.Time `json:"occurred_at"`
}

// TenantModulesAddedPayload is the schema for tenants.modules_added messages.
type TenantModulesAddedPayload struct {
	TenantID   int64     `json:"tenant_id"`
	Added      []string  `json:"added"`
	Reference  string    `json:"reference"`
	OccurredAt time.Time `json:"occurred_at"`
}
