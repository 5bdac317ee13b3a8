package messagequeue

import (
	"strings"
	"testing"
)

func TestValidateTenantProvisioned(t *testing.T) {
	data := []byte(`{"tenant_id":3,"tenant_slug":"acme","admin_email":"a@b.com","modules":["extra-hours"],"reference":"R-1","occurred_at":"2026-10-17T10:00:00Z"}`)
	if err := Validate(SubjectTenantProvisioned, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateModulesAdded_RejectsMissingTenant(t *testing.T) {
	err := Validate(SubjectTenantModulesAdded, []byte(`{"added":["report-builder"]}`))
	if err == nil || !strings.Contains(err.Error(), "tenant_id") {
		t.Fatalf("expected tenant_id error, got %v", err)
	}
}

func TestValidateWrongFieldType(t *testing.T) {
	err := Validate(SubjectTenantProvisioned, []byte(`{"tenant_id":"three"}`))
	if err == nil || !strings.Contains(err.Error(), "schema validation failed") {
		t.Fatalf("expected schema error, got %v", err)
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	if err := Validate(SubjectTenantProvisioned, []byte(`{broken`)); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	if err := Validate("tenants.other", []byte(`{"any":"thing"}`)); err != nil {
		t.Fatalf("unknown subject should pass, got %v", err)
	}
}
