package tenant

import (
	"strings"
	"testing"
)

func TestBaseSlug(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Acme Corp", "acme-corp"},
		{"Panadería Ñandú", "panaderia-nandu"},
		{"!!!", "tenant"},
		{"", "tenant"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BaseSlug(tt.name); got != tt.want {
				t.Fatalf("BaseSlug(%q) = %q, want %q", tt.name, got, tt.want)
			}
		})
	}
}

func TestBaseSlug_Truncates(t *testing.T) {
	got := BaseSlug(strings.Repeat("very long name ", 10))
	if len(got) > 48 || strings.HasSuffix(got, "-") {
		t.Fatalf("bad truncation %q", got)
	}
}

func TestSlugCandidate(t *testing.T) {
	if got := SlugCandidate("acme", 1); got != "acme" {
		t.Errorf("n=1: %q", got)
	}
	if got := SlugCandidate("acme", 3); got != "acme-3" {
		t.Errorf("n=3: %q", got)
	}
}

func TestCreateRequest_Validate(t *testing.T) {
	if err := (&CreateRequest{Slug: "x"}).Validate(); err == nil {
		t.Error("expected name error")
	}
	if err := (&CreateRequest{Name: "X"}).Validate(); err == nil {
		t.Error("expected slug error")
	}
	if err := (&CreateRequest{Name: "X", Slug: "x"}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
