package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jegasuite/jega/internal/domain/module"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8080" {
		t.Errorf("expected port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Authority.Timeout != 3*time.Second {
		t.Errorf("expected authority timeout 3s, got %v", cfg.Authority.Timeout)
	}
	if !cfg.Authority.FailOpen {
		t.Error("expected fail-open by default")
	}
	if cfg.Gateway.RequireSignature {
		t.Error("expected unsigned webhooks to be accepted by default")
	}
	if cfg.Tenant.DefaultID != 1 || !cfg.Tenant.AllowDefaultFallback {
		t.Errorf("unexpected tenant defaults: %+v", cfg.Tenant)
	}
	if cfg.Provisioning.DefaultModule != module.ExtraHours {
		t.Errorf("expected default module %q, got %q", module.ExtraHours, cfg.Provisioning.DefaultModule)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
authority:
  fail_open: false
  timeout: 500ms
tenant:
  allow_default_fallback: false
  public_paths: ["/health"]
provisioning:
  modules:
    - name: extra-hours
      token: EXTRAHOURS
      sku: eh
      price_in_cents: 100
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Authority.FailOpen {
		t.Error("expected fail_open false from yaml")
	}
	if cfg.Authority.Timeout != 500*time.Millisecond {
		t.Errorf("expected 500ms, got %v", cfg.Authority.Timeout)
	}
	if cfg.Tenant.AllowDefaultFallback {
		t.Error("expected allow_default_fallback false from yaml")
	}
	if len(cfg.Tenant.PublicPaths) != 1 {
		t.Errorf("expected 1 public path, got %v", cfg.Tenant.PublicPaths)
	}
	if len(cfg.Provisioning.Modules) != 1 || cfg.Provisioning.Modules[0].PriceInCents != 100 {
		t.Errorf("unexpected modules %+v", cfg.Provisioning.Modules)
	}
	// Unchanged fields keep defaults
	if cfg.NATS.URL != "nats://localhost:4222" {
		t.Errorf("expected default NATS URL, got %s", cfg.NATS.URL)
	}
}

func TestLoadYAMLMissing(t *testing.T) {
	cfg := Defaults()
	if err := loadYAML(&cfg, "/nonexistent/path.yaml"); err != nil {
		t.Errorf("missing YAML should not error, got %v", err)
	}
}

func TestEnvOverride(t *testing.T) {
	cfg := Defaults()

	t.Setenv("JEGA_PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("JEGA_PG_MAX_CONNS", "25")
	t.Setenv("JEGA_GATEWAY_REQUIRE_SIGNATURE", "true")
	t.Setenv("JEGA_AUTHORITY_FAIL_OPEN", "false")
	t.Setenv("JEGA_DEFAULT_TENANT_ID", "42")
	t.Setenv("JEGA_PUBLIC_PATHS", "/health, ,/api/v1/auth/login")
	t.Setenv("JEGA_AUTHORITY_TIMEOUT", "not-a-duration")
	loadEnv(&cfg)

	if cfg.Server.Port != "7070" {
		t.Errorf("expected port 7070, got %s", cfg.Server.Port)
	}
	if cfg.Postgres.DSN != "postgres://test:test@db:5432/test" {
		t.Errorf("expected test DSN, got %s", cfg.Postgres.DSN)
	}
	if cfg.Postgres.MaxConns != 25 {
		t.Errorf("expected max_conns 25, got %d", cfg.Postgres.MaxConns)
	}
	if !cfg.Gateway.RequireSignature {
		t.Error("expected require_signature from env")
	}
	if cfg.Authority.FailOpen {
		t.Error("expected fail_open false from env")
	}
	if cfg.Tenant.DefaultID != 42 {
		t.Errorf("expected default tenant 42, got %d", cfg.Tenant.DefaultID)
	}
	if len(cfg.Tenant.PublicPaths) != 2 {
		t.Errorf("expected 2 public paths, got %v", cfg.Tenant.PublicPaths)
	}
	// Unparseable values leave the previous setting in place.
	if cfg.Authority.Timeout != 3*time.Second {
		t.Errorf("expected authority timeout unchanged, got %v", cfg.Authority.Timeout)
	}
}

func TestLoadFrom_FullHierarchy(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "cfg.yaml")
	if err := os.WriteFile(yamlPath, []byte(`
server:
  port: "9090"
logging:
  level: "debug"
`), 0o644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("JEGA_PORT", "7070")

	cfg, err := LoadFrom(yamlPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("env should win over yaml, got port %s", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("yaml should win over defaults, got level %s", cfg.Logging.Level)
	}
}

func TestLoadFrom_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(yamlPath, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(yamlPath); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidateRequired(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errMsg string
	}{
		{
			name:   "empty port",
			modify: func(c *Config) { c.Server.Port = "" },
			errMsg: "server.port is required",
		},
		{
			name:   "zero max_conns",
			modify: func(c *Config) { c.Postgres.MaxConns = 0 },
			errMsg: "postgres.max_conns must be >= 1",
		},
		{
			name:   "zero breaker failures",
			modify: func(c *Config) { c.Breaker.MaxFailures = 0 },
			errMsg: "breaker.max_failures must be >= 1",
		},
		{
			name:   "short jwt secret",
			modify: func(c *Config) { c.Auth.JWTSecret = "short" },
			errMsg: "auth.jwt_secret must be at least 16 characters",
		},
		{
			name:   "zero default tenant",
			modify: func(c *Config) { c.Tenant.DefaultID = 0 },
			errMsg: "tenant.default_id must be positive",
		},
		{
			name:   "zero authority timeout",
			modify: func(c *Config) { c.Authority.Timeout = 0 },
			errMsg: "authority.timeout must be positive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.modify(&cfg)
			err := validate(&cfg)
			if err == nil {
				t.Fatalf("expected error %q, got nil", tt.errMsg)
			}
			if err.Error() != tt.errMsg {
				t.Errorf("expected %q, got %q", tt.errMsg, err.Error())
			}
		})
	}
}

func TestValidateDefaults(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}
