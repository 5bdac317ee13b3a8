package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "jega.yaml"

// EnvConfigFile names the environment variable that overrides DefaultConfigFile.
const EnvConfigFile = "JEGA_CONFIG"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	path := DefaultConfigFile
	if v := os.Getenv(EnvConfigFile); v != "" {
		path = v
	}
	return LoadFrom(path)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "JEGA_PORT")
	setString(&cfg.Server.CORSOrigin, "JEGA_CORS_ORIGIN")

	setString(&cfg.Postgres.DSN, "DATABASE_URL")
	setInt32(&cfg.Postgres.MaxConns, "JEGA_PG_MAX_CONNS")
	setInt32(&cfg.Postgres.MinConns, "JEGA_PG_MIN_CONNS")
	setDuration(&cfg.Postgres.MaxConnLifetime, "JEGA_PG_MAX_CONN_LIFETIME")
	setDuration(&cfg.Postgres.MaxConnIdleTime, "JEGA_PG_MAX_CONN_IDLE_TIME")
	setString(&cfg.ModuleStore.DSN, "JEGA_MODULE_DATABASE_URL")

	setString(&cfg.NATS.URL, "NATS_URL")
	setString(&cfg.Logging.Level, "JEGA_LOG_LEVEL")
	setString(&cfg.Logging.Service, "JEGA_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "JEGA_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "JEGA_BREAKER_TIMEOUT")

	// Auth
	setString(&cfg.Auth.JWTSecret, "JEGA_JWT_SECRET")
	setString(&cfg.Auth.Issuer, "JEGA_JWT_ISSUER")
	setString(&cfg.Auth.Audience, "JEGA_JWT_AUDIENCE")
	setDuration(&cfg.Auth.AccessTokenExpiry, "JEGA_JWT_EXPIRY")
	setInt(&cfg.Auth.BcryptCost, "JEGA_BCRYPT_COST")

	// Gateway
	setString(&cfg.Gateway.BaseURL, "JEGA_GATEWAY_BASE_URL")
	setString(&cfg.Gateway.CheckoutURL, "JEGA_GATEWAY_CHECKOUT_URL")
	setString(&cfg.Gateway.PublicKey, "JEGA_GATEWAY_PUBLIC_KEY")
	setString(&cfg.Gateway.PrivateKey, "JEGA_GATEWAY_PRIVATE_KEY")
	setString(&cfg.Gateway.IntegrityKey, "JEGA_GATEWAY_INTEGRITY_KEY")
	setString(&cfg.Gateway.Currency, "JEGA_GATEWAY_CURRENCY")
	setBool(&cfg.Gateway.RequireSignature, "JEGA_GATEWAY_REQUIRE_SIGNATURE")

	// Authority
	setString(&cfg.Authority.BaseURL, "JEGA_AUTHORITY_URL")
	setString(&cfg.Authority.ModuleName, "JEGA_MODULE_NAME")
	setDuration(&cfg.Authority.Timeout, "JEGA_AUTHORITY_TIMEOUT")
	setBool(&cfg.Authority.FailOpen, "JEGA_AUTHORITY_FAIL_OPEN")
	setDuration(&cfg.Authority.CacheTTL, "JEGA_AUTHORITY_CACHE_TTL")

	// Tenant
	setInt64(&cfg.Tenant.DefaultID, "JEGA_DEFAULT_TENANT_ID")
	setBool(&cfg.Tenant.AllowDefaultFallback, "JEGA_TENANT_ALLOW_DEFAULT")
	setList(&cfg.Tenant.PublicPaths, "JEGA_PUBLIC_PATHS")

	// Provisioning
	setString(&cfg.Provisioning.DashboardURL, "JEGA_DASHBOARD_URL")
	setString(&cfg.Provisioning.DefaultModule, "JEGA_DEFAULT_MODULE")
	setBool(&cfg.Provisioning.MirrorLegacyIdentity, "JEGA_MIRROR_LEGACY_IDENTITY")

	// SMTP
	setString(&cfg.SMTP.Host, "JEGA_SMTP_HOST")
	setInt(&cfg.SMTP.Port, "JEGA_SMTP_PORT")
	setString(&cfg.SMTP.From, "JEGA_SMTP_FROM")
	setString(&cfg.SMTP.Password, "JEGA_SMTP_PASSWORD")

	// OpenTelemetry
	setString(&cfg.OTEL.Endpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")
	setBool(&cfg.OTEL.Insecure, "OTEL_EXPORTER_OTLP_INSECURE")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Postgres.MaxConns < 1 {
		return errors.New("postgres.max_conns must be >= 1")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	if len(cfg.Auth.JWTSecret) < 16 {
		return errors.New("auth.jwt_secret must be at least 16 characters")
	}
	if cfg.Auth.Issuer == "" || cfg.Auth.Audience == "" {
		return errors.New("auth.issuer and auth.audience are required")
	}
	if cfg.Auth.AccessTokenExpiry <= 0 {
		return errors.New("auth.access_token_expiry must be positive")
	}
	if cfg.Tenant.DefaultID <= 0 {
		return errors.New("tenant.default_id must be positive")
	}
	if cfg.Authority.Timeout <= 0 {
		return errors.New("authority.timeout must be positive")
	}
	if cfg.Authority.ModuleName == "" {
		return errors.New("authority.module_name is required")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt32(dst *int32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 32); err == nil {
			*dst = int32(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

// setList reads a comma-separated list. Blank entries are dropped.
func setList(dst *[]string, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	*dst = out
}
