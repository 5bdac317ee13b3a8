package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jegasuite/jega/internal/adapter/legacyidentity"
	jnats "github.com/jegasuite/jega/internal/adapter/nats"
	"github.com/jegasuite/jega/internal/adapter/natskv"
	jotel "github.com/jegasuite/jega/internal/adapter/otel"
	"github.com/jegasuite/jega/internal/adapter/postgres"
	"github.com/jegasuite/jega/internal/adapter/ristretto"
	"github.com/jegasuite/jega/internal/adapter/tiered"
	"github.com/jegasuite/jega/internal/config"
	"github.com/jegasuite/jega/internal/domain/module"
	"github.com/jegasuite/jega/internal/port/cache"
	"github.com/jegasuite/jega/internal/port/messagequeue"
	"github.com/jegasuite/jega/internal/port/mirror"
	"github.com/jegasuite/jega/internal/port/notifier"
	"github.com/jegasuite/jega/internal/secrets"
	"github.com/jegasuite/jega/internal/service"
)

// app holds the billing service dependencies shared by the server and the
// admin commands.
type app struct {
	cfg         *config.Config
	vault       *secrets.Vault
	metrics     *jotel.Metrics
	pool        *pgxpool.Pool
	modulePool  *pgxpool.Pool
	queue       messagequeue.Queue
	nats        *jnats.Queue
	store       *postgres.Store
	catalog     *module.Catalog
	verifier    *service.Verifier
	tokens      *service.TokenService
	auth        *service.AuthService
	access      *service.AccessService
	tenants     *service.TenantService
	checkout    *service.CheckoutService
	provisioner *service.Provisioner
}

func newVault(cfg *config.Config) (*secrets.Vault, error) {
	return secrets.NewVault(secrets.EnvLoader(map[string]string{
		secrets.GatewayIntegrityKey: cfg.Gateway.IntegrityKey,
		secrets.GatewayPrivateKey:   cfg.Gateway.PrivateKey,
		secrets.JWTSecret:           cfg.Auth.JWTSecret,
	}))
}

// buildApp connects infrastructure and wires services. Event publishing and
// the credential mirror are optional: their failures are logged and the
// service runs without them.
func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	var err error
	a.vault, err = newVault(cfg)
	if err != nil {
		return nil, fmt.Errorf("secrets: %w", err)
	}

	a.metrics, err = jotel.NewMetrics()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}

	a.pool, err = postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		a.close()
		return nil, fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	if cfg.NATS.URL != "" {
		q, err := jnats.Connect(ctx, cfg.NATS.URL, cfg.Logging.Service, "")
		if err != nil {
			slog.Warn("nats unavailable, tenant events will not be published", "error", err)
		} else {
			a.queue = q
			a.nats = q
		}
	}

	var mir mirror.Mirror
	if cfg.Provisioning.MirrorLegacyIdentity {
		mir = a.connectMirror(ctx)
	}

	a.catalog, err = module.NewCatalog(cfg.Provisioning.Modules, cfg.Provisioning.DefaultModule)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("module catalog: %w", err)
	}

	a.store = postgres.NewStore(a.pool)
	a.verifier = service.NewVerifier(a.vault.Getter(secrets.GatewayIntegrityKey), cfg.Gateway.RequireSignature)
	a.tokens = service.NewTokenService(&cfg.Auth, a.vault.Getter(secrets.JWTSecret), a.store)
	a.auth = service.NewAuthService(a.store, a.tokens)
	a.access = service.NewAccessService(a.store)
	a.tenants = service.NewTenantService(a.store)
	a.checkout = service.NewCheckoutService(a.store, a.catalog, a.verifier, service.CheckoutConfig{
		PublicKey:   cfg.Gateway.PublicKey,
		CheckoutURL: cfg.Gateway.CheckoutURL,
		Currency:    cfg.Gateway.Currency,
	})

	notify, err := newNotificationService(cfg.SMTP)
	if err != nil {
		a.close()
		return nil, err
	}
	a.provisioner = service.NewProvisioner(a.store, module.NewResolver(a.catalog), notify, mir, a.queue,
		service.ProvisionerConfig{
			DashboardURL:         cfg.Provisioning.DashboardURL,
			BcryptCost:           cfg.Auth.BcryptCost,
			MirrorLegacyIdentity: cfg.Provisioning.MirrorLegacyIdentity,
		})
	a.provisioner.SetMetrics(a.metrics)
	return a, nil
}

func (a *app) connectMirror(ctx context.Context) mirror.Mirror {
	if err := legacyidentity.Migrate(ctx, a.cfg.ModuleStore.DSN); err != nil {
		slog.Warn("module identity store unavailable, credentials will not be mirrored", "error", err)
		return nil
	}
	pool, err := postgres.NewPool(ctx, a.cfg.ModuleStore)
	if err != nil {
		slog.Warn("module identity store unavailable, credentials will not be mirrored", "error", err)
		return nil
	}
	a.modulePool = pool
	return legacyidentity.NewStore(pool)
}

// newNotificationService sends email when SMTP is configured and logs
// notifications otherwise.
func newNotificationService(cfg config.SMTP) (*service.NotificationService, error) {
	name, settings := notifier.DefaultBackend, map[string]string(nil)
	if cfg.Host != "" {
		name = "email"
		settings = map[string]string{
			"host":     cfg.Host,
			"port":     strconv.Itoa(cfg.Port),
			"from":     cfg.From,
			"password": cfg.Password,
		}
	}
	n, err := notifier.New(name, settings)
	if err != nil {
		return nil, fmt.Errorf("notifier %s: %w", name, err)
	}
	slog.Info("notifier configured", "notifier", n.Name(), "available", notifier.Available())
	return service.NewNotificationService([]notifier.Notifier{n}, nil), nil
}

func (a *app) close() {
	if a.queue != nil {
		_ = a.queue.Close()
	}
	if a.modulePool != nil {
		a.modulePool.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}

// idempotencyCache returns the replay cache for checkout requests. With
// NATS up, entries are shared across replicas through a JetStream KV bucket
// behind the local ristretto cache.
func (a *app) idempotencyCache(ctx context.Context, maxBytes int64, ttl time.Duration) (cache.Cache, func(), error) {
	l1, err := ristretto.New(maxBytes)
	if err != nil {
		return nil, nil, fmt.Errorf("idempotency cache: %w", err)
	}
	if a.nats == nil {
		return l1, l1.Close, nil
	}
	kv, err := a.nats.KeyValue(ctx, idempotencyBucket, ttl)
	if err != nil {
		slog.Warn("idempotency kv unavailable, replays are per replica", "error", err)
		return l1, l1.Close, nil
	}
	return tiered.New(l1, natskv.New(kv), time.Minute), l1.Close, nil
}
