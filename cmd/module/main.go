// Command module hosts a tenant-facing product module behind the Jega trust
// boundary: bearer authentication, the module access check against the
// billing authority, then tenant resolution.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	authclient "github.com/jegasuite/jega/internal/adapter/authority"
	jhttp "github.com/jegasuite/jega/internal/adapter/http"
	"github.com/jegasuite/jega/internal/adapter/legacyidentity"
	jnats "github.com/jegasuite/jega/internal/adapter/nats"
	jotel "github.com/jegasuite/jega/internal/adapter/otel"
	"github.com/jegasuite/jega/internal/adapter/postgres"
	"github.com/jegasuite/jega/internal/adapter/ristretto"
	"github.com/jegasuite/jega/internal/config"
	"github.com/jegasuite/jega/internal/logger"
	"github.com/jegasuite/jega/internal/middleware"
	"github.com/jegasuite/jega/internal/port/messagequeue"
	"github.com/jegasuite/jega/internal/resilience"
	"github.com/jegasuite/jega/internal/secrets"
	"github.com/jegasuite/jega/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	slog.SetDefault(logger.New(cfg.Logging))

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"module", cfg.Authority.ModuleName,
		"authority", cfg.Authority.BaseURL,
		"fail_open", cfg.Authority.FailOpen,
		"tenant_fallback", cfg.Tenant.AllowDefaultFallback,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTEL, err := jotel.Setup(ctx, cfg.OTEL, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	metrics, err := jotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	vault, err := secrets.NewVault(secrets.EnvLoader(map[string]string{
		secrets.JWTSecret: cfg.Auth.JWTSecret,
	}))
	if err != nil {
		return fmt.Errorf("secrets: %w", err)
	}

	// --- Module identity store ---
	if err := legacyidentity.Migrate(ctx, cfg.ModuleStore.DSN); err != nil {
		return fmt.Errorf("module store migrations: %w", err)
	}
	pool, err := postgres.NewPool(ctx, cfg.ModuleStore)
	if err != nil {
		return fmt.Errorf("module store: %w", err)
	}
	defer pool.Close()
	users := legacyidentity.NewStore(pool)

	// --- Authority ---
	decisions, err := ristretto.New(cfg.Authority.CacheMaxCost)
	if err != nil {
		return fmt.Errorf("decision cache: %w", err)
	}
	defer decisions.Close()

	checker, err := authclient.NewClient(authclient.Options{
		BaseURL:  cfg.Authority.BaseURL,
		Timeout:  cfg.Authority.Timeout,
		CacheTTL: cfg.Authority.CacheTTL,
		Breaker:  resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout),
		Cache:    decisions,
		Metrics:  metrics,
	})
	if err != nil {
		return fmt.Errorf("authority client: %w", err)
	}

	health := jhttp.NewHealth(cfg.Logging.Service)
	health.AddCheck("module_store", users.Ping)

	// Grant changes invalidate cached decisions. Without NATS they expire
	// after authority.cache_ttl.
	if cfg.NATS.URL != "" {
		queue, err := jnats.Connect(ctx, cfg.NATS.URL, cfg.Logging.Service, cfg.Logging.Service)
		if err != nil {
			slog.Warn("nats unavailable, cached access decisions expire by ttl only", "error", err)
		} else {
			defer func() { _ = queue.Close() }()
			cancel, err := queue.Subscribe(ctx, messagequeue.SubjectTenantsAll, func(ctx context.Context, subject string, _ []byte) error {
				slog.InfoContext(ctx, "tenant event, clearing access decisions", "subject", subject)
				return checker.InvalidateAll(ctx)
			})
			if err != nil {
				return fmt.Errorf("tenant event subscription: %w", err)
			}
			defer cancel()
		}
	}

	tokens := service.NewTokenService(&cfg.Auth, vault.Getter(secrets.JWTSecret), nil)
	go reloadOnSIGHUP(ctx, vault)

	handlers := &jhttp.ModuleHandlers{
		ModuleName: cfg.Authority.ModuleName,
		Users:      users,
		Health:     health,
	}

	public := middleware.NewPublicPaths(cfg.Tenant.PublicPaths)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(jhttp.Logger)
	r.Use(chimw.Recoverer)
	r.Use(jotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(jhttp.SecurityHeaders)
	r.Use(jhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.Authenticate(tokens, public))
	r.Use(middleware.AuthorizeModule(checker, cfg.Authority, public, metrics))
	r.Use(middleware.ResolveTenant(cfg.Tenant, public, metrics))

	jhttp.MountModuleRoutes(r, handlers)

	return serve(ctx, ":"+cfg.Server.Port, r)
}

func serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func reloadOnSIGHUP(ctx context.Context, vault *secrets.Vault) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := vault.Reload(); err != nil {
				slog.Error("secret reload failed", "error", err)
				continue
			}
			slog.Info("secrets reloaded")
		}
	}
}
