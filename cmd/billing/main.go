// Command billing runs the Jega billing and provisioning service: the
// payment webhook, checkout, login, the module access authority and tenant
// self-service reads. "billing admin" runs operator commands.
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

	jhttp "github.com/jegasuite/jega/internal/adapter/http"
	jotel "github.com/jegasuite/jega/internal/adapter/otel"
	"github.com/jegasuite/jega/internal/config"
	"github.com/jegasuite/jega/internal/domain/user"
	"github.com/jegasuite/jega/internal/logger"
	"github.com/jegasuite/jega/internal/middleware"
)

const (
	// Unauthenticated endpoints allow 5 requests per second per client.
	publicRate  = 5
	publicBurst = 20

	idempotencyTTL      = 24 * time.Hour
	idempotencyMaxBytes = 16 << 20
	idempotencyBucket   = "jega_idempotency"

	revocationPurgeInterval = time.Hour
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "admin" {
		if err := runAdmin(os.Args[2:]); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
		return
	}

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
		"log_level", cfg.Logging.Level,
		"pg_max_conns", cfg.Postgres.MaxConns,
		"require_signature", cfg.Gateway.RequireSignature,
		"tenant_fallback", cfg.Tenant.AllowDefaultFallback,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownOTEL, err := jotel.Setup(ctx, cfg.OTEL, cfg.Logging.Service)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	a, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	go reloadOnSIGHUP(ctx, a)
	go purgeRevocations(ctx, a)

	// --- HTTP ---
	limiter := middleware.NewRateLimiter(publicRate, publicBurst)
	limiter.StartCleanup(ctx, 5*time.Minute, 10*time.Minute)

	idemCache, closeIdem, err := a.idempotencyCache(ctx, idempotencyMaxBytes, idempotencyTTL)
	if err != nil {
		return err
	}
	defer closeIdem()

	health := jhttp.NewHealth(cfg.Logging.Service)
	health.AddCheck("postgres", a.store.Ping)

	handlers := &jhttp.Handlers{
		Provisioner: a.provisioner,
		Checkout:    a.checkout,
		Auth:        a.auth,
		Access:      a.access,
		Tenants:     a.tenants,
		Health:      health,
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
	r.Use(middleware.Authenticate(a.tokens, public))
	r.Use(middleware.ResolveTenant(cfg.Tenant, public, a.metrics))

	jhttp.MountRoutes(r, handlers, jhttp.RouteMiddleware{
		VerifySignature:    middleware.VerifyWebhook(a.verifier),
		RateLimit:          limiter.Handler,
		Idempotency:        middleware.Idempotency(idemCache, idempotencyTTL),
		RequireTenantAdmin: middleware.RequireRole(string(user.RoleAdmin)),
	})

	return serve(ctx, ":"+cfg.Server.Port, r)
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
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

// reloadOnSIGHUP re-reads secrets so the integrity and signing keys rotate
// without a restart.
func reloadOnSIGHUP(ctx context.Context, a *app) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			if err := a.vault.Reload(); err != nil {
				slog.Error("secret reload failed", "error", err)
				continue
			}
			slog.Info("secrets reloaded", "keys", a.vault.Keys())
		}
	}
}

func purgeRevocations(ctx context.Context, a *app) {
	ticker := time.NewTicker(revocationPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.auth.PurgeExpiredRevocations(ctx)
			if err != nil {
				slog.Warn("revocation purge failed", "error", err)
				continue
			}
			if n > 0 {
				slog.Info("purged expired revocations", "count", n)
			}
		}
	}
}
