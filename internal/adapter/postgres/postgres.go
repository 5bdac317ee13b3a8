// Package postgres provides the PostgreSQL connection pool, the migration
// runner and the billing identity store.
package postgres

import (
	"context"
	"embed"
	"fmt"
	"io/fs"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx driver for database/sql (needed by goose)
	"github.com/pressly/goose/v3"

	"github.com/jegasuite/jega/internal/config"
)

//go:embed migrations/*.sql
var migrations embed.FS

// NewPool creates a pgxpool connection pool from a config.Postgres struct.
func NewPool(ctx context.Context, cfg config.Postgres) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	poolCfg.HealthCheckPeriod = cfg.HealthCheck

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return pool, nil
}

// RunMigrations applies all pending billing migrations.
func RunMigrations(ctx context.Context, dsn string) error {
	return MigrateFS(ctx, dsn, migrations, "migrations")
}

// MigrateFS applies the goose migrations found in dir of fsys. Other stores
// with their own schema pass their embedded files here.
func MigrateFS(ctx context.Context, dsn string, fsys fs.FS, dir string) error {
	provider, closeDB, err := newProvider(dsn, fsys, dir)
	if err != nil {
		return err
	}
	defer closeDB()

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	for _, r := range results {
		if r.Error != nil {
			return fmt.Errorf("migration %s: %w", r.Source.Path, r.Error)
		}
	}
	return nil
}

// RollbackMigrations rolls back the last N billing migrations.
func RollbackMigrations(ctx context.Context, dsn string, steps int) error {
	provider, closeDB, err := newProvider(dsn, migrations, "migrations")
	if err != nil {
		return err
	}
	defer closeDB()

	for range steps {
		if _, err := provider.Down(ctx); err != nil {
			return fmt.Errorf("rollback: %w", err)
		}
	}
	return nil
}

// MigrationVersion returns the current billing migration version.
func MigrationVersion(ctx context.Context, dsn string) (int64, error) {
	provider, closeDB, err := newProvider(dsn, migrations, "migrations")
	if err != nil {
		return 0, err
	}
	defer closeDB()

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("get version: %w", err)
	}
	return version, nil
}

func newProvider(dsn string, fsys fs.FS, dir string) (*goose.Provider, func(), error) {
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open db for migrations: %w", err)
	}
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrations dir %s: %w", dir, err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, sub)
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("create migration provider: %w", err)
	}
	return provider, func() { _ = db.Close() }, nil
}
