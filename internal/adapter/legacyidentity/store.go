// Package legacyidentity is the identity store a product module keeps for
// itself. Billing mirrors newly provisioned admin credentials into it so the
// module can authenticate them without a round trip to billing.
package legacyidentity

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jegasuite/jega/internal/adapter/postgres"
	"github.com/jegasuite/jega/internal/domain"
	"github.com/jegasuite/jega/internal/port/mirror"
	"github.com/jegasuite/jega/internal/tenantctx"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Migrate applies the module store schema.
func Migrate(ctx context.Context, dsn string) error {
	return postgres.MigrateFS(ctx, dsn, migrations, "migrations")
}

// User is a row of the module identity store.
type User struct {
	ID           int64     `json:"id"`
	TenantID     int64     `json:"tenantId"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Store is the pgx-backed module identity store.
type Store struct {
	pool *pgxpool.Pool
}

var _ mirror.Mirror = (*Store)(nil)

// NewStore creates a module identity store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// MirrorCredential inserts c or refreshes the row with the same email.
// Repeating the call with the same credential leaves one row.
func (s *Store) MirrorCredential(ctx context.Context, c mirror.Credential) error {
	email := strings.ToLower(strings.TrimSpace(c.Email))
	if email == "" || c.TenantID <= 0 || c.PasswordHash == "" {
		return fmt.Errorf("mirror credential: %w", domain.ErrValidation)
	}
	role := c.Role
	if role == "" {
		role = "employee"
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO module_users (tenant_id, email, name, password_hash, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (lower(email)) DO UPDATE SET
			tenant_id     = EXCLUDED.tenant_id,
			name          = EXCLUDED.name,
			password_hash = EXCLUDED.password_hash,
			role          = EXCLUDED.role,
			active        = TRUE,
			updated_at    = now()`,
		c.TenantID, email, c.Name, c.PasswordHash, role,
	)
	if err != nil {
		return fmt.Errorf("mirror credential %s: %w", email, err)
	}
	return nil
}

const userColumns = `id, tenant_id, email, name, password_hash, role, active, created_at, updated_at`

type scannable interface {
	Scan(dest ...any) error
}

func scanUser(row scannable) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.TenantID, &u.Email, &u.Name, &u.PasswordHash, &u.Role,
		&u.Active, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByEmail returns the user of the current tenant with the given email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*User, error) {
	tid, err := tenantctx.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("tenant scope: %w", err)
	}
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM module_users WHERE lower(email) = lower($1) AND tenant_id = $2`,
		strings.TrimSpace(email), tid)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get module user %s: %w", email, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get module user %s: %w", email, err)
	}
	return &u, nil
}

// ListUsers returns the users of the current tenant.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	tid, err := tenantctx.FromContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("tenant scope: %w", err)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM module_users WHERE tenant_id = $1 ORDER BY email`, tid)
	if err != nil {
		return nil, fmt.Errorf("list module users: %w", err)
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan module user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
