package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/witw-events/server/internal/auth"
	"github.com/witw-events/server/internal/metrics"
)

const usernameConstraint = "users_username_key"

// UserRepository is the Postgres credential store.
type UserRepository struct {
	pool *pgxpool.Pool
}

func (r *UserRepository) FindByUsername(ctx context.Context, username string) (_ *auth.Identity, err error) {
	defer func(start time.Time) { metrics.RecordQuery("find_user", start, err) }(time.Now())

	row := r.pool.QueryRow(ctx, `
SELECT id::text, username, password_hash, first_name, last_name, country, role, created_at
  FROM users
 WHERE username = $1
`, username)

	identity, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrIdentityNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return identity, nil
}

func (r *UserRepository) Save(ctx context.Context, identity auth.Identity) (_ *auth.Identity, err error) {
	defer func(start time.Time) { metrics.RecordQuery("insert_user", start, err) }(time.Now())

	if identity.Role == "" {
		identity.Role = auth.DefaultRole
	}
	row := r.pool.QueryRow(ctx, `
INSERT INTO users (username, password_hash, first_name, last_name, country, role)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING id::text, username, password_hash, first_name, last_name, country, role, created_at
`,
		identity.Username,
		identity.PasswordHash,
		identity.FirstName,
		identity.LastName,
		identity.Country,
		string(identity.Role),
	)

	saved, err := scanIdentity(row)
	if err != nil {
		if isUniqueViolation(err, usernameConstraint) {
			return nil, auth.ErrDuplicateUsername
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return saved, nil
}

func scanIdentity(row pgx.Row) (*auth.Identity, error) {
	var (
		identity auth.Identity
		role     string
	)
	if err := row.Scan(
		&identity.ID,
		&identity.Username,
		&identity.PasswordHash,
		&identity.FirstName,
		&identity.LastName,
		&identity.Country,
		&role,
		&identity.CreatedAt,
	); err != nil {
		return nil, err
	}
	identity.Role = auth.NormalizeRole(role)
	return &identity, nil
}
