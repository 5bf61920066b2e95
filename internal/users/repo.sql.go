package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffdir/staffdir/internal/auth"
	"github.com/staffdir/staffdir/internal/platform/db"
	"github.com/staffdir/staffdir/internal/rbac"
	"github.com/staffdir/staffdir/internal/shared"
)

// Repository provides PostgreSQL backed persistence for identities.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns all identities ordered by id.
func (r *Repository) List(ctx context.Context) ([]auth.Identity, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+auth.IdentityColumns+` FROM identities ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := make([]auth.Identity, 0)
	for rows.Next() {
		identity, err := auth.ScanIdentity(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, *identity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

// Create inserts an identity.
func (r *Repository) Create(ctx context.Context, in NewIdentity) (*auth.Identity, error) {
	identity, err := auth.ScanIdentity(r.pool.QueryRow(ctx, `INSERT INTO identities
    (username, password_hash, role, first_name, last_name, email)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
RETURNING `+auth.IdentityColumns,
		in.Username, in.PasswordHash, string(in.Role), in.FirstName, in.LastName, in.Email))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, fmt.Errorf("users: username taken: %w", shared.ErrConflict)
		}
		return nil, err
	}
	return identity, nil
}

// Deactivate marks an identity inactive. It reports the identity as it
// was before the change.
func (r *Repository) Deactivate(ctx context.Context, id int64) (*auth.Identity, error) {
	var before *auth.Identity
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		found, err := auth.ScanIdentity(tx.QueryRow(ctx, `SELECT `+auth.IdentityColumns+` FROM identities WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}
		before = found
		_, err = tx.Exec(ctx, `UPDATE identities SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return before, nil
}

// UpdateRole sets a new role and returns the previous one.
func (r *Repository) UpdateRole(ctx context.Context, id int64, role rbac.Role) (rbac.Role, error) {
	var previous rbac.Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var current string
		if err := tx.QueryRow(ctx, `SELECT role FROM identities WHERE id = $1 FOR UPDATE`, id).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return shared.ErrNotFound
			}
			return err
		}
		previous = rbac.Role(current)
		_, err := tx.Exec(ctx, `UPDATE identities SET role = $2, updated_at = NOW() WHERE id = $1`, id, string(role))
		return err
	})
	if err != nil {
		return "", err
	}
	return previous, nil
}

// ExistsByUsername reports whether username is taken.
func (r *Repository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM identities WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}
