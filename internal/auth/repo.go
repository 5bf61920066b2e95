package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/staffdir/staffdir/internal/rbac"
	"github.com/staffdir/staffdir/internal/shared"
)

// Repository defines identity lookups needed by login and request
// authentication.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*Identity, error)
	FindByID(ctx context.Context, id int64) (*Identity, error)
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// IdentityColumns is the column list matched by ScanIdentity.
const IdentityColumns = `id, username, password_hash, role, first_name, last_name,
       COALESCE(email, ''), is_active, last_login_at, created_at, updated_at`

// ScanIdentity reads one identity row selected with IdentityColumns.
func ScanIdentity(row pgx.Row) (*Identity, error) {
	var (
		identity Identity
		role     string
	)
	err := row.Scan(&identity.ID, &identity.Username, &identity.PasswordHash, &role,
		&identity.FirstName, &identity.LastName, &identity.Email, &identity.IsActive,
		&identity.LastLoginAt, &identity.CreatedAt, &identity.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	identity.Role = rbac.Role(role)
	return &identity, nil
}

// FindByUsername fetches an identity by exact, case-sensitive username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*Identity, error) {
	return ScanIdentity(r.pool.QueryRow(ctx, `SELECT `+IdentityColumns+` FROM identities WHERE username = $1`, username))
}

// FindByID fetches an identity by id.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*Identity, error) {
	return ScanIdentity(r.pool.QueryRow(ctx, `SELECT `+IdentityColumns+` FROM identities WHERE id = $1`, id))
}

// TouchLastLogin records a successful login time.
func (r *PGRepository) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := r.pool.Exec(ctx, `UPDATE identities SET last_login_at = $2 WHERE id = $1`, id, at)
	return err
}

var _ Repository = (*PGRepository)(nil)
