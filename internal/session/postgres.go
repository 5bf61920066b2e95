package session

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository stores sessions in the sessions table.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a PostgreSQL repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Create inserts a session row.
func (r *PGRepository) Create(ctx context.Context, s Session) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO sessions (id, token_hash, identity_id, created_at, expires_at, ip, user_agent)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), NULLIF($7, ''))`,
		s.ID, s.TokenHash, s.IdentityID, s.CreatedAt, s.ExpiresAt, s.IP, s.UserAgent)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrTokenCollision
		}
		return err
	}
	return nil
}

// FindByTokenHash loads a session regardless of expiry.
func (r *PGRepository) FindByTokenHash(ctx context.Context, hash string) (Session, error) {
	var s Session
	err := r.pool.QueryRow(ctx, `SELECT id::text, token_hash, identity_id, created_at, expires_at,
       COALESCE(ip, ''), COALESCE(user_agent, '')
FROM sessions WHERE token_hash = $1`, hash).
		Scan(&s.ID, &s.TokenHash, &s.IdentityID, &s.CreatedAt, &s.ExpiresAt, &s.IP, &s.UserAgent)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Session{}, ErrNotFound
		}
		return Session{}, err
	}
	return s, nil
}

// DeleteExpired removes the row only while it is still expired at now.
func (r *PGRepository) DeleteExpired(ctx context.Context, hash string, now time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1 AND expires_at <= $2`, hash, now)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// Delete removes a session by token hash.
func (r *PGRepository) Delete(ctx context.Context, hash string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, hash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteByIdentity removes all sessions of an identity.
func (r *PGRepository) DeleteByIdentity(ctx context.Context, identityID int64) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE identity_id = $1`, identityID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteAllExpired removes every session expired at now.
func (r *PGRepository) DeleteAllExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

var _ Repository = (*PGRepository)(nil)
