package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultTTL is the lifetime of a session. Resolution does not extend it.
const DefaultTTL = 24 * time.Hour

const issueAttempts = 3

// Repository persists sessions keyed by token hash.
type Repository interface {
	Create(ctx context.Context, s Session) error
	FindByTokenHash(ctx context.Context, hash string) (Session, error)
	// DeleteExpired removes the session only if it is expired at now.
	DeleteExpired(ctx context.Context, hash string, now time.Time) (bool, error)
	Delete(ctx context.Context, hash string) (bool, error)
	DeleteByIdentity(ctx context.Context, identityID int64) (int64, error)
	DeleteAllExpired(ctx context.Context, now time.Time) (int64, error)
}

// Store issues, resolves and revokes bearer sessions.
type Store struct {
	repo   Repository
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
	token  func() (string, error)
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for background cleanup failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStore constructs a Store. A non-positive ttl selects DefaultTTL.
func NewStore(repo Repository, ttl time.Duration, opts ...Option) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &Store{
		repo:   repo,
		ttl:    ttl,
		logger: slog.Default(),
		now:    time.Now,
		token:  NewToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// TTL returns the configured session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// Issue creates a session for identityID and returns the token once.
func (s *Store) Issue(ctx context.Context, identityID int64, meta Meta) (Issued, error) {
	if identityID <= 0 {
		return Issued{}, fmt.Errorf("session: invalid identity %d", identityID)
	}
	now := s.now().UTC()
	for attempt := 0; attempt < issueAttempts; attempt++ {
		token, err := s.token()
		if err != nil {
			return Issued{}, err
		}
		sess := Session{
			ID:         uuid.NewString(),
			TokenHash:  HashToken(token),
			IdentityID: identityID,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.ttl),
			IP:         meta.IP,
			UserAgent:  meta.UserAgent,
		}
		err = s.repo.Create(ctx, sess)
		if errors.Is(err, ErrTokenCollision) {
			continue
		}
		if err != nil {
			return Issued{}, fmt.Errorf("session: create: %w", err)
		}
		return Issued{Session: sess, Token: token}, nil
	}
	return Issued{}, ErrTokenCollision
}

// Resolve maps a token to its live session. Expired sessions are removed
// as a side effect.
func (s *Store) Resolve(ctx context.Context, token string) (Session, error) {
	if !WellFormed(token) {
		return Session{}, ErrMalformedToken
	}
	hash := HashToken(token)
	sess, err := s.repo.FindByTokenHash(ctx, hash)
	if err != nil {
		return Session{}, err
	}
	now := s.now()
	if sess.LiveAt(now) {
		return sess, nil
	}
	if _, err := s.repo.DeleteExpired(ctx, hash, now); err != nil {
		s.logger.Warn("session cleanup failed", slog.String("session_id", sess.ID), slog.Any("error", err))
	}
	return Session{}, ErrExpired
}

// Revoke deletes the session for token. Revoking an unknown token is not
// an error; the bool reports whether a session was removed.
func (s *Store) Revoke(ctx context.Context, token string) (bool, error) {
	if !WellFormed(token) {
		return false, nil
	}
	removed, err := s.repo.Delete(ctx, HashToken(token))
	if err != nil {
		return false, fmt.Errorf("session: revoke: %w", err)
	}
	return removed, nil
}

// RevokeAllFor deletes every session of an identity.
func (s *Store) RevokeAllFor(ctx context.Context, identityID int64) (int64, error) {
	n, err := s.repo.DeleteByIdentity(ctx, identityID)
	if err != nil {
		return 0, fmt.Errorf("session: revoke identity %d: %w", identityID, err)
	}
	return n, nil
}

// SweepExpired removes every session expired at the current time.
func (s *Store) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteAllExpired(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("session: sweep: %w", err)
	}
	return n, nil
}
