package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/staffdir/staffdir/internal/audit"
	"github.com/staffdir/staffdir/internal/observability"
	"github.com/staffdir/staffdir/internal/session"
	"github.com/staffdir/staffdir/internal/shared"
)

// SessionPort is the subset of the session store used by login and logout.
type SessionPort interface {
	Issue(ctx context.Context, identityID int64, meta session.Meta) (session.Issued, error)
	Revoke(ctx context.Context, token string) (bool, error)
}

// AuditPort records access log events.
type AuditPort interface {
	Record(ctx context.Context, ev audit.Event)
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Identity *Identity
	Session  session.Issued
}

// Service wraps authentication business rules.
type Service struct {
	repo      Repository
	hasher    PasswordHasher
	dummyHash string
	sessions  SessionPort
	audit     AuditPort
	metrics   *observability.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, hasher PasswordHasher, sessions SessionPort, auditPort AuditPort, metrics *observability.Metrics, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dummy, err := hasher.Hash("staffdir-unknown-user")
	if err != nil {
		return nil, err
	}
	return &Service{
		repo:      repo,
		hasher:    hasher,
		dummyHash: dummy,
		sessions:  sessions,
		audit:     auditPort,
		metrics:   metrics,
		logger:    logger,
		now:       time.Now,
	}, nil
}

// Authenticate validates username/password credentials. Unknown users,
// wrong secrets and inactive identities all yield ErrInvalidCredentials.
// It has no side effects.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Identity, error) {
	identity, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			_, _ = s.hasher.Verify(s.dummyHash, password)
			return nil, shared.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: find identity: %w", err)
	}
	ok, err := s.hasher.Verify(identity.PasswordHash, password)
	if err != nil {
		s.logger.Warn("password verify", slog.Int64("identity_id", identity.ID), slog.Any("error", err))
		return nil, shared.ErrInvalidCredentials
	}
	if !ok || !identity.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	return identity, nil
}

// Login verifies credentials, issues a session and records the attempt.
func (s *Service) Login(ctx context.Context, username, password string, meta session.Meta) (LoginResult, error) {
	identity, err := s.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			s.metrics.LoginAttempt("failure")
			s.audit.Record(ctx, audit.Event{
				Action:    audit.ActionLoginFailed,
				IP:        meta.IP,
				UserAgent: meta.UserAgent,
				Details:   map[string]any{"username": username},
			})
		}
		return LoginResult{}, err
	}

	issued, err := s.sessions.Issue(ctx, identity.ID, meta)
	if err != nil {
		return LoginResult{}, fmt.Errorf("auth: issue session: %w", err)
	}

	at := s.now().UTC()
	if err := s.repo.TouchLastLogin(ctx, identity.ID, at); err != nil {
		s.logger.Warn("touch last login", slog.Int64("identity_id", identity.ID), slog.Any("error", err))
	} else {
		identity.LastLoginAt = &at
	}

	s.metrics.LoginAttempt("success")
	s.audit.Record(ctx, audit.Event{
		ActorID:   audit.ID(identity.ID),
		Action:    audit.ActionLoginSuccess,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
		Details:   map[string]any{"username": identity.Username, "sessionId": issued.ID},
	})
	return LoginResult{Identity: identity, Session: issued}, nil
}

// Logout revokes the session behind token and records it.
func (s *Service) Logout(ctx context.Context, actorID int64, token string, meta session.Meta) error {
	if _, err := s.sessions.Revoke(ctx, token); err != nil {
		return fmt.Errorf("auth: logout: %w", err)
	}
	s.audit.Record(ctx, audit.Event{
		ActorID:   audit.ID(actorID),
		Action:    audit.ActionLogout,
		IP:        meta.IP,
		UserAgent: meta.UserAgent,
	})
	return nil
}
