package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/staffdir/staffdir/internal/audit"
	"github.com/staffdir/staffdir/internal/auth"
	"github.com/staffdir/staffdir/internal/rbac"
	"github.com/staffdir/staffdir/internal/shared"
)

// RepositoryPort defines data access methods for identities.
type RepositoryPort interface {
	List(ctx context.Context) ([]auth.Identity, error)
	Create(ctx context.Context, in NewIdentity) (*auth.Identity, error)
	Deactivate(ctx context.Context, id int64) (*auth.Identity, error)
	UpdateRole(ctx context.Context, id int64, role rbac.Role) (rbac.Role, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// SessionRevoker ends every session of an identity.
type SessionRevoker interface {
	RevokeAllFor(ctx context.Context, identityID int64) (int64, error)
}

// AuditPort records access log events.
type AuditPort interface {
	Record(ctx context.Context, ev audit.Event)
}

// Hasher derives password hashes.
type Hasher interface {
	Hash(secret string) (string, error)
}

// Service handles identity administration.
type Service struct {
	repo     RepositoryPort
	hasher   Hasher
	sessions SessionRevoker
	audit    AuditPort
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, hasher Hasher, sessions SessionRevoker, auditPort AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, hasher: hasher, sessions: sessions, audit: auditPort, logger: logger}
}

// List returns all identities.
func (s *Service) List(ctx context.Context) ([]auth.Identity, error) {
	return s.repo.List(ctx)
}

// Create adds an identity with a hashed password.
func (s *Service) Create(ctx context.Context, origin audit.Event, in CreateInput) (*auth.Identity, error) {
	if !in.Role.Valid() {
		return nil, fmt.Errorf("users: role %q: %w", in.Role, shared.ErrValidation)
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("users: hash password: %w", err)
	}
	identity, err := s.repo.Create(ctx, NewIdentity{
		Username:     in.Username,
		PasswordHash: hash,
		Role:         in.Role,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
	})
	if err != nil {
		return nil, err
	}
	ev := origin
	ev.Action = audit.ActionUserCreated
	ev.Details = map[string]any{"identityId": identity.ID, "username": identity.Username, "role": string(identity.Role)}
	s.audit.Record(ctx, ev)
	return identity, nil
}

// Deactivate disables an identity and ends its sessions. Actors cannot
// deactivate themselves.
func (s *Service) Deactivate(ctx context.Context, origin audit.Event, id int64) error {
	if origin.ActorID != nil && *origin.ActorID == id {
		return fmt.Errorf("users: cannot deactivate own account: %w", shared.ErrValidation)
	}
	before, err := s.repo.Deactivate(ctx, id)
	if err != nil {
		return err
	}
	revoked := s.revokeAll(ctx, id)
	ev := origin
	ev.Action = audit.ActionUserDeactivated
	ev.Details = map[string]any{"identityId": id, "username": before.Username, "sessionsRevoked": revoked}
	s.audit.Record(ctx, ev)
	return nil
}

// ChangeRole assigns role to an identity and ends its sessions so the
// new grants apply from the next login.
func (s *Service) ChangeRole(ctx context.Context, origin audit.Event, id int64, role rbac.Role) error {
	if !role.Valid() {
		return fmt.Errorf("users: role %q: %w", role, shared.ErrValidation)
	}
	if origin.ActorID != nil && *origin.ActorID == id {
		return fmt.Errorf("users: cannot change own role: %w", shared.ErrValidation)
	}
	previous, err := s.repo.UpdateRole(ctx, id, role)
	if err != nil {
		return err
	}
	revoked := s.revokeAll(ctx, id)
	ev := origin
	ev.Action = audit.ActionRoleChanged
	ev.Details = map[string]any{"identityId": id, "from": string(previous), "to": string(role), "sessionsRevoked": revoked}
	s.audit.Record(ctx, ev)
	return nil
}

// EnsureBootstrapAdmin creates a super_admin identity named username when
// none exists. It reports whether an identity was created.
func (s *Service) EnsureBootstrapAdmin(ctx context.Context, username, password string) (bool, error) {
	if username == "" || password == "" {
		return false, nil
	}
	exists, err := s.repo.ExistsByUsername(ctx, username)
	if err != nil {
		return false, fmt.Errorf("users: bootstrap lookup: %w", err)
	}
	if exists {
		return false, nil
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("users: bootstrap hash: %w", err)
	}
	identity, err := s.repo.Create(ctx, NewIdentity{
		Username:     username,
		PasswordHash: hash,
		Role:         rbac.RoleSuperAdmin,
		FirstName:    "System",
		LastName:     "Administrator",
	})
	if err != nil {
		return false, fmt.Errorf("users: bootstrap create: %w", err)
	}
	s.audit.Record(ctx, audit.Event{
		Action:  audit.ActionUserCreated,
		Details: map[string]any{"identityId": identity.ID, "username": identity.Username, "role": string(identity.Role), "bootstrap": true},
	})
	return true, nil
}

func (s *Service) revokeAll(ctx context.Context, id int64) int64 {
	n, err := s.sessions.RevokeAllFor(ctx, id)
	if err != nil {
		// identity change is already committed
		s.logger.Error("revoke sessions", slog.Int64("identity_id", id), slog.Any("error", err))
	}
	return n
}
