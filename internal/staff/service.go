package staff

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/staffdir/staffdir/internal/audit"
	"github.com/staffdir/staffdir/internal/shared"
)

// RepositoryPort defines data access for staff records and departments.
type RepositoryPort interface {
	List(ctx context.Context, filter ListFilter) ([]Staff, error)
	Get(ctx context.Context, id int64) (Staff, error)
	Create(ctx context.Context, in CreateInput) (Staff, error)
	Update(ctx context.Context, id int64, in UpdateInput) (Staff, error)
	Delete(ctx context.Context, id int64) (Staff, error)
	SetPINHash(ctx context.Context, id int64, hash string) error
	ListDepartments(ctx context.Context) ([]Department, error)
	CreateDepartment(ctx context.Context, in DepartmentInput) (Department, error)
	Stats(ctx context.Context, since time.Time) (Stats, error)
}

// AuditPort records access log events.
type AuditPort interface {
	Record(ctx context.Context, ev audit.Event)
}

// Service handles staff business logic. Every mutating method takes the
// request origin (actor, address, agent) used for the access log.
type Service struct {
	repo    RepositoryPort
	audit   AuditPort
	pinCost int
	now     func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, auditPort AuditPort) *Service {
	return &Service{repo: repo, audit: auditPort, pinCost: bcrypt.DefaultCost, now: time.Now}
}

// List returns staff matching filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Staff, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Department = strings.TrimSpace(filter.Department)
	return s.repo.List(ctx, filter)
}

// Get returns one staff record.
func (s *Service) Get(ctx context.Context, id int64) (Staff, error) {
	return s.repo.Get(ctx, id)
}

// Create adds a staff record.
func (s *Service) Create(ctx context.Context, origin audit.Event, in CreateInput) (Staff, error) {
	created, err := s.repo.Create(ctx, in)
	if err != nil {
		return Staff{}, err
	}
	ev := origin.On(created.ID)
	ev.Action = audit.ActionStaffCreated
	ev.Details = map[string]any{"registrationNumber": created.RegistrationNumber}
	s.audit.Record(ctx, ev)
	return created, nil
}

// Update changes a staff record.
func (s *Service) Update(ctx context.Context, origin audit.Event, id int64, in UpdateInput) (Staff, error) {
	if in.Empty() {
		return Staff{}, fmt.Errorf("staff: nothing to update: %w", shared.ErrValidation)
	}
	updated, err := s.repo.Update(ctx, id, in)
	if err != nil {
		return Staff{}, err
	}
	ev := origin.On(id)
	ev.Action = audit.ActionStaffUpdated
	s.audit.Record(ctx, ev)
	return updated, nil
}

// Delete removes a staff record.
func (s *Service) Delete(ctx context.Context, origin audit.Event, id int64) error {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return err
	}
	ev := origin.On(id)
	ev.Action = audit.ActionStaffDeleted
	ev.Details = map[string]any{
		"registrationNumber": deleted.RegistrationNumber,
		"name":               deleted.FullName(),
	}
	s.audit.Record(ctx, ev)
	return nil
}

// ResetPIN sets a new PIN for a staff record.
func (s *Service) ResetPIN(ctx context.Context, origin audit.Event, id int64, pin string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), s.pinCost)
	if err != nil {
		return fmt.Errorf("staff: hash pin: %w", err)
	}
	if err := s.repo.SetPINHash(ctx, id, string(hash)); err != nil {
		return err
	}
	ev := origin.On(id)
	ev.Action = audit.ActionPINReset
	s.audit.Record(ctx, ev)
	return nil
}

// BypassPIN returns a staff record to a privileged actor without a PIN.
func (s *Service) BypassPIN(ctx context.Context, origin audit.Event, id int64) (Staff, error) {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Staff{}, err
	}
	ev := origin.On(id)
	ev.Action = audit.ActionPINBypassed
	s.audit.Record(ctx, ev)
	return record, nil
}

// VerifyPIN checks pin against the stored hash. A record without a PIN,
// or one that does not exist, never verifies.
func (s *Service) VerifyPIN(ctx context.Context, origin audit.Event, id int64, pin string) (Staff, error) {
	ev := origin.On(id)
	record, err := s.repo.Get(ctx, id)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return Staff{}, err
	}
	if err != nil || record.PINHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(record.PINHash), []byte(pin)) != nil {
		ev.Action = audit.ActionPINVerificationFailed
		s.audit.Record(ctx, ev)
		return Staff{}, fmt.Errorf("staff: pin rejected: %w", shared.ErrInvalidCredentials)
	}
	ev.Action = audit.ActionPINVerificationSuccess
	s.audit.Record(ctx, ev)
	return record, nil
}

// Verify returns the public verification card for a staff record.
func (s *Service) Verify(ctx context.Context, id int64) (Verification, error) {
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return Verification{}, err
	}
	return Verification{
		Valid: true,
		Staff: &VerifiedCard{
			ID:                 record.ID,
			RegistrationNumber: record.RegistrationNumber,
			FullName:           record.FullName(),
			Department:         record.Department,
			Position:           record.Position,
			Status:             record.Status,
			DateOfJoining:      record.DateOfJoining,
		},
		VerifiedAt: s.now().UTC(),
	}, nil
}

// Departments lists departments.
func (s *Service) Departments(ctx context.Context) ([]Department, error) {
	return s.repo.ListDepartments(ctx)
}

// Stats counts staff, active staff, departments and records added within
// RecentWindow.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	return s.repo.Stats(ctx, s.now().Add(-RecentWindow))
}

// CreateDepartment adds a department.
func (s *Service) CreateDepartment(ctx context.Context, origin audit.Event, in DepartmentInput) (Department, error) {
	d, err := s.repo.CreateDepartment(ctx, in)
	if err != nil {
		return Department{}, err
	}
	ev := origin
	ev.Action = audit.ActionDepartmentCreated
	ev.Details = map[string]any{"department": d.Name}
	s.audit.Record(ctx, ev)
	return d, nil
}
