package staff

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/staffdir/staffdir/internal/audit"
	"github.com/staffdir/staffdir/internal/shared"
)

type memRepo struct {
	mu     sync.Mutex
	nextID int64
	staff  map[int64]Staff
	depts  []Department
}

func newMemRepo() *memRepo {
	return &memRepo{staff: make(map[int64]Staff)}
}

func (m *memRepo) List(_ context.Context, filter ListFilter) ([]Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Staff, 0)
	for _, s := range m.staff {
		if filter.Department != "" && s.Department != filter.Department {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func (m *memRepo) Get(_ context.Context, id int64) (Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[id]
	if !ok {
		return Staff{}, shared.ErrNotFound
	}
	return s, nil
}

func (m *memRepo) Create(_ context.Context, in CreateInput) (Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.staff {
		if s.RegistrationNumber == in.RegistrationNumber {
			return Staff{}, shared.ErrConflict
		}
	}
	m.nextID++
	s := Staff{
		ID:                 m.nextID,
		RegistrationNumber: in.RegistrationNumber,
		FirstName:          in.FirstName,
		LastName:           in.LastName,
		Department:         in.Department,
		Position:           in.Position,
		Status:             StatusActive,
		CreatedAt:          time.Now(),
	}
	m.staff[s.ID] = s
	return s, nil
}

func (m *memRepo) Update(_ context.Context, id int64, in UpdateInput) (Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[id]
	if !ok {
		return Staff{}, shared.ErrNotFound
	}
	if in.Position != nil {
		s.Position = *in.Position
	}
	if in.FirstName != nil {
		s.FirstName = *in.FirstName
	}
	m.staff[id] = s
	return s, nil
}

func (m *memRepo) Delete(_ context.Context, id int64) (Staff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[id]
	if !ok {
		return Staff{}, shared.ErrNotFound
	}
	delete(m.staff, id)
	return s, nil
}

func (m *memRepo) SetPINHash(_ context.Context, id int64, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.staff[id]
	if !ok {
		return shared.ErrNotFound
	}
	s.PINHash = hash
	m.staff[id] = s
	return nil
}

func (m *memRepo) ListDepartments(context.Context) ([]Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Department(nil), m.depts...), nil
}

func (m *memRepo) CreateDepartment(_ context.Context, in DepartmentInput) (Department, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.depts {
		if d.Name == in.Name {
			return Department{}, shared.ErrConflict
		}
	}
	d := Department{ID: int64(len(m.depts) + 1), Name: in.Name, Icon: in.Icon, Color: in.Color}
	m.depts = append(m.depts, d)
	return d, nil
}

func (m *memRepo) Stats(_ context.Context, since time.Time) (Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := Stats{TotalStaff: len(m.staff), TotalDepartments: len(m.depts)}
	for _, s := range m.staff {
		if s.Status == StatusActive {
			st.ActiveStaff++
		}
		if s.CreatedAt.After(since) {
			st.RecentAdditions++
		}
	}
	return st, nil
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Record(_ context.Context, ev audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingAudit) last() audit.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[len(r.events)-1]
}

func newTestService(t *testing.T) (*Service, *memRepo, *recordingAudit) {
	t.Helper()
	repo := newMemRepo()
	rec := &recordingAudit{}
	svc := NewService(repo, rec)
	svc.pinCost = bcrypt.MinCost
	return svc, repo, rec
}

func sampleInput(reg string) CreateInput {
	return CreateInput{
		RegistrationNumber: reg,
		FirstName:          "Grace",
		LastName:           "Hopper",
		Phone:              "555-0100",
		Gender:             "female",
		Department:         "Pastors",
		Position:           "Lead",
		EmploymentType:     "full-time",
		DateOfJoining:      "2020-01-01",
	}
}

func TestCreateAndDeleteAudit(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()
	actor := audit.Event{IP: "10.0.0.2"}.By(7)

	created, err := svc.Create(ctx, actor, sampleInput("REG-1"))
	require.NoError(t, err)
	ev := rec.last()
	assert.Equal(t, audit.ActionStaffCreated, ev.Action)
	assert.Equal(t, created.ID, *ev.SubjectID)
	assert.Equal(t, int64(7), *ev.ActorID)
	assert.Equal(t, "10.0.0.2", ev.IP)

	_, err = svc.Create(ctx, actor, sampleInput("REG-1"))
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Len(t, rec.events, 1, "failed operations are not audited")

	require.NoError(t, svc.Delete(ctx, actor, created.ID))
	ev = rec.last()
	assert.Equal(t, audit.ActionStaffDeleted, ev.Action)
	assert.Equal(t, "Grace Hopper", ev.Details["name"])

	assert.ErrorIs(t, svc.Delete(ctx, actor, created.ID), shared.ErrNotFound)
	assert.Len(t, rec.events, 2)
}

func TestUpdateRequiresFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	created, err := svc.Create(context.Background(), audit.Event{}.By(1), sampleInput("REG-2"))
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), audit.Event{}.By(1), created.ID, UpdateInput{})
	assert.ErrorIs(t, err, shared.ErrValidation)

	position := "Senior"
	updated, err := svc.Update(context.Background(), audit.Event{}.By(1), created.ID, UpdateInput{Position: &position})
	require.NoError(t, err)
	assert.Equal(t, "Senior", updated.Position)
}

func TestVerifyPINFailsClosed(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, audit.Event{}.By(1), sampleInput("REG-3"))
	require.NoError(t, err)
	anonymous := audit.Event{IP: "203.0.113.9"}

	_, err = svc.VerifyPIN(ctx, anonymous, created.ID, "1234")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials, "no PIN set")
	ev := rec.last()
	assert.Equal(t, audit.ActionPINVerificationFailed, ev.Action)
	assert.Nil(t, ev.ActorID)

	require.NoError(t, svc.ResetPIN(ctx, audit.Event{}.By(1), created.ID, "1234"))
	assert.Equal(t, audit.ActionPINReset, rec.last().Action)

	_, err = svc.VerifyPIN(ctx, anonymous, created.ID, "9999")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)

	_, err = svc.VerifyPIN(ctx, anonymous, 404, "1234")
	assert.ErrorIs(t, err, shared.ErrInvalidCredentials)
	assert.Equal(t, int64(404), *rec.last().SubjectID)

	record, err := svc.VerifyPIN(ctx, anonymous, created.ID, "1234")
	require.NoError(t, err)
	assert.Equal(t, created.ID, record.ID)
	assert.Equal(t, audit.ActionPINVerificationSuccess, rec.last().Action)
	assert.Nil(t, rec.last().ActorID)
}

func TestBypassPINAudits(t *testing.T) {
	svc, _, rec := newTestService(t)
	created, err := svc.Create(context.Background(), audit.Event{}.By(1), sampleInput("REG-4"))
	require.NoError(t, err)

	record, err := svc.BypassPIN(context.Background(), audit.Event{}.By(2), created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, record.ID)
	assert.Equal(t, audit.ActionPINBypassed, rec.last().Action)
	assert.Equal(t, int64(2), *rec.last().ActorID)
}

func TestVerifyProjectsPublicFields(t *testing.T) {
	svc, _, _ := newTestService(t)
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.now = func() time.Time { return fixed }
	created, err := svc.Create(context.Background(), audit.Event{}.By(1), sampleInput("REG-5"))
	require.NoError(t, err)

	result, err := svc.Verify(context.Background(), created.ID)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	assert.Equal(t, "Grace Hopper", result.Staff.FullName)
	assert.Equal(t, fixed, result.VerifiedAt)

	_, err = svc.Verify(context.Background(), 999)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateDepartmentAudits(t *testing.T) {
	svc, _, rec := newTestService(t)
	d, err := svc.CreateDepartment(context.Background(), audit.Event{}.By(1), DepartmentInput{Name: "Choir", Icon: "music", Color: "red"})
	require.NoError(t, err)
	assert.Equal(t, "Choir", d.Name)
	assert.Equal(t, audit.ActionDepartmentCreated, rec.last().Action)
	assert.Nil(t, rec.last().SubjectID)
}
