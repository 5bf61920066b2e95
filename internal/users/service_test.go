package users

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffdir/staffdir/internal/audit"
	"github.com/staffdir/staffdir/internal/auth"
	"github.com/staffdir/staffdir/internal/rbac"
	"github.com/staffdir/staffdir/internal/session"
	"github.com/staffdir/staffdir/internal/shared"
)

type memRepo struct {
	mu   sync.Mutex
	list []auth.Identity
}

func (m *memRepo) List(context.Context) ([]auth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]auth.Identity(nil), m.list...), nil
}

func (m *memRepo) Create(_ context.Context, in NewIdentity) (*auth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, identity := range m.list {
		if identity.Username == in.Username {
			return nil, shared.ErrConflict
		}
	}
	identity := auth.Identity{
		ID:           int64(len(m.list) + 1),
		Username:     in.Username,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		IsActive:     true,
	}
	m.list = append(m.list, identity)
	return &identity, nil
}

func (m *memRepo) find(id int64) (int, error) {
	for i := range m.list {
		if m.list[i].ID == id {
			return i, nil
		}
	}
	return 0, shared.ErrNotFound
}

func (m *memRepo) Deactivate(_ context.Context, id int64) (*auth.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.find(id)
	if err != nil {
		return nil, err
	}
	before := m.list[i]
	m.list[i].IsActive = false
	return &before, nil
}

func (m *memRepo) UpdateRole(_ context.Context, id int64, role rbac.Role) (rbac.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, err := m.find(id)
	if err != nil {
		return "", err
	}
	previous := m.list[i].Role
	m.list[i].Role = role
	return previous, nil
}

func (m *memRepo) ExistsByUsername(_ context.Context, username string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, identity := range m.list {
		if identity.Username == username {
			return true, nil
		}
	}
	return false, nil
}

type plainHasher struct{}

func (plainHasher) Hash(secret string) (string, error) {
	return "hashed:" + secret, nil
}

type fixture struct {
	repo     *memRepo
	sessions *session.Store
	logs     *audit.MemoryRepository
	service  *Service
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	repo := &memRepo{}
	sessions := session.NewStore(session.NewMemoryRepository(), 0)
	logs := audit.NewMemoryRepository()
	svc := NewService(repo, plainHasher{}, sessions, audit.NewRecorder(logs, nil, nil, 0), nil)
	return fixture{repo: repo, sessions: sessions, logs: logs, service: svc}
}

func TestCreateHashesPassword(t *testing.T) {
	f := newFixture(t)
	identity, err := f.service.Create(context.Background(), audit.Event{}.By(99), CreateInput{
		Username: "carol", Password: "longenough", Role: rbac.RoleHR,
	})
	require.NoError(t, err)
	assert.Equal(t, "hashed:longenough", identity.PasswordHash)

	_, err = f.service.Create(context.Background(), audit.Event{}.By(99), CreateInput{
		Username: "dave", Password: "longenough", Role: rbac.Role("owner"),
	})
	assert.ErrorIs(t, err, shared.ErrValidation)

	entries, err := f.logs.ListByActor(context.Background(), 99, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionUserCreated, entries[0].Action)
}

func TestDeactivateRevokesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	identity, err := f.service.Create(ctx, audit.Event{}.By(1), CreateInput{Username: "erin", Password: "longenough", Role: rbac.RoleStaff})
	require.NoError(t, err)
	issued, err := f.sessions.Issue(ctx, identity.ID, session.Meta{})
	require.NoError(t, err)

	assert.ErrorIs(t, f.service.Deactivate(ctx, audit.Event{}.By(identity.ID), identity.ID), shared.ErrValidation)

	require.NoError(t, f.service.Deactivate(ctx, audit.Event{}.By(100), identity.ID))
	_, err = f.sessions.Resolve(ctx, issued.Token)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.False(t, f.repo.list[0].IsActive)

	assert.ErrorIs(t, f.service.Deactivate(ctx, audit.Event{}.By(100), 555), shared.ErrNotFound)
}

func TestChangeRoleRevokesSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	identity, err := f.service.Create(ctx, audit.Event{}.By(100), CreateInput{Username: "frank", Password: "longenough", Role: rbac.RoleViewer})
	require.NoError(t, err)
	issued, err := f.sessions.Issue(ctx, identity.ID, session.Meta{})
	require.NoError(t, err)

	require.NoError(t, f.service.ChangeRole(ctx, audit.Event{}.By(100), identity.ID, rbac.RoleAdmin))
	_, err = f.sessions.Resolve(ctx, issued.Token)
	assert.ErrorIs(t, err, session.ErrNotFound)

	entries, err := f.logs.ListRecent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, audit.ActionRoleChanged, entries[0].Action)
	assert.Equal(t, "viewer", entries[0].Details["from"])
	assert.Equal(t, "admin", entries[0].Details["to"])

	assert.ErrorIs(t, f.service.ChangeRole(ctx, audit.Event{}.By(100), identity.ID, rbac.Role("root")), shared.ErrValidation)
}

func TestEnsureBootstrapAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.service.EnsureBootstrapAdmin(ctx, "root", "bootstrap-pass")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, rbac.RoleSuperAdmin, f.repo.list[0].Role)

	created, err = f.service.EnsureBootstrapAdmin(ctx, "root", "bootstrap-pass")
	require.NoError(t, err)
	assert.False(t, created)

	created, err = f.service.EnsureBootstrapAdmin(ctx, "", "")
	require.NoError(t, err)
	assert.False(t, created)
}

func TestUserRoutesAreSuperAdminOnly(t *testing.T) {
	f := newFixture(t)
	r := chi.NewRouter()
	r.Route("/users", NewHandler(nil, f.service, rbac.Middleware{}).MountRoutes)

	call := func(role rbac.Role, method, target, body string) int {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		req = req.WithContext(rbac.ContextWithPrincipal(req.Context(), rbac.Principal{ID: 100, Role: role}))
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		return rr.Code
	}

	body := `{"username":"gina","password":"longenough","role":"hr"}`
	assert.Equal(t, http.StatusForbidden, call(rbac.RoleAdmin, http.MethodPost, "/users", body))
	assert.Equal(t, http.StatusCreated, call(rbac.RoleSuperAdmin, http.MethodPost, "/users", body))
	assert.Equal(t, http.StatusConflict, call(rbac.RoleSuperAdmin, http.MethodPost, "/users", body))
	assert.Equal(t, http.StatusOK, call(rbac.RoleSuperAdmin, http.MethodGet, "/users", ""))
	assert.Equal(t, http.StatusForbidden, call(rbac.RoleAdmin, http.MethodPatch, "/users/1/role", `{"role":"admin"}`))
	assert.Equal(t, http.StatusBadRequest, call(rbac.RoleSuperAdmin, http.MethodPatch, "/users/1/role", `{"role":"god"}`))
	assert.Equal(t, http.StatusOK, call(rbac.RoleSuperAdmin, http.MethodPatch, "/users/1/role", `{"role":"admin"}`))
	assert.Equal(t, http.StatusForbidden, call(rbac.RoleHR, http.MethodDelete, "/users/1", ""))
	assert.Equal(t, http.StatusOK, call(rbac.RoleSuperAdmin, http.MethodDelete, "/users/1", ""))
}
