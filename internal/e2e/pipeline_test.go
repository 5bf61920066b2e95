package e2e

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffdir/staffdir/internal/app"
	"github.com/staffdir/staffdir/internal/audit"
	audithttp "github.com/staffdir/staffdir/internal/audit/http"
	"github.com/staffdir/staffdir/internal/auth"
	"github.com/staffdir/staffdir/internal/observability"
	"github.com/staffdir/staffdir/internal/rbac"
	"github.com/staffdir/staffdir/internal/session"
	"github.com/staffdir/staffdir/internal/shared"
	"github.com/staffdir/staffdir/internal/staff"
	_ "github.com/staffdir/staffdir/testing"
)

type identityStore struct {
	mu   sync.Mutex
	byID map[int64]*auth.Identity
}

func (s *identityStore) FindByUsername(_ context.Context, username string) (*auth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.byID {
		if id.Username == username {
			copied := *id
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (s *identityStore) FindByID(_ context.Context, id int64) (*auth.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.byID[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *identity
	return &copied, nil
}

func (s *identityStore) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if identity, ok := s.byID[id]; ok {
		identity.LastLoginAt = &at
	}
	return nil
}

type staffStore struct {
	mu    sync.Mutex
	staff map[int64]staff.Staff
}

func (s *staffStore) List(context.Context, staff.ListFilter) ([]staff.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]staff.Staff, 0, len(s.staff))
	for _, m := range s.staff {
		out = append(out, m)
	}
	return out, nil
}

func (s *staffStore) Get(_ context.Context, id int64) (staff.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.staff[id]
	if !ok {
		return staff.Staff{}, shared.ErrNotFound
	}
	return m, nil
}

func (s *staffStore) Create(context.Context, staff.CreateInput) (staff.Staff, error) {
	return staff.Staff{}, errors.New("not supported")
}

func (s *staffStore) Update(context.Context, int64, staff.UpdateInput) (staff.Staff, error) {
	return staff.Staff{}, errors.New("not supported")
}

func (s *staffStore) Delete(_ context.Context, id int64) (staff.Staff, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.staff[id]
	if !ok {
		return staff.Staff{}, shared.ErrNotFound
	}
	delete(s.staff, id)
	return m, nil
}

func (s *staffStore) SetPINHash(context.Context, int64, string) error { return nil }

func (s *staffStore) ListDepartments(context.Context) ([]staff.Department, error) {
	return nil, nil
}

func (s *staffStore) CreateDepartment(context.Context, staff.DepartmentInput) (staff.Department, error) {
	return staff.Department{}, errors.New("not supported")
}

func (s *staffStore) Stats(context.Context, time.Time) (staff.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return staff.Stats{TotalStaff: len(s.staff)}, nil
}

func (s *staffStore) has(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.staff[id]
	return ok
}

// flakyWriter fails every append while broken is set.
type flakyWriter struct {
	inner  *audit.MemoryRepository
	broken atomic.Bool
}

func (w *flakyWriter) Append(ctx context.Context, e audit.Entry) error {
	if w.broken.Load() {
		return errors.New("access_logs: relation does not exist")
	}
	return w.inner.Append(ctx, e)
}

type harness struct {
	handler http.Handler
	logs    *audit.MemoryRepository
	writer  *flakyWriter
	staff   *staffStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	hasher := auth.PasswordHasher{Memory: 1024, Time: 1, Threads: 1, SaltLen: 8, KeyLen: 16}
	hash, err := hasher.Hash("passw0rd!")
	require.NoError(t, err)

	identities := &identityStore{byID: map[int64]*auth.Identity{
		1: {ID: 1, Username: "admin", PasswordHash: hash, Role: rbac.RoleAdmin, IsActive: true},
		2: {ID: 2, Username: "hr", PasswordHash: hash, Role: rbac.RoleHR, IsActive: true},
		3: {ID: 3, Username: "ops", PasswordHash: hash, Role: rbac.RoleAdmin, IsActive: true},
	}}
	members := &staffStore{staff: map[int64]staff.Staff{}}
	for id := int64(1); id <= 3; id++ {
		members.staff[id] = staff.Staff{ID: id, RegistrationNumber: fmt.Sprintf("REG-%03d", id), FirstName: "Grace", LastName: "Hopper"}
	}

	metrics := observability.NewMetrics()
	logs := audit.NewMemoryRepository()
	writer := &flakyWriter{inner: logs}
	recorder := audit.NewRecorder(writer, nil, metrics, time.Second)
	sessions := session.NewStore(session.NewMemoryRepository(), session.DefaultTTL)

	authService, err := auth.NewService(identities, hasher, sessions, recorder, metrics, nil)
	require.NoError(t, err)
	authenticator := auth.NewAuthenticator(sessions, identities, nil, metrics)
	guard := rbac.Middleware{Metrics: metrics}

	handler := app.NewRouter(app.RouterParams{
		Authenticator:      authenticator,
		RBACMiddleware:     guard,
		AuthHandler:        auth.NewHandler(nil, authService, authenticator, 0),
		PermissionsHandler: rbac.NewPermissionsHandler(),
		StaffHandler:       staff.NewHandler(nil, staff.NewService(members, recorder), 0),
		AuditHandler:       audithttp.NewHandler(nil, audit.NewService(logs)),
		Metrics:            metrics,
	})
	return &harness{handler: handler, logs: logs, writer: writer, staff: members}
}

func (h *harness) do(t *testing.T, method, target, body, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "e2e")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.handler.ServeHTTP(rr, req)
	return rr
}

func (h *harness) login(t *testing.T, username string) string {
	t.Helper()
	rr := h.do(t, http.MethodPost, "/api/auth/login", `{"username":"`+username+`","password":"passw0rd!"}`, "")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var body struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func (h *harness) recent(t *testing.T) []audit.Entry {
	t.Helper()
	entries, err := h.logs.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	return entries
}

func TestAdminDeleteThenRevokedTokenIsRejected(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "admin")

	rr := h.do(t, http.MethodDelete, "/api/staff/1", "", token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.False(t, h.staff.has(1))

	latest := h.recent(t)[0]
	assert.Equal(t, audit.ActionStaffDeleted, latest.Action)
	require.NotNil(t, latest.ActorID)
	assert.Equal(t, int64(1), *latest.ActorID)
	require.NotNil(t, latest.SubjectID)
	assert.Equal(t, int64(1), *latest.SubjectID)
	assert.Equal(t, "e2e", latest.UserAgent)

	rr = h.do(t, http.MethodPost, "/api/auth/logout", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, audit.ActionLogout, h.recent(t)[0].Action)
	before := h.logs.Len()

	rr = h.do(t, http.MethodDelete, "/api/staff/2", "", token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.True(t, h.staff.has(2))
	assert.Equal(t, before, h.logs.Len())
}

func TestHRCannotDeleteButCanReadAccessLogs(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "hr")

	rr := h.do(t, http.MethodDelete, "/api/staff/1", "", token)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.True(t, h.staff.has(1))

	rr = h.do(t, http.MethodGet, "/api/access-logs?limit=5", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), string(audit.ActionLoginSuccess))

	rr = h.do(t, http.MethodGet, "/api/auth/permissions", "", token)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"canDeleteStaff":false`)
}

func TestUnauthenticatedRequestsAreRejected(t *testing.T) {
	h := newHarness(t)

	for _, target := range []string{"/api/staff", "/api/access-logs", "/api/auth/user", "/api/auth/permissions"} {
		rr := h.do(t, http.MethodGet, target, "", "")
		assert.Equal(t, http.StatusUnauthorized, rr.Code, target)
	}
	rr := h.do(t, http.MethodGet, "/api/staff", "", strings.Repeat("ab", 32))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Zero(t, h.logs.Len())
}

func TestAuditStoreFailureDoesNotFailOperation(t *testing.T) {
	h := newHarness(t)
	token := h.login(t, "ops")
	before := h.logs.Len()

	h.writer.broken.Store(true)
	rr := h.do(t, http.MethodDelete, "/api/staff/3", "", token)
	h.writer.broken.Store(false)

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.False(t, h.staff.has(3))
	assert.Equal(t, before, h.logs.Len())

	rr = h.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "staffdir_audit_write_failures_total 1")
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	rr := h.do(t, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}
