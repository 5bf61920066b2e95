package staff

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/staffdir/staffdir/internal/audit"
	"github.com/staffdir/staffdir/internal/platform/httpx"
	"github.com/staffdir/staffdir/internal/rbac"
	"github.com/staffdir/staffdir/internal/shared"
)

// Handler serves staff, department and verification endpoints.
type Handler struct {
	logger       *slog.Logger
	service      *Service
	pinRateLimit int
}

// NewHandler builds Handler instance. pinRateLimit is the number of PIN
// attempts allowed per client IP and staff record per minute; zero
// disables it.
func NewHandler(logger *slog.Logger, service *Service, pinRateLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, pinRateLimit: pinRateLimit}
}

// MountRoutes registers staff routes. authn must resolve the principal
// before guard runs.
func (h *Handler) MountRoutes(r chi.Router, authn func(http.Handler) http.Handler, guard rbac.Middleware) {
	r.With(h.pinLimiter()...).Post("/staff/{id}/verify-pin", h.handleVerifyPIN)
	r.Get("/verify/{id}", h.handleVerify)
	r.Get("/departments", h.handleListDepartments)

	r.Group(func(pr chi.Router) {
		pr.Use(authn)
		pr.With(guard.Require(rbac.CanViewAllStaff)).Get("/stats", h.handleStats)
		pr.With(guard.Require(rbac.CanViewAllStaff)).Get("/staff", h.handleList)
		pr.With(guard.Require(rbac.CanViewAllStaff)).Get("/staff/{id}", h.handleGet)
		pr.With(guard.Require(rbac.CanCreateStaff)).Post("/staff", h.handleCreate)
		pr.With(guard.Require(rbac.CanEditStaff)).Put("/staff/{id}", h.handleUpdate)
		pr.With(guard.Require(rbac.CanDeleteStaff)).Delete("/staff/{id}", h.handleDelete)
		pr.With(guard.Require(rbac.CanEditStaff, rbac.CanResetPIN)).Post("/staff/{id}/reset-pin", h.handleResetPIN)
		pr.With(guard.Require(rbac.CanBypassPIN)).Post("/staff/{id}/bypass-pin", h.handleBypassPIN)
		pr.With(guard.Require(rbac.CanManageDepartments)).Post("/departments", h.handleCreateDepartment)
	})
}

// pinLimiter throttles PIN guesses per client address and target record.
func (h *Handler) pinLimiter() []func(http.Handler) http.Handler {
	if h.pinRateLimit <= 0 {
		return nil
	}
	return []func(http.Handler) http.Handler{
		httprate.Limit(h.pinRateLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP, func(r *http.Request) (string, error) {
				return chi.URLParam(r, "id"), nil
			}),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "too many PIN attempts")
			}),
		),
	}
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.fail(w, "staff stats", err)
		return
	}
	httpx.JSON(w, http.StatusOK, stats)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := h.service.List(r.Context(), ListFilter{Department: q.Get("department"), Search: q.Get("search")})
	if err != nil {
		h.fail(w, "list staff", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	record, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get staff", err)
		return
	}
	httpx.JSON(w, http.StatusOK, record)
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if fields, err := httpx.Bind(r, &in); err != nil {
		httpx.RespondBindError(w, fields, err)
		return
	}
	created, err := h.service.Create(r.Context(), origin(r), in)
	if err != nil {
		h.fail(w, "create staff", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var in UpdateInput
	if fields, err := httpx.Bind(r, &in); err != nil {
		httpx.RespondBindError(w, fields, err)
		return
	}
	updated, err := h.service.Update(r.Context(), origin(r), id, in)
	if err != nil {
		h.fail(w, "update staff", err)
		return
	}
	httpx.JSON(w, http.StatusOK, updated)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), origin(r), id); err != nil {
		h.fail(w, "delete staff", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Staff member deleted successfully"})
}

type pinRequest struct {
	PIN string `json:"pin" validate:"required,numeric,min=4,max=8"`
}

func (h *Handler) handleResetPIN(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req pinRequest
	if fields, err := httpx.Bind(r, &req); err != nil {
		httpx.RespondBindError(w, fields, err)
		return
	}
	if err := h.service.ResetPIN(r.Context(), origin(r), id, req.PIN); err != nil {
		h.fail(w, "reset pin", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "PIN reset"})
}

func (h *Handler) handleBypassPIN(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	record, err := h.service.BypassPIN(r.Context(), origin(r), id)
	if err != nil {
		h.fail(w, "bypass pin", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "PIN bypassed", "staff": record})
}

func (h *Handler) handleVerifyPIN(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req pinRequest
	if fields, err := httpx.Bind(r, &req); err != nil {
		httpx.RespondBindError(w, fields, err)
		return
	}
	record, err := h.service.VerifyPIN(r.Context(), origin(r), id, req.PIN)
	if err != nil {
		h.fail(w, "verify pin", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"message": "PIN verified", "staff": record})
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	result, err := h.service.Verify(r.Context(), id)
	if err != nil {
		h.fail(w, "verify staff", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleListDepartments(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.Departments(r.Context())
	if err != nil {
		h.fail(w, "list departments", err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) handleCreateDepartment(w http.ResponseWriter, r *http.Request) {
	var in DepartmentInput
	if fields, err := httpx.Bind(r, &in); err != nil {
		httpx.RespondBindError(w, fields, err)
		return
	}
	d, err := h.service.CreateDepartment(r.Context(), origin(r), in)
	if err != nil {
		h.fail(w, "create department", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, d)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid staff id")
		return 0, false
	}
	return id, true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if !isClientError(err) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func isClientError(err error) bool {
	for _, target := range []error{shared.ErrNotFound, shared.ErrValidation, shared.ErrConflict, shared.ErrInvalidCredentials} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// origin builds the access log template for r: client address, agent and
// the authenticated actor when there is one.
func origin(r *http.Request) audit.Event {
	ev := audit.FromRequest(r, "")
	if p, ok := rbac.PrincipalFromContext(r.Context()); ok {
		ev = ev.By(p.ID)
	}
	return ev
}
