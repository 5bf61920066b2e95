package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/staffdir/staffdir/internal/audit"
	"github.com/staffdir/staffdir/internal/platform/httpx"
	"github.com/staffdir/staffdir/internal/rbac"
	"github.com/staffdir/staffdir/internal/shared"
)

// Handler manages identity administration endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, guard rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, rbac: guard}
}

// MountRoutes registers user routes. The router must already run the
// request authenticator.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.CanCreateUsers))
		r.Get("/", h.listUsers)
		r.Post("/", h.createUser)
	})
	r.With(h.rbac.Require(rbac.CanDeleteUsers)).Delete("/{id}", h.deactivateUser)
	r.With(h.rbac.Require(rbac.CanManageRoles)).Patch("/{id}/role", h.changeRole)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if fields, err := httpx.Bind(r, &in); err != nil {
		httpx.RespondBindError(w, fields, err)
		return
	}
	identity, err := h.service.Create(r.Context(), origin(r), in)
	if err != nil {
		h.respond(w, "create user", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, identity)
}

func (h *Handler) deactivateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.service.Deactivate(r.Context(), origin(r), id); err != nil {
		h.respond(w, "deactivate user", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "User deactivated"})
}

func (h *Handler) changeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in RoleChange
	if fields, err := httpx.Bind(r, &in); err != nil {
		httpx.RespondBindError(w, fields, err)
		return
	}
	if err := h.service.ChangeRole(r.Context(), origin(r), id, in.Role); err != nil {
		h.respond(w, "change role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Role updated", "role": string(in.Role)})
}

func (h *Handler) respond(w http.ResponseWriter, op string, err error) {
	if !errors.Is(err, shared.ErrValidation) && !errors.Is(err, shared.ErrConflict) && !errors.Is(err, shared.ErrNotFound) {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid user id")
		return 0, false
	}
	return id, true
}

func origin(r *http.Request) audit.Event {
	ev := audit.FromRequest(r, "")
	if p, ok := rbac.PrincipalFromContext(r.Context()); ok {
		ev = ev.By(p.ID)
	}
	return ev
}
