package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/staffdir/staffdir/internal/platform/httpx"
)

// PermissionsHandler exposes the grant table to authenticated callers.
type PermissionsHandler struct{}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler() *PermissionsHandler {
	return &PermissionsHandler{}
}

// MountRoutes registers permission routes. The router must already
// enforce authentication.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Get("/permissions", h.myPermissions)
}

type permissionsResponse struct {
	Role         Role                `json:"role"`
	Permissions  map[Capability]bool `json:"permissions"`
	Capabilities []Capability        `json:"capabilities"`
}

func (h *PermissionsHandler) myPermissions(w http.ResponseWriter, r *http.Request) {
	p, err := CheckContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, permissionsResponse{
		Role:         p.Role,
		Permissions:  Grants(p.Role),
		Capabilities: Capabilities(p.Role),
	})
}
