package audithttp

import (
	"github.com/go-chi/chi/v5"

	"github.com/staffdir/staffdir/internal/rbac"
)

// MountRoutes registers access log endpoints behind canViewAuditLogs.
func (h *Handler) MountRoutes(r chi.Router, guard rbac.Middleware) {
	if h == nil {
		return
	}
	r.With(guard.Require(rbac.CanViewAuditLogs)).Get("/access-logs", h.handleList)
}
