package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/staffdir/staffdir/internal/audit/http"
	"github.com/staffdir/staffdir/internal/auth"
	"github.com/staffdir/staffdir/internal/observability"
	"github.com/staffdir/staffdir/internal/platform/httpx"
	"github.com/staffdir/staffdir/internal/rbac"
	"github.com/staffdir/staffdir/internal/staff"
	"github.com/staffdir/staffdir/internal/users"
	"github.com/staffdir/staffdir/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Authenticator      *auth.Authenticator
	RBACMiddleware     rbac.Middleware
	AuthHandler        *auth.Handler
	PermissionsHandler *rbac.PermissionsHandler
	StaffHandler       *staff.Handler
	UsersHandler       *users.Handler
	AuditHandler       *audithttp.Handler
	JobHandler         *jobs.Handler
	Metrics            *observability.Metrics
	AccessLog          bool
}

// NewRouter constructs the chi.Router serving the staff directory API.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	if params.AccessLog {
		r.Use(chimw.Logger)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", "")
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	authn := params.Authenticator.Middleware
	guard := params.RBACMiddleware

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			params.AuthHandler.MountRoutes(ar)
			if params.PermissionsHandler != nil {
				ar.Group(func(g chi.Router) {
					g.Use(authn)
					params.PermissionsHandler.MountRoutes(g)
				})
			}
		})
		if params.StaffHandler != nil {
			params.StaffHandler.MountRoutes(api, authn, guard)
		}
		if params.UsersHandler != nil {
			api.Route("/users", func(ur chi.Router) {
				ur.Use(authn)
				params.UsersHandler.MountRoutes(ur)
			})
		}
		if params.AuditHandler != nil {
			api.Group(func(g chi.Router) {
				g.Use(authn)
				params.AuditHandler.MountRoutes(g, guard)
			})
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
