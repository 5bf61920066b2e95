package auth

import (
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/staffdir/staffdir/internal/platform/httpx"
	"github.com/staffdir/staffdir/internal/rbac"
	"github.com/staffdir/staffdir/internal/session"
	"github.com/staffdir/staffdir/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	authn          *Authenticator
	loginRateLimit int
}

// NewHandler constructs a Handler instance. loginRateLimit is the number
// of login attempts allowed per client IP per minute; zero disables it.
func NewHandler(logger *slog.Logger, service *Service, authn *Authenticator, loginRateLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, authn: authn, loginRateLimit: loginRateLimit}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(pub chi.Router) {
		if h.loginRateLimit > 0 {
			pub.Use(httprate.Limit(h.loginRateLimit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "too many login attempts")
				}),
			))
		}
		pub.Post("/login", h.handleLogin)
	})
	r.Group(func(priv chi.Router) {
		priv.Use(h.authn.Middleware)
		priv.Post("/logout", h.handleLogout)
		priv.Get("/user", h.handleCurrentUser)
	})
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,max=256"`
}

type loginResponse struct {
	Message   string    `json:"message"`
	User      *Identity `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if fields, err := httpx.Bind(r, &req); err != nil {
		httpx.RespondBindError(w, fields, err)
		return
	}
	result, err := h.service.Login(r.Context(), req.Username, req.Password, RequestMeta(r))
	if err != nil {
		if !errors.Is(err, shared.ErrInvalidCredentials) {
			h.logger.Error("login", slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("login",
		slog.Int64("identity_id", result.Identity.ID),
		slog.String("session_id", result.Session.ID))
	httpx.JSON(w, http.StatusOK, loginResponse{
		Message:   "Login successful",
		User:      result.Identity,
		Token:     result.Session.Token,
		ExpiresAt: result.Session.ExpiresAt,
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.CheckContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Logout(r.Context(), p.ID, p.Token, RequestMeta(r)); err != nil {
		h.logger.Error("logout", slog.String("session_id", p.SessionID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Logout successful"})
}

func (h *Handler) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	p, err := rbac.CheckContext(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"user": p})
}

// RequestMeta captures the client address and agent of r.
func RequestMeta(r *http.Request) session.Meta {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		ip = r.RemoteAddr
	}
	return session.Meta{IP: ip, UserAgent: r.UserAgent()}
}
