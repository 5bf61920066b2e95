package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/staffdir/staffdir/internal/observability"
	"github.com/staffdir/staffdir/internal/platform/httpx"
	"github.com/staffdir/staffdir/internal/rbac"
	"github.com/staffdir/staffdir/internal/session"
	"github.com/staffdir/staffdir/internal/shared"
)

// SessionResolver maps a bearer token to its live session.
type SessionResolver interface {
	Resolve(ctx context.Context, token string) (session.Session, error)
}

// IdentityFinder loads the owner of a session.
type IdentityFinder interface {
	FindByID(ctx context.Context, id int64) (*Identity, error)
}

// Authenticator turns an Authorization header into a Principal.
type Authenticator struct {
	sessions   SessionResolver
	identities IdentityFinder
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(sessions SessionResolver, identities IdentityFinder, logger *slog.Logger, metrics *observability.Metrics) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{sessions: sessions, identities: identities, logger: logger, metrics: metrics}
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Authenticate resolves header into a Principal. Every rejection is
// shared.ErrUnauthenticated; infrastructure failures are returned as is.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (rbac.Principal, error) {
	token, ok := BearerToken(header)
	if !ok {
		return rbac.Principal{}, shared.ErrUnauthenticated
	}
	sess, err := a.sessions.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) || errors.Is(err, session.ErrExpired) || errors.Is(err, session.ErrMalformedToken) {
			return rbac.Principal{}, shared.ErrUnauthenticated
		}
		return rbac.Principal{}, err
	}
	identity, err := a.identities.FindByID(ctx, sess.IdentityID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			a.logger.Warn("session owner missing", slog.String("session_id", sess.ID), slog.Int64("identity_id", sess.IdentityID))
			return rbac.Principal{}, shared.ErrUnauthenticated
		}
		return rbac.Principal{}, err
	}
	if !identity.IsActive {
		return rbac.Principal{}, shared.ErrUnauthenticated
	}
	p := identity.Principal()
	p.SessionID = sess.ID
	p.Token = token
	return p, nil
}

// Middleware rejects requests without a valid bearer session and stores
// the principal in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := a.Authenticate(r.Context(), r.Header.Get("Authorization"))
		if err != nil {
			if errors.Is(err, shared.ErrUnauthenticated) {
				a.metrics.AuthnRejected()
			} else {
				a.logger.Error("authenticate request", slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(rbac.ContextWithPrincipal(r.Context(), p)))
	})
}
