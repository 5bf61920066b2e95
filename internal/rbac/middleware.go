package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/staffdir/staffdir/internal/observability"
	"github.com/staffdir/staffdir/internal/platform/httpx"
	"github.com/staffdir/staffdir/internal/shared"
)

// Middleware enforces capabilities for principals resolved by the
// request authenticator. It must be mounted after it.
type Middleware struct {
	Logger  *slog.Logger
	Metrics *observability.Metrics
}

// Check verifies that the principal holds every capability. Callers
// without a principal are unauthenticated; there is no anonymous role.
func Check(p Principal, authenticated bool, caps ...Capability) error {
	if !authenticated || p.ID == 0 {
		return shared.ErrUnauthenticated
	}
	for _, c := range caps {
		if !Allows(p.Role, c) {
			return fmt.Errorf("rbac: %s lacks %s: %w", p.Role, c, shared.ErrForbidden)
		}
	}
	return nil
}

// CheckContext runs Check against the principal stored in ctx.
func CheckContext(ctx context.Context, caps ...Capability) (Principal, error) {
	p, ok := PrincipalFromContext(ctx)
	if err := Check(p, ok, caps...); err != nil {
		return Principal{}, err
	}
	return p, nil
}

// Require ensures the current principal holds all listed capabilities.
func (m Middleware) Require(caps ...Capability) func(http.Handler) http.Handler {
	required := append([]Capability(nil), caps...)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, err := CheckContext(r.Context(), required...); err != nil {
				if m.Logger != nil {
					actor, _ := PrincipalFromContext(r.Context())
					m.Logger.Warn("rbac denied",
						slog.Int64("identity_id", actor.ID),
						slog.String("path", r.URL.Path),
						slog.Any("error", err))
				}
				if errors.Is(err, shared.ErrForbidden) {
					m.Metrics.AuthzDenied()
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
