package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/dentacare/clinic-portal/internal/auth"
	"github.com/dentacare/clinic-portal/internal/http/respond"
	"github.com/dentacare/clinic-portal/pkg/logging"
)

// AdminAuthorizer resolves a bearer token to an admin session.
type AdminAuthorizer interface {
	RequireAdmin(ctx context.Context, token string) (*auth.Session, error)
}

// AdminSession only lets requests with an admin session through. A valid
// session without the admin role is signed out by the authorizer and gets
// 403 "access denied".
func AdminSession(authz AdminAuthorizer, logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r)
			if token == "" {
				respond.Error(w, http.StatusUnauthorized, "missing authorization header")
				return
			}
			sess, err := authz.RequireAdmin(r.Context(), token)
			switch {
			case errors.Is(err, auth.ErrAccessDenied):
				respond.Error(w, http.StatusForbidden, auth.ErrAccessDenied.Error())
				return
			case errors.Is(err, auth.ErrInvalidToken):
				respond.Error(w, http.StatusUnauthorized, err.Error())
				return
			case err != nil:
				logger.Error("admin session check failed", "error", err)
				respond.Error(w, http.StatusBadGateway, "authentication unavailable")
				return
			}
			next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), sess)))
		})
	}
}
