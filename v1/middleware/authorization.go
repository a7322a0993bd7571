package middleware

import (
	"log/slog"
	"net/http"

	sharedutils "github.com/booklane/library-backend/shared/utils"
	"github.com/booklane/library-backend/v1/models"
	authutils "github.com/booklane/library-backend/v1/utils"
)

// AuthorizationConfig configures the authorization middleware behavior
type AuthorizationConfig struct {
	// Mode defines the behavior when no explicit role set is declared for an endpoint
	Mode models.AuthorizationMode
}

// AuthorizationMiddleware provides flat, per-endpoint role-based access control.
// The check is plain set membership against the declared role table; a Librarian
// is not implicitly granted Member endpoints or vice versa.
type AuthorizationMiddleware struct {
	config AuthorizationConfig
}

// NewAuthorizationMiddleware creates a new authorization middleware with default configuration
func NewAuthorizationMiddleware() *AuthorizationMiddleware {
	return NewAuthorizationMiddlewareWithConfig(AuthorizationConfig{
		Mode: models.AuthorizationModeFailClosed,
	})
}

// NewAuthorizationMiddlewareWithConfig creates a new authorization middleware with custom configuration
func NewAuthorizationMiddlewareWithConfig(config AuthorizationConfig) *AuthorizationMiddleware {
	return &AuthorizationMiddleware{config: config}
}

// AuthorizeRequest returns a middleware function that checks the member's role
// against the explicit role set declared for the endpoint
func (a *AuthorizationMiddleware) AuthorizeRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if publicPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		user, err := authutils.RequireAuthentication(r)
		if err != nil {
			slog.Warn("Authorization failed: user not authenticated", "path", r.URL.Path, "method", r.Method, "error", err)
			sharedutils.RespondWithError(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		endpoint, found := models.FindEndpointRoles(r.Method, r.URL.Path)
		if !found {
			if a.handleUndefinedEndpoint(w, r, user) {
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if !user.Role.In(endpoint.Roles) {
			slog.Warn("Access denied: role not in endpoint role set",
				"user", user.Username,
				"role", user.Role,
				"path", r.URL.Path,
				"method", r.Method)
			sharedutils.RespondWithError(w, http.StatusForbidden, "You are not allowed")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleUndefinedEndpoint applies the configured mode to endpoints with no
// declared role set. Returns true when a response was sent.
func (a *AuthorizationMiddleware) handleUndefinedEndpoint(w http.ResponseWriter, r *http.Request, user *models.AuthenticatedUser) bool {
	switch a.config.Mode {
	case models.AuthorizationModeFailOpenAdmin:
		if user.Role == models.RoleAdmin {
			return false
		}
	}

	slog.Warn("Access denied: no role set declared for endpoint",
		"mode", a.config.Mode,
		"user", user.Username,
		"role", user.Role,
		"path", r.URL.Path,
		"method", r.Method)
	sharedutils.RespondWithError(w, http.StatusForbidden, "You are not allowed")
	return true
}
