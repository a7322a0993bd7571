package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	sharedutils "github.com/booklane/library-backend/shared/utils"
	"github.com/booklane/library-backend/v1/models"
	authutils "github.com/booklane/library-backend/v1/utils"
)

// JWTAuthConfig contains configuration for JWT authentication
type JWTAuthConfig struct {
	Secret   []byte
	Issuer   string
	TokenTTL time.Duration
}

// Validate checks the configuration before the middleware is constructed
func (c JWTAuthConfig) Validate() error {
	if len(c.Secret) == 0 {
		return fmt.Errorf("JWT secret must not be empty")
	}
	return nil
}

// JWTAuthMiddleware validates session tokens minted at login
type JWTAuthMiddleware struct {
	secret []byte
	issuer string
}

// NewJWTAuthMiddleware creates a new JWT authentication middleware
func NewJWTAuthMiddleware(config JWTAuthConfig) *JWTAuthMiddleware {
	return &JWTAuthMiddleware{
		secret: config.Secret,
		issuer: config.Issuer,
	}
}

// publicPaths bypass authentication entirely
var publicPaths = map[string]bool{
	"/":          true,
	"/register/": true,
	"/login/":    true,
	"/logout/":   true,
	"/health":    true,
	"/metrics":   true,
}

// AuthenticateJWT returns a middleware function that validates session tokens
// and places the resulting identity into the request context. Handlers receive
// the current user explicitly through the context, never from ambient state.
func (j *JWTAuthMiddleware) AuthenticateJWT(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if j.shouldSkipAuth(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		tokenString, err := authutils.ExtractBearerToken(r)
		if err != nil {
			slog.Warn("Failed to extract bearer token", "error", err, "path", r.URL.Path, "method", r.Method)
			sharedutils.RespondWithError(w, http.StatusUnauthorized, "Invalid or missing authorization header")
			return
		}

		user, err := j.validateToken(tokenString)
		if err != nil {
			slog.Warn("Token validation failed", "error", err, "path", r.URL.Path, "method", r.Method)
			sharedutils.RespondWithError(w, http.StatusUnauthorized, "Invalid access token")
			return
		}

		if user.IsTokenExpired() {
			slog.Warn("Token is expired", "expiry", user.ExpiresAt, "user", user.Username)
			sharedutils.RespondWithError(w, http.StatusUnauthorized, "Access token has expired")
			return
		}

		ctx := authutils.SetAuthenticatedUser(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// MintToken creates a signed session token for the given user and profile role
func (j *JWTAuthMiddleware) MintToken(userID uint, username string, role models.Role, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := models.SessionClaims{
		Username: username,
		Role:     role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(uint64(userID), 10),
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.secret)
}

func (j *JWTAuthMiddleware) validateToken(tokenString string) (*models.AuthenticatedUser, error) {
	claims := &models.SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return j.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}

	if j.issuer != "" && claims.Issuer != j.issuer {
		return nil, fmt.Errorf("unexpected issuer: %s", claims.Issuer)
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid subject claim: %w", err)
	}

	role := models.Role(claims.Role)
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid role claim: %s", claims.Role)
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}

	return &models.AuthenticatedUser{
		UserID:    uint(userID),
		Username:  claims.Username,
		Role:      role,
		ExpiresAt: expiresAt,
	}, nil
}

func (j *JWTAuthMiddleware) shouldSkipAuth(path string) bool {
	return publicPaths[path]
}
