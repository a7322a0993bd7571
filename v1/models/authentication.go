package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AuthenticatedUser represents the identity established by the JWT middleware.
// It is passed explicitly through the request context; operations never read
// the current user from ambient state.
type AuthenticatedUser struct {
	UserID    uint
	Username  string
	Role      Role
	ExpiresAt time.Time
}

// HasAnyRole checks if the user's role is in the given set
func (u *AuthenticatedUser) HasAnyRole(roles ...Role) bool {
	return u.Role.In(roles)
}

// IsTokenExpired checks whether the token backing this identity has expired
func (u *AuthenticatedUser) IsTokenExpired() bool {
	return !u.ExpiresAt.IsZero() && time.Now().After(u.ExpiresAt)
}

// SessionClaims are the JWT claims minted at login and validated per request
type SessionClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}
