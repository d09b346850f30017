package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenClaims represents the typed JWT issued to clients by the
// identity service. The payments core only consumes it.
type AccessTokenClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email,omitempty"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token carries back-office privileges.
func (c *AccessTokenClaims) IsAdmin() bool {
	return c != nil && c.Role == "admin"
}
