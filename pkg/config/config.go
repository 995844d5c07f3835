package config

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// Token Expiration Durations
	AccessTokenDuration  = 15 * time.Minute
	RefreshTokenDuration = 7 * 24 * time.Hour

	// Context Keys
	UserClaimKey = "user_claims"
)

// Roles carried in the access token. The engine treats role as an
// external fact supplied by the auth surface.
const (
	RoleUser       = "user"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "superadmin"
	RoleSystem     = "system"
)

// UserClaims is the payload for the Access Token
type UserClaims struct {
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
	jwt.RegisteredClaims
}

// RefreshClaims is the payload for the Refresh token
type RefreshClaims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// IsAdminTier reports whether the role may change system settings.
func IsAdminTier(role string) bool {
	return role == RoleAdmin || role == RoleSuperAdmin
}
