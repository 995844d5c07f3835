package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/sellio/bidcore/internal/handlers"
	"github.com/sellio/bidcore/pkg/config"
	"github.com/sellio/bidcore/pkg/jwt"
)

func AuthMiddleware(jm jwt.JWTManager) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.Split(authHeader, " ")

			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				handlers.RespondErrorJSON(w, r, http.StatusUnauthorized, handlers.ErrMissingToken.Error(), "Missing token in the Authorization header", nil)
				return
			}
			accessTokenString := parts[1]

			claims, err := jm.ValidateAccessToken(accessTokenString)
			if err != nil {
				handlers.RespondErrorJSON(w, r, http.StatusUnauthorized, handlers.ErrToken.Error(), "Token is either revoked or invalid.", nil)
				return
			}

			ctx := context.WithValue(r.Context(), config.UserClaimKey, claims)
			h.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin gates the admin surface on an admin-tier role claim.
func RequireAdmin(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := handlers.GetUserClaims(r.Context())
		if claims == nil {
			handlers.RespondErrorJSON(w, r, http.StatusUnauthorized, handlers.ErrAuthFailed.Error(), "user claims not found in context", nil)
			return
		}
		if !config.IsAdminTier(claims.Role) {
			handlers.RespondErrorJSON(w, r, http.StatusForbidden, handlers.ErrForbidden.Error(), "Admin role required", nil)
			return
		}
		h.ServeHTTP(w, r)
	})
}
