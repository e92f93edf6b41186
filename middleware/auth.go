package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Web2Bizz/atom-dbro-backend-sub000/utils"
)

// Auth requires a valid bearer access token and injects the user id and
// role into the request context.
func Auth(tokens *utils.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				utils.WriteError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			tokenStr := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
			claims, err := tokens.ValidateAccessToken(r.Context(), tokenStr)
			if err != nil {
				if errors.Is(err, utils.ErrTokenExpired) {
					utils.WriteError(w, http.StatusUnauthorized, "Session expired, please log in again")
					return
				}
				utils.WriteError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			userID, ok := utils.ClaimUint(claims, "id")
			if !ok || userID == 0 {
				utils.WriteError(w, http.StatusUnauthorized, "Invalid token")
				return
			}
			role, _ := claims["role"].(string)

			ctx := context.WithValue(r.Context(), utils.UserIDKey, userID)
			ctx = context.WithValue(ctx, utils.UserRoleKey, role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole lets only the listed roles through. It must run after Auth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := utils.GetUserRole(r)
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			utils.WriteError(w, http.StatusForbidden, "Forbidden")
		})
	}
}
