package middleware

import (
	"context"
	"net/http"
	"strings"

	"ai_orchestrator/internal/auth"
	"ai_orchestrator/internal/utils"
)

// ContextKey defines the type for context keys to avoid conflicts
type ContextKey string

// CallerClaimsKey is the context key for the authenticated caller
const CallerClaimsKey ContextKey = "callerClaims"

// CallerJWTMiddleware validates caller JWT tokens and stores the claims in
// the request context
func CallerJWTMiddleware(secret []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := r.Header.Get("Authorization")
			if tokenString == "" {
				utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
				return
			}
			tokenString = strings.TrimSpace(strings.TrimPrefix(tokenString, "Bearer "))

			claims, err := auth.ValidateCallerJWT(tokenString, secret)
			if err != nil {
				utils.RespondWithError(w, http.StatusUnauthorized, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), CallerClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePlatformAdmin rejects callers without the platform admin claim.
// It must run after CallerJWTMiddleware.
func RequirePlatformAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := GetCallerClaims(r.Context())
		if !ok {
			utils.RespondWithError(w, http.StatusUnauthorized, "Missing authentication token")
			return
		}
		if !claims.PlatformAdmin {
			utils.RespondWithError(w, http.StatusForbidden, "Insufficient permissions")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetCallerClaims retrieves the caller claims from the request context
func GetCallerClaims(ctx context.Context) (*auth.CallerClaims, bool) {
	claims, ok := ctx.Value(CallerClaimsKey).(*auth.CallerClaims)
	return claims, ok
}
