package middleware

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"promptvault-backend/pkg/api"
	"promptvault-backend/pkg/auth"
)

// Authenticate validates the bearer token and stores the caller's identity in
// the request context. Every engine route is owner-scoped off that identity.
func Authenticate(validator *auth.JWTValidator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := validator.ValidateToken(r.Header.Get("Authorization"))
			if err != nil {
				status := http.StatusUnauthorized
				message := "Invalid authentication token"
				switch {
				case errors.Is(err, auth.ErrMissingToken):
					message = "Missing authentication token"
				case errors.Is(err, auth.ErrExpiredToken):
					message = "Token has expired"
				}

				logger.Debug("rejected request",
					zap.String("request_id", GetRequestIDFromRequest(r)),
					zap.String("path", r.URL.Path),
					zap.Error(err),
				)
				api.Error(w, status, message)
				return
			}

			ctx := auth.SetUserInContext(r.Context(), &auth.UserContext{
				UserID: claims.UserID,
				Email:  claims.Email,
				Roles:  claims.Roles,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
