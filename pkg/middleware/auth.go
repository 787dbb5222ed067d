package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"clinic-booking/internal/usecase"
	"clinic-booking/pkg/utils"

	"go.uber.org/zap"
)

// Authenticator resolves a session token to the calling actor.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (utils.Actor, error)
}

// AuthSession validates the opaque session token from the Authorization
// header and stores the actor and token in the request context.
func AuthSession(auth Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				utils.ResponseUnauthorized(w, "Missing authorization token")
				return
			}

			token, found := strings.CutPrefix(authHeader, "Bearer ")
			token = strings.TrimSpace(token)
			if !found || token == "" {
				utils.ResponseUnauthorized(w, "Invalid token format. Use: Bearer <token>")
				return
			}

			actor, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, usecase.ErrUnauthorized) {
					logger.Debug("Rejected session", zap.Error(err))
					utils.ResponseUnauthorized(w, "Invalid or expired session")
					return
				}
				logger.Error("Failed to validate session", zap.Error(err))
				utils.ResponseInternalError(w, "Internal server error")
				return
			}

			ctx := utils.SetUserContext(r.Context(), actor.UserID, actor.Role)
			ctx = utils.SetTokenContext(ctx, token)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Admin rejects callers whose session does not carry the admin role. It must
// run after AuthSession.
func Admin(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := utils.GetActorFromContext(r.Context())
			if !ok {
				utils.ResponseUnauthorized(w, "Authentication required")
				return
			}

			if !actor.IsAdmin() {
				logger.Warn("Admin check: non-admin access attempt",
					zap.String("user_id", actor.UserID.String()),
					zap.String("path", r.URL.Path))
				utils.ResponseForbidden(w, "Admin access required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
