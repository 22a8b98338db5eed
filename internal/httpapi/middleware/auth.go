// Package middleware provides the bearer-token authentication middleware.
//
// Purpose:
//
//	This package extracts the session token from the Authorization header,
//	resolves it through access control, and stores the authenticated user in
//	the request context for downstream handlers. Every failure is answered
//	with 401 and a short reason; expired, malformed, and vanished-user tokens
//	are distinguished in the reason and in metrics but all remain
//	unauthenticated, never server errors.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/audioreg/audioreg/internal/access"
	"github.com/audioreg/audioreg/internal/httpapi"
	"github.com/audioreg/audioreg/internal/metrics"
	"github.com/audioreg/audioreg/internal/storage/postgres"
	"github.com/audioreg/audioreg/internal/token"
)

type contextKey string

// userKey is the context key for the authenticated user record.
const userKey contextKey = "auth.user"

// RequireAuth creates middleware that validates bearer tokens and stores the
// resolved user in the request context.
func RequireAuth(ctrl *access.Control, logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				metrics.RecordTokenRejected("missing")
				httpapi.WriteError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
				metrics.RecordTokenRejected("missing")
				httpapi.WriteError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			user, err := ctrl.Authenticate(r.Context(), parts[1])
			if err != nil {
				reason, message := classify(err)
				metrics.RecordTokenRejected(reason)
				logger.Debug().Err(err).Str("path", r.URL.Path).Msg("token rejected")
				httpapi.WriteError(w, http.StatusUnauthorized, message)
				return
			}

			ctx := context.WithValue(r.Context(), userKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func classify(err error) (reason, message string) {
	switch {
	case errors.Is(err, token.ErrTokenExpired):
		return "expired", "token expired"
	case errors.Is(err, access.ErrUserVanished):
		return "user_vanished", "user no longer exists"
	default:
		return "malformed", "invalid token"
	}
}

// GetUser extracts the authenticated user from the request context. The
// second return is false when RequireAuth did not run.
func GetUser(ctx context.Context) (postgres.User, bool) {
	user, ok := ctx.Value(userKey).(postgres.User)
	return user, ok
}
