package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sakif/recipe-api/internal/apperror"
	"github.com/sakif/recipe-api/internal/model"
)

// contextKey is an unexported type used for context keys in this package,
// so no other package can read or shadow the values stored here.
type contextKey string

const userIDKey contextKey = "userID"

// TokenCookie is the cookie consulted when no Authorization header is sent.
const TokenCookie = "token"

// UserLookup resolves the subject of a validated token to a stored user.
// *service.UserService satisfies it.
type UserLookup interface {
	GetUserByID(ctx context.Context, id int64) (*model.User, error)
}

// RequireAuth is a middleware that enforces authentication on protected routes.
//
// It accepts the credential in any of these forms, checked in order:
//
//	Authorization: Bearer <jwt>
//	Authorization: Token <jwt>
//	Cookie: token=<jwt>
//
// The token must validate AND its subject must be an existing, active user.
// On success the user ID is stored in the request context; otherwise the
// request is answered with 401 and never reaches the handler.
func RequireAuth(tokens *TokenService, users UserLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractToken(r)
			if raw == "" {
				unauthorized(w, "authentication credentials were not provided")
				return
			}

			userID, err := tokens.Validate(raw)
			if err != nil {
				logger.Debug("rejected token", slog.String("error", err.Error()))
				unauthorized(w, "invalid token")
				return
			}

			user, err := users.GetUserByID(r.Context(), userID)
			switch {
			case errors.Is(err, apperror.ErrNotFound):
				unauthorized(w, "user inactive or deleted")
				return
			case err != nil:
				logger.Error("auth: loading user",
					slog.Int64("userID", userID),
					slog.String("error", err.Error()),
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"internal_error","message":"An internal error occurred"}`))
				return
			case !user.IsActive:
				unauthorized(w, "user inactive or deleted")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUserID(r.Context(), user.ID)))
		})
	}
}

// ContextWithUserID returns a copy of ctx carrying the authenticated user ID.
// RequireAuth uses it; tests use it to call handlers directly.
func ContextWithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
//
// Returns (0, false) if the request did not pass through RequireAuth.
//
//	userID, ok := auth.UserIDFromContext(r.Context())
func UserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(userIDKey).(int64)
	return id, ok && id > 0
}

// extractToken returns the raw token from the Authorization header or the
// token cookie, or "" if neither carries one.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, value, found := strings.Cut(header, " ")
		if !found {
			return ""
		}
		switch strings.ToLower(scheme) {
		case "bearer", "token":
			return strings.TrimSpace(value)
		default:
			return ""
		}
	}

	if cookie, err := r.Cookie(TokenCookie); err == nil {
		return cookie.Value
	}
	return ""
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"` + message + `"}`))
}
