package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"my-chat-backend/domain"
	"my-chat-backend/errors"
)

type contextKey string

const userIDKey contextKey = "user_id"

// CookieName is the cookie set by the web client after login.
const CookieName = "jwt"

func WithUserID(ctx context.Context, id domain.UserID) context.Context {
	return context.WithValue(ctx, userIDKey, id)
}

// UserIDFrom returns the authenticated user injected by Middleware.
func UserIDFrom(ctx context.Context) (domain.UserID, bool) {
	id, ok := ctx.Value(userIDKey).(domain.UserID)
	return id, ok && id != ""
}

// TokenFromRequest looks for a token in the Authorization header, then the
// token query parameter used by socket clients, then the jwt cookie.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if cookie, err := r.Cookie(CookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// Middleware rejects requests without a valid token with 401 and injects
// the user id into the request context otherwise.
func Middleware(tokens *Tokens, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := TokenFromRequest(r)
			if raw == "" {
				http.Error(w, errors.ErrInvalidToken.Error(), http.StatusUnauthorized)
				return
			}
			userID, err := tokens.Validate(raw)
			if err != nil {
				log.Debug("Request rejected", "path", r.URL.Path, "error", err)
				http.Error(w, errors.ErrInvalidToken.Error(), http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}
