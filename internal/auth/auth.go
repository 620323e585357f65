// Package auth validates the bearer tokens the player sends with engagement calls.
// Tokens are issued by the account service; reelfeed only verifies them.
package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/reelfeed/reelfeed/internal/httputil"
)

type contextKey string

const userIDKey contextKey = "userID"

type Handler struct {
	jwtSecret string
}

func NewHandler(jwtSecret string) *Handler {
	return &Handler{jwtSecret: jwtSecret}
}

// Middleware rejects requests without a valid access token.
func (h *Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			httputil.WriteError(w, http.StatusUnauthorized, "authorization header required")
			return
		}

		tokenStr, found := strings.CutPrefix(authHeader, "Bearer ")
		if !found {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := ValidateToken(h.jwtSecret, tokenStr)
		if err != nil {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		if !claims.isAccess() {
			httputil.WriteError(w, http.StatusUnauthorized, "invalid token type")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalMiddleware attaches the user when a valid access token is present and
// lets anonymous requests through otherwise. A bad token is treated as anonymous.
func (h *Handler) OptionalMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokenStr, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !found || tokenStr == "" {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := ValidateToken(h.jwtSecret, tokenStr)
		if err != nil || !claims.isAccess() {
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func UserIDFromContext(ctx context.Context) string {
	userID, _ := ctx.Value(userIDKey).(string)
	return userID
}

// ContextWithUserID is used by tests and by handlers that act on behalf of a user.
func ContextWithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
