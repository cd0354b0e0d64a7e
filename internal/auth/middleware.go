package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

type ctxKey string

const userIDKey ctxKey = "user_id"

type Middleware struct {
	secret []byte
}

func New(secret []byte) Middleware {
	return Middleware{secret: secret}
}

// Wrap rejects requests without a valid bearer token.
func (m Middleware) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if len(m.secret) == 0 {
			unauthorized(w, "authentication is not configured")
			return
		}
		tokenString, ok := bearer(r)
		if !ok {
			unauthorized(w, "missing token")
			return
		}

		userID, err := ParseToken(m.secret, tokenString)
		if err != nil {
			unauthorized(w, "invalid token")
			return
		}

		next(w, r.WithContext(WithUserID(r.Context(), userID)))
	}
}

// Optional attaches the user when a valid token is present and otherwise
// serves the request anonymously.
func (m Middleware) Optional(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if tokenString, ok := bearer(r); ok && len(m.secret) > 0 {
			if userID, err := ParseToken(m.secret, tokenString); err == nil {
				r = r.WithContext(WithUserID(r.Context(), userID))
			}
		}
		next(w, r)
	}
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func UserIDFromContext(ctx context.Context) (string, bool) {
	uid, ok := ctx.Value(userIDKey).(string)
	return uid, ok && uid != ""
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if !strings.HasPrefix(h, "Bearer ") {
		return "", false
	}
	t := strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	return t, t != ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": msg})
}
