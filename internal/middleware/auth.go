package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/vishwas4859/Ai-Invoice-Generator/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// UserIDKey is the context key for storing the authenticated owner ID.
	UserIDKey contextKey = "user_id"
	// EmailKey is the context key for storing the authenticated user's email.
	EmailKey contextKey = "email"
)

// GetUserID extracts the user ID from the context.
// Returns empty string if not found.
func GetUserID(ctx context.Context) string {
	userID, _ := ctx.Value(UserIDKey).(string)
	return userID
}

// GetEmail extracts the user email from the context.
// Returns empty string if not found.
func GetEmail(ctx context.Context) string {
	email, _ := ctx.Value(EmailKey).(string)
	return email
}

// WithUserID returns a copy of ctx carrying userID.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// RequireAuth returns a middleware that validates bearer tokens and requires authentication.
// It extracts the token from the Authorization header, validates it, and adds
// the owner ID and email to the request context.
func RequireAuth(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, r, auth.ErrMissingToken)
				return
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tokenString) == "" {
				unauthorized(w, r, auth.ErrInvalidToken)
				return
			}

			claims, err := jwtManager.Validate(strings.TrimSpace(tokenString))
			if err != nil {
				unauthorized(w, r, auth.ErrInvalidToken)
				return
			}

			ctx := WithUserID(r.Context(), claims.Owner())
			ctx = context.WithValue(ctx, EmailKey, claims.Email)
			if rec, ok := w.(*statusRecorder); ok {
				rec.userID = claims.Owner()
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success": false,
		"message": err.Error(),
	})
}
