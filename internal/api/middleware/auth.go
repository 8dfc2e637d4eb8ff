package middleware

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/showfolio/chat/internal/models"
	"github.com/showfolio/chat/internal/store"
)

type contextKey string

const UserContextKey contextKey = "user"

// AuthMiddleware resolves session tokens to users. Tokens are opaque; only
// their SHA-256 digest is stored, so a leaked sessions table cannot be
// replayed.
type AuthMiddleware struct {
	store store.DataStore
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(s store.DataStore) *AuthMiddleware {
	return &AuthMiddleware{store: s}
}

// RequireAuth verifies the bearer session token and hangs the user on the
// request context. Messaging is entirely unavailable without a user.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			jsonError(w, http.StatusUnauthorized, "authentication required")
			return
		}

		user, err := m.store.GetUserBySession(r.Context(), TokenDigest(token))
		if err != nil {
			jsonError(w, http.StatusServiceUnavailable, "session lookup failed")
			return
		}
		if user == nil {
			jsonError(w, http.StatusUnauthorized, "invalid or expired session")
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken extracts the token from the Authorization header, falling back
// to the query string for the websocket endpoint where browsers cannot set
// headers.
func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}

// TokenDigest returns the hex SHA-256 digest under which a session token is
// stored.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetUserFromContext retrieves the authenticated user from the request context.
func GetUserFromContext(ctx context.Context) *models.User {
	user, ok := ctx.Value(UserContextKey).(*models.User)
	if !ok {
		return nil
	}
	return user
}
