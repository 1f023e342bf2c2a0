package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/BHSajuu/Note-Taking-web-applications/internal/httputil"
	"github.com/google/uuid"
)

type contextKey string

// IdentityIDKey is the context key for the authenticated identity ID.
const IdentityIDKey contextKey = "identity_id"

// TokenValidator resolves a session token to the identity it was issued for.
type TokenValidator interface {
	IdentityIDFromToken(token string) (uuid.UUID, error)
}

// Auth creates middleware that requires a valid bearer session token.
func Auth(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString := bearerToken(r)
			if tokenString == "" {
				httputil.Error(w, http.StatusUnauthorized, "Not authorized, no token")
				return
			}

			identityID, err := tokens.IdentityIDFromToken(tokenString)
			if err != nil {
				httputil.Error(w, http.StatusUnauthorized, "Not authorized, token failed")
				return
			}

			ctx := context.WithValue(r.Context(), IdentityIDKey, identityID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// GetIdentityID extracts the identity ID from the request context.
func GetIdentityID(ctx context.Context) (uuid.UUID, bool) {
	identityID, ok := ctx.Value(IdentityIDKey).(uuid.UUID)
	return identityID, ok
}
