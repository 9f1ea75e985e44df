package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mkrecak/backstage/internal/auth"
)

type contextKey string

const IdentityKey contextKey = "identity"

// Auth authenticates the bearer token through the identity collaborator
// and puts the resolved identity on the request context.
func Auth(verifier auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				writeUnauthorized(w, "Missing or invalid token")
				return
			}

			identity, err := verifier.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Internal guards the internal trigger surface with a shared service token.
func Internal(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("X-Internal-Token")
			if got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeUnauthorized(w, "Invalid service token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIdentity extracts the authenticated identity from the request context.
func GetIdentity(ctx context.Context) uuid.UUID {
	return ctx.Value(IdentityKey).(uuid.UUID)
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":{"code":"UNAUTHORIZED","message":"` + message + `"}}`))
}
