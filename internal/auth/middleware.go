package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/palisadeauth/palisade/internal/models"
	pkgauth "github.com/palisadeauth/palisade/pkg/auth"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// ServiceContextKey is the key for storing service claims in context
	ServiceContextKey contextKey = "service"
)

// ServiceAuthMiddleware validates service bearer tokens and injects the
// caller's claims into the request context
func ServiceAuthMiddleware(tm *TokenManager) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(parts[1])
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ServiceContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminKeyMiddleware guards the administrative endpoints with a
// pre-shared key, verified against its bcrypt hash. The hash lives in
// configuration; the key itself is never stored.
func AdminKeyMiddleware(adminKeyHash string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminKeyHash == "" {
				http.Error(w, "administrative endpoints are not configured", http.StatusForbidden)
				return
			}

			key := r.Header.Get("X-Admin-Key")
			if key == "" {
				http.Error(w, "missing admin key", http.StatusUnauthorized)
				return
			}

			if err := pkgauth.CompareAPIKey(adminKeyHash, key); err != nil {
				http.Error(w, "invalid admin key", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetServiceFromContext extracts service claims from request context
func GetServiceFromContext(r *http.Request) *models.ServiceClaims {
	claims, ok := r.Context().Value(ServiceContextKey).(*models.ServiceClaims)
	if !ok {
		return nil
	}
	return claims
}
