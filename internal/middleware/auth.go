package middleware

import (
	"app/internal/logger"
	"app/internal/util"
	"context"
	"net/http"
	"strings"
)

// Injected key type to avoid context collisions
type contextKey string

const IdentityContextKey = contextKey("identity")

// GuestIDHeader carries a client-generated session ID for callers
// without an account. Guest identities are namespaced so they can never
// collide with real user IDs.
const GuestIDHeader = "X-Guest-ID"

// Identity is the resolved caller placed in the request context.
type Identity struct {
	UserID      string
	IsAnonymous bool
}

// IdentityFromContext extracts the caller identity set by IdentityMiddleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(IdentityContextKey).(Identity)
	return id, ok
}

// IdentityMiddleware resolves the caller: a valid bearer token yields an
// authenticated identity, otherwise a guest header yields an anonymous
// one. Requests with neither are rejected.
func IdentityMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := logger.New()
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				guestID := r.Header.Get(GuestIDHeader)
				if guestID == "" {
					http.Error(w, "Authorization header missing", http.StatusUnauthorized)
					return
				}
				identity := Identity{UserID: "guest:" + guestID, IsAnonymous: true}
				ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				logger.Error().Msg("Invalid authorization header")
				http.Error(w, "Invalid authorization header", http.StatusUnauthorized)
				return
			}
			claims, err := util.ValidateJWT(parts[1], jwtSecret)
			if err != nil {
				logger.Error().Msgf("Invalid token: %+v", err)
				http.Error(w, "Invalid token: "+err.Error(), http.StatusUnauthorized)
				return
			}
			identity := Identity{UserID: claims.Subject}
			ctx := context.WithValue(r.Context(), IdentityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireUser rejects anonymous callers. It must run after
// IdentityMiddleware.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if identity.IsAnonymous {
			http.Error(w, "account required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
