// Package middleware contains HTTP middleware shared by the identity service.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/mintmojito-lite/sovereign-identity-layer/pkg/jwt"
)

// ContextKey is used for storing values in context
type ContextKey string

// SessionClaimsKey is the context key for verified access token claims
const SessionClaimsKey ContextKey = "session_claims"

// SessionValidator reports whether a session is still live.
type SessionValidator interface {
	Validate(ctx context.Context, userID, tokenID string) bool
}

// RequireSession authenticates requests with a bearer access token and then
// checks that the session the token names is still live, so revoking the
// session cuts off the token before its own expiry.
func RequireSession(verifier jwt.TokenVerifier, expectedAudience string, sessions SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				w.Header().Set("WWW-Authenticate", `Bearer realm="zkid"`)
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			claims, err := verifier.Verify(token, expectedAudience)
			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				http.Error(w, "invalid access token", http.StatusUnauthorized)
				return
			}

			if !sessions.Validate(r.Context(), claims.UserID(), claims.TokenID()) {
				w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
				http.Error(w, "session is no longer active", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), SessionClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSessionClaims extracts verified claims from request context
func GetSessionClaims(r *http.Request) (*jwt.Claims, bool) {
	claims, ok := r.Context().Value(SessionClaimsKey).(*jwt.Claims)
	return claims, ok
}

// RequireScheme ensures the session was established with the given proof scheme.
func RequireScheme(expectedScheme string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := GetSessionClaims(r)
			if !ok {
				http.Error(w, "session claims required", http.StatusInternalServerError)
				return
			}

			if claims.ZK == nil || claims.ZK.Scheme != expectedScheme {
				http.Error(w, "session was not established with scheme "+expectedScheme, http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// CORS middleware for development
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	const bearerPrefix = "Bearer "

	authHeader := r.Header.Get("Authorization")
	if len(authHeader) <= len(bearerPrefix) || !strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}

	token := strings.TrimSpace(authHeader[len(bearerPrefix):])
	return token, token != ""
}
