// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/capitalize-ai/mchat/internal/model"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// IdentityKey is the context key for the verified identity.
	IdentityKey ContextKey = "identity"
	// TokenKey is the context key for the raw bearer token.
	TokenKey ContextKey = "token"
)

// TokenVerifier turns a bearer token into an identity.
type TokenVerifier interface {
	Verify(token string) (*model.Identity, error)
}

// Auth creates bearer token authentication middleware.
func Auth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"error":"missing authorization header"}`, http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				http.Error(w, `{"error":"invalid authorization header format"}`, http.StatusUnauthorized)
				return
			}

			identity, err := verifier.Verify(parts[1])
			if err != nil || identity == nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			setRequestUser(r.Context(), identity.ID)

			ctx := WithIdentity(r.Context(), identity)
			ctx = context.WithValue(ctx, TokenKey, parts[1])

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithIdentity returns a context carrying identity.
func WithIdentity(ctx context.Context, identity *model.Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, identity)
}

// GetIdentity gets the verified identity from context.
func GetIdentity(ctx context.Context) *model.Identity {
	if v, ok := ctx.Value(IdentityKey).(*model.Identity); ok {
		return v
	}
	return nil
}

// GetUserID gets user ID from context.
func GetUserID(ctx context.Context) string {
	if identity := GetIdentity(ctx); identity != nil {
		return identity.ID
	}
	return ""
}

// GetToken gets the raw bearer token from context.
func GetToken(ctx context.Context) string {
	token, _ := ctx.Value(TokenKey).(string)
	return token
}
