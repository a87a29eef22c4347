// Package auth verifies the bearer tokens that callers present to operations.
// Tokens are HS256 JWTs minted by JWTManager (see `opsgate token`).
package auth

import (
	"context"
)

// Claims represents the verified identity behind a token
type Claims struct {
	UserID string `json:"uid"`
	Email  string `json:"email"`
}

// Identity returns the identity handed to operation bodies: the email
// claim, falling back to the user id.
func (c *Claims) Identity() string {
	if c == nil {
		return ""
	}
	if c.Email != "" {
		return c.Email
	}
	return c.UserID
}

// Verifier verifies a raw bearer token
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// UserContextKey is the context key for the authenticated user claims
	UserContextKey contextKey = "auth_user"
)

// WithClaims returns a context carrying claims
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

// UserFromContext extracts authenticated user claims from request context
func UserFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(UserContextKey).(*Claims)
	return claims
}
