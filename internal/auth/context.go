// ABOUTME: Request context helpers for verified claim sets
// ABOUTME: The admission gate stores claims here so handlers never re-parse tokens

package auth

import (
	"context"
)

// claimsContextKey is the key type for storing a ClaimSet in context.Context.
type claimsContextKey struct{}

// WithClaims returns a new context with the verified claims attached.
func WithClaims(ctx context.Context, claims ClaimSet) context.Context {
	return context.WithValue(ctx, claimsContextKey{}, claims)
}

// ClaimsFromContext retrieves the verified claims, reporting whether they were present.
func ClaimsFromContext(ctx context.Context) (ClaimSet, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(ClaimSet)
	return claims, ok
}

// MustClaimsFromContext retrieves the verified claims, panicking if not present.
// Only call it from handlers mounted behind the gate on protected paths.
func MustClaimsFromContext(ctx context.Context) ClaimSet {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		panic("auth: ClaimSet not found in context")
	}
	return claims
}
