package interceptors

import (
	"context"

	"credential-lifecycle/backend/internal/security"
)

type contextKey struct{ name string }

var claimsKey = contextKey{"access_claims"}

// WithClaims returns a context carrying the admitted access token claims.
// Handlers read them via ClaimsFrom, GetUserID and GetSubject.
func WithClaims(ctx context.Context, claims *security.AccessClaims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFrom returns the claims stored by WithClaims, or nil, false.
func ClaimsFrom(ctx context.Context) (*security.AccessClaims, bool) {
	c, ok := ctx.Value(claimsKey).(*security.AccessClaims)
	return c, ok && c != nil
}

// GetUserID returns the account id (user_id claim) from context and true if set; otherwise "", false.
func GetUserID(ctx context.Context) (string, bool) {
	c, ok := ClaimsFrom(ctx)
	if !ok || c.UserID == "" {
		return "", false
	}
	return c.UserID, true
}

// GetSubject returns the auth-side record id (sub claim) from context and true if set; otherwise "", false.
func GetSubject(ctx context.Context) (string, bool) {
	c, ok := ClaimsFrom(ctx)
	if !ok || c.Subject == "" {
		return "", false
	}
	return c.Subject, true
}
