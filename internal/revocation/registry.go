// Package revocation keeps the access token deny-list. An access token is admitted only if it
// verifies and its jti is not in the registry; entries expire together with the token they revoke.
package revocation

import (
	"context"
	"time"

	"credential-lifecycle/backend/internal/kvstore"
	"credential-lifecycle/backend/internal/logging"
	"credential-lifecycle/backend/internal/security"
)

// KeyPrefix is prepended to the jti to form the store key.
const KeyPrefix = "blacklist_token:"

// Verifier checks signature, structure and expiry of an access token without consulting revocation.
type Verifier interface {
	Verify(token string) (*security.AccessClaims, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithEnabled turns the registry on or off. When off, Revoke reports success without writing and
// IsRevoked always reports false.
func WithEnabled(enabled bool) Option {
	return func(r *Registry) { r.enabled = enabled }
}

// WithClock sets the time source used to compute remaining token lifetime.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.nowF = now }
}

// WithLogger sets the logger. Defaults to logging.Nop().
func WithLogger(log logging.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// Registry records revoked access tokens by jti in a kvstore.Store.
type Registry struct {
	store    kvstore.Store
	verifier Verifier
	enabled  bool
	nowF     func() time.Time
	log      logging.Logger
}

// NewRegistry returns an enabled Registry.
func NewRegistry(store kvstore.Store, verifier Verifier, opts ...Option) *Registry {
	r := &Registry{
		store:    store,
		verifier: verifier,
		enabled:  true,
		nowF:     time.Now,
		log:      logging.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Enabled reports whether revocation is active.
func (r *Registry) Enabled() bool { return r.enabled }

// Revoke deny-lists token until its exp. It returns false without error when the token does not
// verify, carries no jti, or has no lifetime left; nothing is written in those cases. A store
// failure is returned as an error wrapping fault.ErrUnavailable.
func (r *Registry) Revoke(ctx context.Context, token string) (bool, error) {
	if !r.enabled {
		return true, nil
	}
	claims, err := r.verifier.Verify(token)
	if err != nil {
		return false, nil
	}
	if claims.Kind() == security.LegacyToken {
		return false, nil
	}
	ttl := claims.RemainingTTL(r.nowF())
	if ttl <= 0 {
		return false, nil
	}
	if err := r.store.Set(ctx, KeyPrefix+claims.ID, "1", ttl); err != nil {
		r.log.Error(ctx, "revoke access token", "jti", claims.ID, "error", err)
		return false, err
	}
	return true, nil
}

// IsRevoked reports whether claims belong to a revoked token. Legacy tokens are never revoked.
func (r *Registry) IsRevoked(ctx context.Context, claims *security.AccessClaims) (bool, error) {
	if !r.enabled || claims == nil || claims.Kind() == security.LegacyToken {
		return false, nil
	}
	_, found, err := r.store.Get(ctx, KeyPrefix+claims.ID)
	if err != nil {
		return false, err
	}
	return found, nil
}
