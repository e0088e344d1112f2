// Package kvstore provides the keyed, expiring store that holds revocation entries, refresh token
// records and escrowed credentials. Every operation is atomic for a single key; there are no
// multi-key transactions.
package kvstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"credential-lifecycle/backend/internal/platform/fault"
)

var (
	// ErrUnavailable wraps backing-store failures. Callers classify with errors.Is(err, fault.ErrUnavailable).
	ErrUnavailable = fmt.Errorf("%w: key-value store", fault.ErrUnavailable)
	// ErrInvalidTTL is returned by Set for a zero or negative ttl.
	ErrInvalidTTL = errors.New("kvstore: ttl must be positive")
)

// Store is a string key-value store with per-key expiry.
type Store interface {
	// Set writes value under key, replacing any previous value, and expires it after ttl.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get returns the value for key. found is false if the key is absent or expired.
	Get(ctx context.Context, key string) (value string, found bool, err error)
	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (existed bool, err error)
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrUnavailable, op, err)
}
