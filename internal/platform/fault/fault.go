// Package fault defines the error kinds shared by the credential lifecycle packages.
// Package-level sentinel errors wrap one of these kinds so callers (HTTP handlers, consumers)
// can classify a failure with errors.Is without knowing which package produced it.
package fault

import "errors"

var (
	// ErrInvalid marks a malformed, expired or unverifiable token or record.
	ErrInvalid = errors.New("invalid")
	// ErrUnauthorized marks a failed credential or token check. Never carries detail to the client.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrConflict marks a duplicate identity field (username, email, remote user id).
	ErrConflict = errors.New("conflict")
	// ErrUnavailable marks an unreachable key-value store, database or broker.
	ErrUnavailable = errors.New("unavailable")
	// ErrSagaAbandoned marks a registration completion that arrived after its escrow entry was gone.
	ErrSagaAbandoned = errors.New("registration saga abandoned")
)

// Kind returns the first fault kind err wraps, or nil if none.
func Kind(err error) error {
	for _, k := range []error{ErrInvalid, ErrUnauthorized, ErrConflict, ErrUnavailable, ErrSagaAbandoned} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
