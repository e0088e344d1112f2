// Package refreshtoken issues opaque refresh tokens backed by the key-value store. A token is valid
// while its record exists and the embedded expiry has not passed. Rotation (revoke old, issue new)
// is done by callers and is not atomic: a crash between the two steps leaves the user logged out.
package refreshtoken

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"credential-lifecycle/backend/internal/kvstore"
	"credential-lifecycle/backend/internal/logging"
	"credential-lifecycle/backend/internal/platform/fault"
	"credential-lifecycle/backend/internal/security"
)

// KeyPrefix is prepended to the token to form the store key.
const KeyPrefix = "refresh_token:"

const tokenBytes = 32

var (
	// ErrInvalid is returned for unknown tokens and unreadable records.
	ErrInvalid = fmt.Errorf("%w: refresh token", fault.ErrInvalid)
	// ErrExpired is returned when the embedded expiry has passed; the record is deleted.
	ErrExpired = fmt.Errorf("%w: refresh token expired", fault.ErrInvalid)
)

// record is the JSON value stored under refresh_token:<token>.
type record struct {
	AuthUserID string `json:"auth_user_id"`
	ExpiresAt  int64  `json:"expires_at"`
}

// Store issues, verifies and revokes refresh tokens.
type Store struct {
	kv   kvstore.Store
	ttl  time.Duration
	nowF func() time.Time
	log  logging.Logger
}

// NewStore returns a Store whose tokens live for days.
func NewStore(kv kvstore.Store, days int, log logging.Logger) *Store {
	if log == nil {
		log = logging.Nop()
	}
	return &Store{
		kv:   kv,
		ttl:  time.Duration(days) * 24 * time.Hour,
		nowF: time.Now,
		log:  log,
	}
}

// WithClock returns a copy of s that reads time from now.
func (s *Store) WithClock(now func() time.Time) *Store {
	c := *s
	c.nowF = now
	return &c
}

// Issue creates a token for authUserID. Tokens are 32 random bytes, URL-safe base64 without padding.
func (s *Store) Issue(ctx context.Context, authUserID string) (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("refresh token entropy: %w", err)
	}
	token := base64.RawURLEncoding.EncodeToString(b)
	rec := record{
		AuthUserID: authUserID,
		ExpiresAt:  s.nowF().Add(s.ttl).Unix(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	if err := s.kv.Set(ctx, KeyPrefix+token, string(data), s.ttl); err != nil {
		return "", err
	}
	return token, nil
}

// Verify returns the auth user id bound to token. Returns ErrInvalid if the token is unknown or its
// record is unreadable, ErrExpired if the embedded expiry has passed (the record is then deleted).
func (s *Store) Verify(ctx context.Context, token string) (string, error) {
	raw, found, err := s.kv.Get(ctx, KeyPrefix+token)
	if err != nil {
		return "", err
	}
	if !found {
		return "", ErrInvalid
	}
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		s.log.Error(ctx, "malformed refresh token record", "token_fp", security.Fingerprint(token), "error", err)
		return "", ErrInvalid
	}
	if rec.ExpiresAt < s.nowF().Unix() {
		s.log.Warn(ctx, "refresh token expired", "token_fp", security.Fingerprint(token))
		if _, err := s.kv.Delete(ctx, KeyPrefix+token); err != nil {
			return "", err
		}
		return "", ErrExpired
	}
	if rec.AuthUserID == "" {
		return "", ErrInvalid
	}
	return rec.AuthUserID, nil
}

// Revoke deletes the token's record and reports whether it existed.
func (s *Store) Revoke(ctx context.Context, token string) (bool, error) {
	return s.kv.Delete(ctx, KeyPrefix+token)
}
