// Package escrow parks a registration secret in the key-value store while the account service
// creates the durable account. Secrets are stored in clear text; the protection is the short TTL
// and the store's access control.
package escrow

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"credential-lifecycle/backend/internal/kvstore"
	"credential-lifecycle/backend/internal/logging"
	"credential-lifecycle/backend/internal/security"
)

// KeyPrefix is the first segment of every escrow key.
const KeyPrefix = "temp_password:"

// DefaultTTL is used when Put is called with a non-positive ttl.
const DefaultTTL = 300 * time.Second

// Escrow stores short-lived secrets under generated keys.
type Escrow struct {
	kv   kvstore.Store
	nowF func() time.Time
	log  logging.Logger
}

// New returns an Escrow over kv.
func New(kv kvstore.Store, log logging.Logger) *Escrow {
	if log == nil {
		log = logging.Nop()
	}
	return &Escrow{kv: kv, nowF: time.Now, log: log}
}

// Put stores secret for username and returns the key that retrieves it.
// Keys have the form temp_password:<username>:<unix seconds>:<nonce>.
func (e *Escrow) Put(ctx context.Context, username, secret string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("escrow nonce: %w", err)
	}
	key := KeyPrefix + username + ":" + strconv.FormatInt(e.nowF().Unix(), 10) + ":" + hex.EncodeToString(nonce)
	if err := e.kv.Set(ctx, key, secret, ttl); err != nil {
		e.log.Error(ctx, "escrow put failed", "username", username, "error", err)
		return "", err
	}
	e.log.Debug(ctx, "secret escrowed", "key_fp", security.Fingerprint(key), "ttl", ttl)
	return key, nil
}

// Get returns the secret under key. found is false once the entry expired or was deleted.
func (e *Escrow) Get(ctx context.Context, key string) (secret string, found bool, err error) {
	return e.kv.Get(ctx, key)
}

// Delete removes the entry and reports whether it existed.
func (e *Escrow) Delete(ctx context.Context, key string) (bool, error) {
	return e.kv.Delete(ctx, key)
}

// Owns reports whether key has the exact shape Put generates for username:
// temp_password:<username>:<unix seconds>:<hex nonce>. Keys received from other services must pass
// this check before they are read or deleted, so a message cannot address another user's secret or
// any non-escrow key in the shared store.
func Owns(key, username string) bool {
	if username == "" {
		return false
	}
	rest, ok := strings.CutPrefix(key, KeyPrefix+username+":")
	if !ok {
		return false
	}
	ts, nonce, ok := strings.Cut(rest, ":")
	if !ok || ts == "" || nonce == "" {
		return false
	}
	if _, err := strconv.ParseInt(ts, 10, 64); err != nil {
		return false
	}
	_, err := hex.DecodeString(nonce)
	return err == nil
}

// Claim reads and removes the secret in one logical step. Among concurrent claimants only the one
// whose delete removed the entry gets found == true. It serves consumers that use a secret exactly
// once; the registration saga does not call it because its escrow entry must survive a failed
// record create until the TTL.
func (e *Escrow) Claim(ctx context.Context, key string) (secret string, found bool, err error) {
	secret, found, err = e.kv.Get(ctx, key)
	if err != nil || !found {
		return "", false, err
	}
	existed, err := e.kv.Delete(ctx, key)
	if err != nil {
		return "", false, err
	}
	if !existed {
		return "", false, nil
	}
	return secret, true, nil
}
