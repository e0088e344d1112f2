package revocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"credential-lifecycle/backend/internal/kvstore"
	"credential-lifecycle/backend/internal/platform/fault"
	"credential-lifecycle/backend/internal/security"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

type failingStore struct{ kvstore.Store }

func (failingStore) Set(context.Context, string, string, time.Duration) error {
	return kvstore.ErrUnavailable
}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, kvstore.ErrUnavailable
}

var claims = security.Claims{Subject: "1", UserID: "u-1", Username: "alice"}

func setup(t *testing.T, opts ...Option) (*Registry, *security.TokenSigner, *kvstore.MemoryStore, *clock) {
	t.Helper()
	c := &clock{t: time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)}
	signer, err := security.NewTestTokenSigner(security.WithClock(c.now))
	if err != nil {
		t.Fatalf("NewTestTokenSigner: %v", err)
	}
	store := kvstore.NewMemoryStoreWithClock(c.now)
	opts = append([]Option{WithClock(c.now)}, opts...)
	return NewRegistry(store, signer, opts...), signer, store, c
}

func TestRegistry_RevokeThenIsRevoked(t *testing.T) {
	r, signer, store, _ := setup(t)
	ctx := context.Background()
	token, issued, err := signer.Issue(claims, 30*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	revoked, err := r.IsRevoked(ctx, issued)
	if err != nil || revoked {
		t.Fatalf("IsRevoked before Revoke = %v, %v; want false", revoked, err)
	}
	ok, err := r.Revoke(ctx, token)
	if err != nil || !ok {
		t.Fatalf("Revoke = %v, %v; want true", ok, err)
	}
	revoked, err = r.IsRevoked(ctx, issued)
	if err != nil || !revoked {
		t.Fatalf("IsRevoked after Revoke = %v, %v; want true", revoked, err)
	}
	ttl, ok := store.TTL(KeyPrefix + issued.ID)
	if !ok || ttl > 30*time.Minute || ttl <= 0 {
		t.Errorf("entry ttl = %v (present %v), want (0, 30m]", ttl, ok)
	}
}

func TestRegistry_EntryNeverOutlivesToken(t *testing.T) {
	r, signer, store, c := setup(t)
	ctx := context.Background()
	token, issued, err := signer.Issue(claims, 10*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	c.t = c.t.Add(4*time.Minute + 500*time.Millisecond)
	if ok, err := r.Revoke(ctx, token); err != nil || !ok {
		t.Fatalf("Revoke = %v, %v", ok, err)
	}
	ttl, _ := store.TTL(KeyPrefix + issued.ID)
	if remaining := issued.ExpiresAt.Time.Sub(c.t); ttl > remaining {
		t.Errorf("entry ttl %v exceeds token lifetime %v", ttl, remaining)
	}
	c.t = issued.ExpiresAt.Time
	if store.Len() != 0 {
		t.Errorf("entry still present at token exp")
	}
}

func TestRegistry_RevokedUntilExactExpiry(t *testing.T) {
	r, signer, _, c := setup(t)
	ctx := context.Background()
	token, issued, err := signer.Issue(claims, 10*time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	c.t = c.t.Add(3*time.Minute + 700*time.Millisecond)
	if ok, err := r.Revoke(ctx, token); err != nil || !ok {
		t.Fatalf("Revoke = %v, %v", ok, err)
	}

	c.t = issued.ExpiresAt.Time.Add(-time.Millisecond)
	if revoked, err := r.IsRevoked(ctx, issued); err != nil || !revoked {
		t.Errorf("IsRevoked 1ms before exp = %v, %v; want true", revoked, err)
	}
	c.t = issued.ExpiresAt.Time
	if revoked, _ := r.IsRevoked(ctx, issued); revoked {
		t.Error("IsRevoked at exp = true, want the entry gone")
	}
}

func TestRegistry_RevokeRejects(t *testing.T) {
	r, signer, store, c := setup(t)
	ctx := context.Background()

	legacy, err := signer.IssueLegacyForTest(claims, time.Hour)
	if err != nil {
		t.Fatalf("IssueLegacyForTest: %v", err)
	}
	short, _, err := signer.Issue(claims, time.Minute)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	c.t = c.t.Add(2 * time.Minute)

	for name, tok := range map[string]string{
		"garbage": "not.a.token",
		"legacy":  legacy,
		"expired": short,
	} {
		t.Run(name, func(t *testing.T) {
			ok, err := r.Revoke(ctx, tok)
			if err != nil || ok {
				t.Errorf("Revoke(%s) = %v, %v; want false, nil", name, ok, err)
			}
		})
	}
	if store.Len() != 0 {
		t.Errorf("store has %d entries, want 0", store.Len())
	}
}

func TestRegistry_LegacyNeverRevoked(t *testing.T) {
	r, signer, _, _ := setup(t)
	token, err := signer.IssueLegacyForTest(claims, time.Hour)
	if err != nil {
		t.Fatalf("IssueLegacyForTest: %v", err)
	}
	parsed, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if revoked, err := r.IsRevoked(context.Background(), parsed); err != nil || revoked {
		t.Errorf("IsRevoked(legacy) = %v, %v; want false", revoked, err)
	}
}

func TestRegistry_Disabled(t *testing.T) {
	r, signer, store, _ := setup(t, WithEnabled(false))
	ctx := context.Background()
	token, issued, err := signer.Issue(claims, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if ok, err := r.Revoke(ctx, token); err != nil || !ok {
		t.Errorf("Revoke disabled = %v, %v; want true, nil", ok, err)
	}
	if ok, _ := r.Revoke(ctx, "garbage"); !ok {
		t.Error("Revoke disabled should report true even for garbage")
	}
	if store.Len() != 0 {
		t.Error("disabled registry wrote to the store")
	}
	if revoked, _ := r.IsRevoked(ctx, issued); revoked {
		t.Error("IsRevoked disabled: want false")
	}
	if r.Enabled() {
		t.Error("Enabled() = true")
	}
}

func TestRegistry_StoreUnavailable(t *testing.T) {
	signer, err := security.NewTestTokenSigner()
	if err != nil {
		t.Fatalf("NewTestTokenSigner: %v", err)
	}
	r := NewRegistry(failingStore{}, signer)
	ctx := context.Background()
	token, issued, err := signer.Issue(claims, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if ok, err := r.Revoke(ctx, token); ok || !errors.Is(err, fault.ErrUnavailable) {
		t.Errorf("Revoke = %v, %v; want false, Unavailable", ok, err)
	}
	if _, err := r.IsRevoked(ctx, issued); !errors.Is(err, fault.ErrUnavailable) {
		t.Errorf("IsRevoked err = %v, want Unavailable", err)
	}
}
