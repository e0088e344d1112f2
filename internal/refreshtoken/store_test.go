package refreshtoken

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"credential-lifecycle/backend/internal/kvstore"
	"credential-lifecycle/backend/internal/platform/fault"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func setup() (*Store, *kvstore.MemoryStore, *clock) {
	c := &clock{t: time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)}
	kv := kvstore.NewMemoryStoreWithClock(c.now)
	return NewStore(kv, 7, nil).WithClock(c.now), kv, c
}

func TestStore_IssueVerifyRevoke(t *testing.T) {
	s, kv, _ := setup()
	ctx := context.Background()

	token, err := s.Issue(ctx, "auth-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != 32 {
		t.Errorf("token %q: decoded %d bytes, err %v; want 32 URL-safe bytes", token, len(raw), err)
	}
	if ttl, ok := kv.TTL(KeyPrefix + token); !ok || ttl != 7*24*time.Hour {
		t.Errorf("record ttl = %v, %v; want 168h", ttl, ok)
	}

	uid, err := s.Verify(ctx, token)
	if err != nil || uid != "auth-1" {
		t.Fatalf("Verify = %q, %v; want auth-1", uid, err)
	}
	existed, err := s.Revoke(ctx, token)
	if err != nil || !existed {
		t.Fatalf("Revoke = %v, %v; want true", existed, err)
	}
	if _, err := s.Verify(ctx, token); !errors.Is(err, ErrInvalid) {
		t.Errorf("Verify after Revoke: want ErrInvalid, got %v", err)
	}
	if existed, _ := s.Revoke(ctx, token); existed {
		t.Error("second Revoke: want false")
	}
}

func TestStore_RecordFormat(t *testing.T) {
	s, kv, c := setup()
	ctx := context.Background()
	token, err := s.Issue(ctx, "auth-9")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	raw, found, _ := kv.Get(ctx, KeyPrefix+token)
	if !found {
		t.Fatal("record missing")
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		t.Fatalf("record is not JSON: %v", err)
	}
	if rec["auth_user_id"] != "auth-9" {
		t.Errorf("auth_user_id = %v", rec["auth_user_id"])
	}
	if exp, _ := rec["expires_at"].(float64); int64(exp) != c.t.Add(7*24*time.Hour).Unix() {
		t.Errorf("expires_at = %v", rec["expires_at"])
	}
}

func TestStore_IssueDistinctTokens(t *testing.T) {
	s, _, _ := setup()
	a, _ := s.Issue(context.Background(), "auth-1")
	b, _ := s.Issue(context.Background(), "auth-1")
	if a == b {
		t.Error("two issues returned the same token")
	}
}

func TestStore_VerifyExpiredDeletesRecord(t *testing.T) {
	c := &clock{t: time.Date(2026, 2, 10, 8, 0, 0, 0, time.UTC)}
	kv := kvstore.NewMemoryStore()
	s := NewStore(kv, 7, nil).WithClock(c.now)
	ctx := context.Background()
	// Record whose embedded expiry lies in the past while the store entry is still live.
	stale := `{"auth_user_id":"auth-1","expires_at":` + jsonInt(c.t.Add(-time.Second).Unix()) + `}`
	if err := kv.Set(ctx, KeyPrefix+"tok", stale, time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}

	_, err := s.Verify(ctx, "tok")
	if !errors.Is(err, ErrExpired) || !errors.Is(err, fault.ErrInvalid) {
		t.Fatalf("Verify: want ErrExpired, got %v", err)
	}
	if _, found, _ := kv.Get(ctx, KeyPrefix+"tok"); found {
		t.Error("expired record was not deleted")
	}
	if _, err := s.Verify(ctx, "tok"); !errors.Is(err, ErrInvalid) || errors.Is(err, ErrExpired) {
		t.Errorf("second Verify: want ErrInvalid, got %v", err)
	}
}

func TestStore_VerifyMalformedRecord(t *testing.T) {
	s, kv, _ := setup()
	ctx := context.Background()
	for name, val := range map[string]string{
		"not json":   "{oops",
		"no user id": `{"expires_at":9999999999}`,
	} {
		t.Run(name, func(t *testing.T) {
			if err := kv.Set(ctx, KeyPrefix+name, val, time.Hour); err != nil {
				t.Fatalf("Set: %v", err)
			}
			if _, err := s.Verify(ctx, name); !errors.Is(err, ErrInvalid) {
				t.Errorf("Verify: want ErrInvalid, got %v", err)
			}
		})
	}
}

func TestStore_VerifyAfterStoreTTL(t *testing.T) {
	s, _, c := setup()
	ctx := context.Background()
	token, err := s.Issue(ctx, "auth-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	c.t = c.t.Add(7*24*time.Hour + time.Second)
	if _, err := s.Verify(ctx, token); !errors.Is(err, ErrInvalid) {
		t.Errorf("Verify after TTL: want ErrInvalid, got %v", err)
	}
}

func jsonInt(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
