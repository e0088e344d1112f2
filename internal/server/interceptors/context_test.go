package interceptors

import (
	"context"
	"testing"

	"credential-lifecycle/backend/internal/security"
)

func TestWithClaims(t *testing.T) {
	claims := &security.AccessClaims{UserID: "acct-1", Username: "alice"}
	claims.Subject = "auth-1"
	ctx := WithClaims(context.Background(), claims)

	got, ok := ClaimsFrom(ctx)
	if !ok || got != claims {
		t.Fatalf("ClaimsFrom = %v, %v", got, ok)
	}
	if id, ok := GetUserID(ctx); !ok || id != "acct-1" {
		t.Errorf("GetUserID = %q, %v", id, ok)
	}
	if sub, ok := GetSubject(ctx); !ok || sub != "auth-1" {
		t.Errorf("GetSubject = %q, %v", sub, ok)
	}
}

func TestClaims_Missing(t *testing.T) {
	ctx := context.Background()
	if _, ok := ClaimsFrom(ctx); ok {
		t.Error("ClaimsFrom on empty context: want false")
	}
	if _, ok := GetUserID(ctx); ok {
		t.Error("GetUserID on empty context: want false")
	}
	if _, ok := GetSubject(ctx); ok {
		t.Error("GetSubject on empty context: want false")
	}
	if _, ok := ClaimsFrom(WithClaims(ctx, nil)); ok {
		t.Error("ClaimsFrom with nil claims: want false")
	}
	if _, ok := GetUserID(WithClaims(ctx, &security.AccessClaims{})); ok {
		t.Error("GetUserID with empty user_id: want false")
	}
}
