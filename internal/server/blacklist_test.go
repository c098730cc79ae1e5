package server

import (
	"context"
	"testing"
	"time"
)

func TestTokenBlacklistDisabled(t *testing.T) {
	b := NewTokenBlacklist(nil)
	ctx := context.Background()

	if b.Enabled() {
		t.Fatal("nil client must report disabled")
	}
	if err := b.Revoke(ctx, "some-jti", time.Hour); err != nil {
		t.Fatalf("disabled Revoke must be a no-op, got: %v", err)
	}
	if b.IsRevoked(ctx, "some-jti") {
		t.Fatal("disabled blacklist must never report revoked")
	}
}

func TestTokenBlacklistEmptyJTI(t *testing.T) {
	b := NewTokenBlacklist(nil)
	ctx := context.Background()

	if err := b.Revoke(ctx, "", time.Hour); err != nil {
		t.Fatalf("empty jti must be a no-op, got: %v", err)
	}
	if b.IsRevoked(ctx, "") {
		t.Fatal("empty jti must not be revoked")
	}
}
