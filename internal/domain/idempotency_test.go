package domain

import "testing"

func TestIdempotencyKey(t *testing.T) {
	k1 := IdempotencyKey("app-1", "email")
	if len(k1) != 64 {
		t.Fatalf("key length = %d, want 64 hex chars", len(k1))
	}
	if k2 := IdempotencyKey("app-1", "email"); k2 != k1 {
		t.Fatal("same inputs must derive the same key")
	}
	if IdempotencyKey("app-1", "portal") == k1 {
		t.Fatal("different platform must derive a different key")
	}
	if IdempotencyKey("app-2", "email") == k1 {
		t.Fatal("different application must derive a different key")
	}
	// The separator prevents ambiguous concatenations from colliding.
	if IdempotencyKey("app", "1email") == IdempotencyKey("app1", "email") {
		t.Fatal("boundary shift must not collide")
	}
}
