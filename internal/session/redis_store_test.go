package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func setupTestRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create redis store: %v", err)
	}
	return store, s
}

func TestNewRedisStore(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	store, err := NewRedisStore("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisStore failed: %v", err)
	}
	defer store.Close()

	if err := store.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestSaveAndLookupRememberToken(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	expiresAt := time.Now().Add(30 * 24 * time.Hour)

	if err := store.SaveRememberToken(ctx, "hash-1", "usr_123", expiresAt); err != nil {
		t.Fatalf("SaveRememberToken failed: %v", err)
	}

	userID, err := store.LookupRememberToken(ctx, "hash-1")
	if err != nil {
		t.Fatalf("LookupRememberToken failed: %v", err)
	}
	if userID != "usr_123" {
		t.Errorf("expected usr_123, got %s", userID)
	}
}

func TestLookupExpiredRememberToken(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	if err := store.SaveRememberToken(ctx, "expired", "usr_456", time.Now().Add(time.Millisecond)); err != nil {
		t.Fatalf("SaveRememberToken failed: %v", err)
	}

	s.FastForward(2 * time.Millisecond)

	if _, err := store.LookupRememberToken(ctx, "expired"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for expired token, got %v", err)
	}
}

func TestLookupNonExistentRememberToken(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	if _, err := store.LookupRememberToken(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRevokeRememberToken(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	expiresAt := time.Now().Add(24 * time.Hour)

	if err := store.SaveRememberToken(ctx, "revoked", "usr_789", expiresAt); err != nil {
		t.Fatalf("SaveRememberToken failed: %v", err)
	}
	if _, err := store.LookupRememberToken(ctx, "revoked"); err != nil {
		t.Fatalf("lookup before revoke failed: %v", err)
	}
	if err := store.RevokeRememberToken(ctx, "revoked"); err != nil {
		t.Fatalf("RevokeRememberToken failed: %v", err)
	}
	if _, err := store.LookupRememberToken(ctx, "revoked"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after revoke, got %v", err)
	}

	// Revoking again is a no-op.
	if err := store.RevokeRememberToken(ctx, "revoked"); err != nil {
		t.Errorf("revoking absent token failed: %v", err)
	}
}

func TestRememberTokenIsolation(t *testing.T) {
	store, s := setupTestRedis(t)
	defer store.Close()
	defer s.Close()

	ctx := context.Background()
	expiresAt := time.Now().Add(24 * time.Hour)

	if err := store.SaveRememberToken(ctx, "token-1", "usr_1", expiresAt); err != nil {
		t.Fatalf("save token-1: %v", err)
	}
	if err := store.SaveRememberToken(ctx, "token-2", "usr_2", expiresAt); err != nil {
		t.Fatalf("save token-2: %v", err)
	}

	if err := store.RevokeRememberToken(ctx, "token-1"); err != nil {
		t.Fatalf("revoke token-1: %v", err)
	}
	if _, err := store.LookupRememberToken(ctx, "token-1"); err == nil {
		t.Error("expected error for revoked token-1")
	}
	userID, err := store.LookupRememberToken(ctx, "token-2")
	if err != nil {
		t.Fatalf("lookup token-2 after revoke: %v", err)
	}
	if userID != "usr_2" {
		t.Errorf("expected usr_2, got %s", userID)
	}
}
