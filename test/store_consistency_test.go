//go:build integration
// +build integration

package test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/strayhome/secstate/cache"
)

func TestStoreConsistencyDeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	_, rdb, cleanup := newIntegrationRedis(t)
	defer cleanup()

	store := cache.NewRedisStore(rdb, "sec")

	if err := store.Set(ctx, "deny:sid-delete", []byte("1"), time.Hour); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	if err := store.Delete(ctx, "deny:sid-delete"); err != nil {
		t.Fatalf("first Delete failed: %v", err)
	}
	if err := store.Delete(ctx, "deny:sid-delete"); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}

	if _, err := store.Get(ctx, "deny:sid-delete"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestStoreConsistencySetIfAbsentRespectsLiveValue(t *testing.T) {
	ctx := context.Background()
	_, rdb, cleanup := newIntegrationRedis(t)
	defer cleanup()

	store := cache.NewRedisStore(rdb, "sec")

	won, err := store.SetIfAbsent(ctx, "lease:dog-041", []byte("first"), time.Hour)
	if err != nil || !won {
		t.Fatalf("expected first SetIfAbsent to win, got won=%v err=%v", won, err)
	}

	won, err = store.SetIfAbsent(ctx, "lease:dog-041", []byte("second"), time.Hour)
	if err != nil {
		t.Fatalf("second SetIfAbsent failed: %v", err)
	}
	if won {
		t.Fatal("expected second SetIfAbsent to lose against a live value")
	}

	got, err := store.Get(ctx, "lease:dog-041")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte("first")) {
		t.Fatalf("expected losing write to leave value untouched, got %q", got)
	}
}

func TestStoreConsistencyExpiryFreesKey(t *testing.T) {
	ctx := context.Background()
	mr, rdb, cleanup := newIntegrationRedis(t)
	defer cleanup()

	store := cache.NewRedisStore(rdb, "sec")

	won, err := store.SetIfAbsent(ctx, "lease:cat-002", []byte("holder-a"), time.Second)
	if err != nil || !won {
		t.Fatalf("expected SetIfAbsent to win, got won=%v err=%v", won, err)
	}

	mr.FastForward(2 * time.Second)

	if _, err := store.Get(ctx, "lease:cat-002"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after expiry, got %v", err)
	}

	won, err = store.SetIfAbsent(ctx, "lease:cat-002", []byte("holder-b"), time.Second)
	if err != nil || !won {
		t.Fatalf("expected SetIfAbsent to win after expiry, got won=%v err=%v", won, err)
	}
}

func TestStoreConsistencySetReplacesValueAndTTL(t *testing.T) {
	ctx := context.Background()
	mr, rdb, cleanup := newIntegrationRedis(t)
	defer cleanup()

	store := cache.NewRedisStore(rdb, "sec")

	if err := store.Set(ctx, "epoch:u1", []byte("1"), time.Second); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if err := store.Set(ctx, "epoch:u1", []byte("2"), time.Hour); err != nil {
		t.Fatalf("second Set failed: %v", err)
	}

	// The rewrite replaced the near-expired TTL, so the value survives the
	// first deadline.
	mr.FastForward(2 * time.Second)

	got, err := store.Get(ctx, "epoch:u1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, []byte("2")) {
		t.Fatalf("expected replacement value, got %q", got)
	}
}
