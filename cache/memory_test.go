package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreContract(t *testing.T) {
	store := NewMemoryStore()

	now := time.Now()
	store.SetClock(func() time.Time { return now })

	runStoreContract(t, store, func(d time.Duration) { now = now.Add(d) })
}

func TestMemoryStoreValueIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	src := []byte("original")
	if err := store.Set(ctx, "k", src, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	src[0] = 'X'

	got, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if string(got) != "original" {
		t.Fatalf("stored value shares caller memory: %q", got)
	}

	got[0] = 'Y'
	again, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("second get failed: %v", err)
	}
	if string(again) != "original" {
		t.Fatalf("returned value shares store memory: %q", again)
	}
}

func TestMemoryStoreLazyCleanup(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	now := time.Now()
	store.SetClock(func() time.Time { return now })

	if err := store.Set(ctx, "short", []byte("v"), time.Second); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := store.Set(ctx, "long", []byte("v"), time.Hour); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	now = now.Add(2 * time.Second)

	// Entry drops on first access after its deadline.
	if store.Len() != 2 {
		t.Fatalf("expected 2 raw entries before access, got %d", store.Len())
	}
	if _, err := store.Get(ctx, "short"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired entry readable: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected expired entry to be dropped, have %d", store.Len())
	}
}

func TestMemoryStoreNoExpiry(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	now := time.Now()
	store.SetClock(func() time.Time { return now })

	if err := store.Set(ctx, "forever", []byte("v"), 0); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	now = now.Add(1000 * time.Hour)
	if _, err := store.Get(ctx, "forever"); err != nil {
		t.Fatalf("zero-ttl entry expired: %v", err)
	}
}
