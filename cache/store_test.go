package cache

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

// runStoreContract exercises the Store semantics every implementation must
// honor. forward advances the implementation's notion of time.
func runStoreContract(t *testing.T, store Store, forward func(time.Duration)) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Get(ctx, "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get absent key: want ErrNotFound, got %v", err)
	}

	if err := store.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !bytes.Equal(got, []byte("v1")) {
		t.Fatalf("get returned %q, want %q", got, "v1")
	}

	if err := store.Set(ctx, "k1", []byte("v2"), time.Minute); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	got, err = store.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("get after overwrite failed: %v", err)
	}
	if !bytes.Equal(got, []byte("v2")) {
		t.Fatalf("overwrite kept %q, want %q", got, "v2")
	}

	ok, err := store.SetIfAbsent(ctx, "k2", []byte("first"), time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetIfAbsent: ok=%v err=%v", ok, err)
	}
	ok, err = store.SetIfAbsent(ctx, "k2", []byte("second"), time.Minute)
	if err != nil {
		t.Fatalf("second SetIfAbsent failed: %v", err)
	}
	if ok {
		t.Fatal("second SetIfAbsent won, want loss")
	}
	got, err = store.Get(ctx, "k2")
	if err != nil {
		t.Fatalf("get k2 failed: %v", err)
	}
	if !bytes.Equal(got, []byte("first")) {
		t.Fatalf("losing SetIfAbsent overwrote value: %q", got)
	}

	if err := store.Delete(ctx, "k2"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get(ctx, "k2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("get deleted key: want ErrNotFound, got %v", err)
	}
	if err := store.Delete(ctx, "k2"); err != nil {
		t.Fatalf("repeated delete must be a no-op, got %v", err)
	}

	if err := store.Set(ctx, "ttl", []byte("soon"), 5*time.Second); err != nil {
		t.Fatalf("set ttl key: %v", err)
	}
	forward(6 * time.Second)
	if _, err := store.Get(ctx, "ttl"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired key still readable: %v", err)
	}

	ok, err = store.SetIfAbsent(ctx, "ttl", []byte("again"), time.Minute)
	if err != nil || !ok {
		t.Fatalf("SetIfAbsent after expiry: ok=%v err=%v", ok, err)
	}
}
