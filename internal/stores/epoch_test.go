package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/strayhome/secstate/cache"
)

func TestEpochAbsentReadsZero(t *testing.T) {
	ctx := context.Background()
	es := NewEpochStore(cache.NewMemoryStore(), 8*24*time.Hour, nil)

	epoch, err := es.Current(ctx, "user-1")
	if err != nil || epoch != 0 {
		t.Fatalf("fresh principal: epoch=%d err=%v", epoch, err)
	}
}

func TestEpochBumpAdvances(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	es := NewEpochStore(store, 8*24*time.Hour, nil)

	first, err := es.Bump(ctx, "user-1")
	if err != nil || first == 0 {
		t.Fatalf("first bump: epoch=%d err=%v", first, err)
	}

	cur, err := es.Current(ctx, "user-1")
	if err != nil || cur != first {
		t.Fatalf("current after bump: epoch=%d err=%v, want %d", cur, err, first)
	}

	second, err := es.Bump(ctx, "user-1")
	if err != nil {
		t.Fatalf("second bump failed: %v", err)
	}
	if second <= first {
		t.Fatalf("bump did not advance: %d then %d", first, second)
	}

	// Principals do not share epochs.
	other, err := es.Current(ctx, "user-2")
	if err != nil || other != 0 {
		t.Fatalf("unrelated principal moved: epoch=%d err=%v", other, err)
	}
}

func TestEpochBumpSurvivesClockRollback(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()

	now := time.Now()
	es := NewEpochStore(store, 8*24*time.Hour, func() time.Time { return now })

	first, err := es.Bump(ctx, "user-1")
	if err != nil {
		t.Fatalf("first bump failed: %v", err)
	}

	now = now.Add(-time.Hour)
	second, err := es.Bump(ctx, "user-1")
	if err != nil {
		t.Fatalf("bump after rollback failed: %v", err)
	}
	if second <= first {
		t.Fatalf("rolled-back clock produced non-advancing epoch: %d then %d", first, second)
	}
}

func TestEpochEntryLapse(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()

	now := time.Now()
	store.SetClock(func() time.Time { return now })
	es := NewEpochStore(store, 24*time.Hour, func() time.Time { return now })

	if _, err := es.Bump(ctx, "user-1"); err != nil {
		t.Fatalf("bump failed: %v", err)
	}

	now = now.Add(25 * time.Hour)
	epoch, err := es.Current(ctx, "user-1")
	if err != nil || epoch != 0 {
		t.Fatalf("lapsed entry: epoch=%d err=%v, want 0", epoch, err)
	}
}

func TestEpochCorruptEntry(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	es := NewEpochStore(store, 24*time.Hour, nil)

	if err := store.Set(ctx, epochKey("user-1"), []byte("not-a-number"), time.Hour); err != nil {
		t.Fatalf("seed corrupt entry: %v", err)
	}

	if _, err := es.Current(ctx, "user-1"); !errors.Is(err, ErrEpochCorrupt) {
		t.Fatalf("corrupt entry: want ErrEpochCorrupt, got %v", err)
	}
	if _, err := es.Bump(ctx, "user-1"); !errors.Is(err, ErrEpochCorrupt) {
		t.Fatalf("bump over corrupt entry: want ErrEpochCorrupt, got %v", err)
	}
}
