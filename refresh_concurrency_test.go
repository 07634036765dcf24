package secstate

import (
	"context"
	"errors"
	"sync"
	"testing"
)

func TestRefreshConcurrencySingleWinner(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newShelterIdentity(t))

	res, err := engine.Authenticate(context.Background(), "alice", testPassword, "shelter-north")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	refresh := res.RefreshToken

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)

	results := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := engine.Refresh(context.Background(), refresh)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	success := 0
	fail := 0
	for err := range results {
		if err == nil {
			success++
			continue
		}
		if errors.Is(err, ErrRevoked) {
			fail++
			continue
		}
		t.Fatalf("unexpected refresh error: %v", err)
	}

	if success != 1 {
		t.Fatalf("expected exactly one refresh success, got %d", success)
	}
	if fail != n-1 {
		t.Fatalf("expected %d refresh failures, got %d", n-1, fail)
	}

	// The contested refresh token must be tombstoned no matter who won.
	if got := countKeysWithPrefix(mr.Keys(), "sec:deny:"); got < 1 {
		t.Fatalf("expected at least one denylist tombstone, got %d", got)
	}
}

func TestRefreshConcurrencyWinnerPairUsable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newShelterIdentity(t))

	res, err := engine.Authenticate(context.Background(), "alice", testPassword, "shelter-north")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}

	const n = 8
	var wg sync.WaitGroup
	wg.Add(n)

	pairs := make(chan *TokenPair, n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			pair, err := engine.Refresh(context.Background(), res.RefreshToken)
			if err == nil {
				pairs <- pair
			}
		}()
	}
	wg.Wait()
	close(pairs)

	var winner *TokenPair
	for pair := range pairs {
		if winner != nil {
			t.Fatal("expected a single winning pair")
		}
		winner = pair
	}
	if winner == nil {
		t.Fatal("expected one refresh to win")
	}

	if _, err := engine.ValidateAccess(context.Background(), winner.AccessToken); err != nil {
		t.Fatalf("winner access token failed validation: %v", err)
	}
	if _, err := engine.Refresh(context.Background(), winner.RefreshToken); err != nil {
		t.Fatalf("winner refresh token failed rotation: %v", err)
	}
}
