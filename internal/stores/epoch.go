package stores

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/strayhome/secstate/cache"
)

const epochKeyPrefix = "epoch:"

// ErrEpochCorrupt is returned when a stored epoch entry cannot be parsed.
// Treating it as zero would resurrect revoked tokens, so it surfaces instead.
var ErrEpochCorrupt = errors.New("epoch entry corrupt")

// EpochStore tracks a per-principal revocation epoch. The epoch is the
// wall-clock stamp of the last bump, not a counter: concurrent bumps converge
// without read-modify-write atomicity because any stamp newer than every
// prior issuance kills all earlier tokens.
//
// Entries carry a TTL exceeding the longest token lifetime. Once an entry
// lapses, every token issued before its last bump has expired naturally, so
// the reset to zero is harmless.
type EpochStore struct {
	store cache.Store
	ttl   time.Duration
	now   func() time.Time
}

// NewEpochStore wraps store. ttl must exceed the longest configured token
// lifetime; now defaults to the wall clock.
func NewEpochStore(store cache.Store, ttl time.Duration, now func() time.Time) *EpochStore {
	if now == nil {
		now = time.Now
	}
	return &EpochStore{store: store, ttl: ttl, now: now}
}

func epochKey(principal string) string {
	return epochKeyPrefix + principal
}

// Current returns the principal's epoch. Absent entries read as zero.
func (e *EpochStore) Current(ctx context.Context, principal string) (uint64, error) {
	raw, err := e.store.Get(ctx, epochKey(principal))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return 0, nil
		}
		return 0, err
	}

	n, err := strconv.ParseUint(string(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrEpochCorrupt, raw)
	}

	return n, nil
}

// Bump advances the principal's epoch to a stamp newer than anything issued
// so far and returns it. Tokens stamped with an older epoch are invalid from
// this point on.
func (e *EpochStore) Bump(ctx context.Context, principal string) (uint64, error) {
	prev, err := e.Current(ctx, principal)
	if err != nil {
		return 0, err
	}

	stamp := uint64(e.now().UnixNano())
	if stamp <= prev {
		// Clock moved backwards relative to the last bump; still advance.
		stamp = prev + 1
	}

	value := []byte(strconv.FormatUint(stamp, 10))
	if err := e.store.Set(ctx, epochKey(principal), value, e.ttl); err != nil {
		return 0, err
	}

	return stamp, nil
}
