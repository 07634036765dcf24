package stores

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"time"

	"github.com/strayhome/secstate/cache"
)

const denyKeyPrefix = "deny:"

// minTombstoneTTL keeps a consumed nonce dead for at least a moment even when
// the token is in its final second of validity.
const minTombstoneTTL = time.Second

var tombstone = []byte{1}

// Denylist marks token nonces as spent or revoked. A tombstone lives at least
// as long as the token that carries its nonce, so a hit is always
// authoritative and a miss means the nonce was never touched.
type Denylist struct {
	store cache.Store
}

// NewDenylist wraps store. Store errors pass through unchanged, so callers
// keep the cache package's transient/terminal distinction.
func NewDenylist(store cache.Store) *Denylist {
	return &Denylist{store: store}
}

// denyKey hashes the nonce so tombstone keys never expose issued jti values
// to anything listing the backend keyspace.
func denyKey(nonce string) string {
	sum := sha256.Sum256([]byte(nonce))
	return denyKeyPrefix + base64.RawURLEncoding.EncodeToString(sum[:])
}

// Revoke writes a tombstone for nonce lasting ttl. A non-positive ttl means
// the token is already past its natural expiry and needs no entry.
func (d *Denylist) Revoke(ctx context.Context, nonce string, ttl time.Duration) error {
	if d == nil || nonce == "" || ttl <= 0 {
		return nil
	}

	return d.store.Set(ctx, denyKey(nonce), tombstone, ttl)
}

// Consume atomically claims nonce for single use and reports whether this
// call was the first to do so. Losers must treat the nonce as revoked.
func (d *Denylist) Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error) {
	if ttl < minTombstoneTTL {
		ttl = minTombstoneTTL
	}

	return d.store.SetIfAbsent(ctx, denyKey(nonce), tombstone, ttl)
}

// Contains reports whether nonce has a live tombstone.
func (d *Denylist) Contains(ctx context.Context, nonce string) (bool, error) {
	if d == nil || nonce == "" {
		return false, nil
	}

	_, err := d.store.Get(ctx, denyKey(nonce))
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	return true, nil
}
