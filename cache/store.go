package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports a key with no live value: never written, expired, or deleted.
var ErrNotFound = errors.New("cache key not found")

// ErrUnavailable reports a transient backend failure. Operations that return it
// may be retried; every other error is terminal for the attempted call.
var ErrUnavailable = errors.New("cache store unavailable")

// Store is the minimal key-value contract the security-state engine runs on.
// Implementations must make each operation atomic for a single key and must
// keep values alive no longer than their TTL.
//
// A non-positive ttl stores the value without expiry.
type Store interface {
	// SetIfAbsent writes value under key with ttl only when key holds no live
	// value, and reports whether this call performed the write.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Get returns the live value under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set writes value under key with ttl, replacing any existing value.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error
}
