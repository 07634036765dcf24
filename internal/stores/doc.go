// Package stores provides the short-lived revocation records behind token
// validation: nonce tombstones and per-principal epochs.
//
// # Design
//
// Both stores sit on the cache.Store seam rather than a concrete client, so
// they run unchanged on Redis or the in-process store. The denylist's
// SetIfAbsent is the single atomic primitive shared by refresh rotation and
// single-use grant consumption: whoever writes the tombstone first wins, and
// everyone else observes a revoked nonce. Epochs are bump stamps with a TTL
// longer than any token lifetime, so a lapsed entry can only forget tokens
// that are already dead.
//
// # Architecture boundaries
//
// This package owns revocation persistence. It does NOT decode tokens,
// compute remaining validity, or decide which kinds are single-use. Flow
// functions do.
//
// # What this package must NOT do
//
//   - Import secstate or any sibling internal package.
//   - Store raw nonces as keys (tombstone keys are hashes).
//   - Swallow store errors: transient failures pass through for callers to map.
package stores
