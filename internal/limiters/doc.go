// Package limiters provides the Redis-backed throttle consulted by the
// password grant.
//
// # Window semantics
//
// Fixed-window counters: INCR plus a conditional EXPIRE on the first hit.
// Key prefixes:
//   - thr:   per-identifier failures
//   - thrip: per-client-IP failures
//
// The limiter is nil-safe: calling any method on a nil receiver returns nil,
// which is how deployments without throttling run.
//
// # Architecture boundaries
//
// This package counts failures and enforces thresholds from its Config. It
// does NOT decide what a rejection means for the caller; flow functions do.
//
// # What this package must NOT do
//
//   - Import secstate or any sibling internal package.
//   - Key counters by anything derived from passwords.
package limiters
