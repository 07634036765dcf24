// Package internal contains helper utilities that are intentionally private to
// secstate, including nonce and secret generation.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - flows — pure-function flow orchestrators for every Engine operation
//   - limiters — Redis-backed throttles for the password grant
//   - metrics — lock-free counters and latency histograms
//   - stores — denylist and revocation-epoch adapters over the cache store
//
// # What this package must NOT do
//
//   - Export types that appear in the public secstate API.
//   - Be imported by any package outside the secstate module.
package internal
