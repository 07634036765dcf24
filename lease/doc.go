// Package lease provides advisory edit leases over a [cache.Store], so two
// staff members do not edit the same animal record at once.
//
// # Record format
//
// Held leases are stored as a compact binary value (version byte, holder,
// acquisition and expiry stamps). The record id is the storage key and never
// rides in the value. The format is append-only: new versions add fields but
// never reinterpret old ones.
//
// # Concurrency
//
// Acquisition is a single set-if-absent on the store, so a free record has
// exactly one winner under contention. Renew and release are read-check-write
// against the holder field; only the current holder passes the check.
//
// # What this package must NOT do
//
//   - Import the root package or flows (no upward imports).
//   - Touch the record payloads leases protect; a lease is advisory only.
//   - Decide who may request a lease. Callers authenticate first.
package lease
