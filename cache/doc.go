// Package cache defines the key-value store contract the security-state engine
// runs on, together with a Redis-backed production adapter and an in-process
// store for tests and single-node tools.
//
// # Store contract
//
// [Store] is four operations: SetIfAbsent, Get, Set, Delete. Every operation is
// atomic at single-key granularity, and every written key carries a TTL owned
// by the store. SetIfAbsent is the only coordination primitive the engine
// relies on: lease acquisition, refresh rotation, and single-use grant
// consumption all reduce to "first writer wins".
//
// # Architecture boundaries
//
// This package owns byte-level storage only. It does NOT compose key
// namespaces, interpret stored payloads, or decide TTL policy. Callers do.
//
// # What this package must NOT do
//
//   - Import secstate, token, or lease (no upward imports).
//   - Retry or mask transient backend errors (callers own retry policy).
//   - Return partial values: Get yields the stored bytes or an error.
package cache
