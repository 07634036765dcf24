// Package secstate provides the time-bounded security state for a multi-shelter
// rescue CRM backend: signed per-kind tokens, denylist and epoch revocation,
// domain-scoped password authentication, single-use invitation and reset
// grants, and record edit leases, all coordinated through one cache store.
//
// The package is designed for concurrent server workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// secstate is the public surface. It exposes [Engine], [Builder], [Config], and value types
// (Claims, AuthResult, Lease, MetricsSnapshot, etc.). All internal coordination — flow
// orchestration, denylist and epoch stores, login throttling, audit dispatch — lives under
// internal/ and is never exported. The cache, token, lease, and password sub-packages are
// exported for callers that need a single primitive without the full engine.
//
// # What this package must NOT do
//
//   - Persist principals or domains: identity is read through [IdentityStore] and owned by
//     the host application.
//   - Expose Redis clients, internal stores, or encoding details in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//   - Import any sub-package that re-imports secstate (no import cycles).
//
// # Performance contract
//
// Validate is the hot path. One denylist read and one epoch read per call, plus a second
// set-if-absent write for single-use kinds; it emits no audit events. Authenticate,
// Refresh, and the lease operations are allowed a small constant number of store
// round-trips per call.
package secstate
