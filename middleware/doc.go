// Package middleware exposes HTTP middleware adapters for token and lease
// enforcement built on top of secstate.Engine validation.
//
// # Guards
//
//   - [Guard] — bearer access-token verification, claims into context.
//   - [RequireKind] — same, for an explicit token kind.
//   - [RequireSigned] — signature-only verification, no state-store call.
//   - [RequireLease] — admits edits only from the record's lease holder.
//
// Token guards read the Authorization header, verify through the Engine, and
// inject validated claims into the request context. [RequireLease] runs after
// a token guard and checks the lease table instead.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT implement
// authentication logic itself — all decisions are delegated to the Engine.
//
// # What this package must NOT do
//
//   - Parse or create tokens directly (delegates to Engine).
//   - Access the state store (Engine handles I/O).
//   - Make authorization decisions beyond pass/reject from Engine results.
package middleware
