// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunAuthenticate, RunValidate, RunRefresh, etc.) accepts
// a typed dependency struct and returns a result without side effects beyond
// those dependencies. Failures come back as classified kinds, never as root
// sentinel errors; the Engine owns that mapping. This design enables
// exhaustive unit testing with mock dependencies and keeps the Engine type
// thin.
//
// # Architecture boundaries
//
// Flow functions coordinate the token codec, denylist, epoch store, identity
// reader, and login throttle. They do NOT own any of these resources;
// ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import secstate (to avoid import cycles).
//   - Perform I/O directly; all I/O is mediated through dependency fields.
package flows
