// Package metrics stores the engine's lock-free counters and the validate
// latency histogram.
//
// # Design
//
// Each counter lives in its own cache-line-padded [sync/atomic.Uint64] slot,
// so parallel increments of different metrics never false-share. The latency
// histogram is a fixed 8-bucket array (upper edges 5ms through 500ms, then
// +Inf). Both write paths are allocation-free, which keeps token validation
// cheap even with metrics on.
//
// The package only stores and snapshots values. Export formats live under
// metrics/export and read [Snapshot]; nothing here performs I/O or holds a
// global registry.
package metrics
