// Package audit delivers security audit events to pluggable sinks without
// blocking the operations that produce them.
//
// # Design
//
// A [Dispatcher] owns one relay goroutine and a bounded queue. Producers
// call Emit; when the queue is full, Config.DropIfFull picks between
// dropping the event (counted via Dropped) and blocking the producer until
// space frees up. Close flushes whatever is queued before returning. Sinks
// implement [Sink]; the package ships [NoOpSink], [ChannelSink], and
// [JSONWriterSink].
//
// The package decides nothing about which events exist or when they fire.
// Callers construct [Event] values; the engine owns that policy and keeps
// secrets out of the fields.
package audit
