package audit

import (
	"context"
	"sync"
	"sync/atomic"
)

// Config sizes the dispatcher queue and picks its overflow policy.
type Config struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// Dispatcher relays audit events to a sink from its own goroutine so that
// emitting never stalls a security operation. With DropIfFull unset a full
// queue makes Emit block instead of dropping.
type Dispatcher struct {
	sink       Sink
	queue      chan Event
	quit       chan struct{}
	dropIfFull bool

	wg      sync.WaitGroup
	closed  atomic.Bool
	dropped atomic.Uint64
}

// NewDispatcher starts the relay goroutine. A disabled Config yields nil,
// and every method tolerates a nil receiver.
func NewDispatcher(cfg Config, sink Sink) *Dispatcher {
	if !cfg.Enabled {
		return nil
	}
	if sink == nil {
		sink = NoOpSink{}
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}

	d := &Dispatcher{
		sink:       sink,
		queue:      make(chan Event, size),
		quit:       make(chan struct{}),
		dropIfFull: cfg.DropIfFull,
	}
	d.wg.Add(1)
	go d.relay()
	return d
}

func (d *Dispatcher) relay() {
	defer d.wg.Done()
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		case <-d.quit:
			d.flush()
			return
		}
	}
}

// flush delivers events that were already queued when Close was called.
func (d *Dispatcher) flush() {
	for {
		select {
		case ev := <-d.queue:
			d.sink.Emit(context.Background(), ev)
		default:
			return
		}
	}
}

// Emit queues event for delivery. After Close it is a no-op.
func (d *Dispatcher) Emit(ctx context.Context, event Event) {
	if d == nil || d.closed.Load() {
		return
	}

	if !d.dropIfFull {
		if ctx == nil {
			ctx = context.Background()
		}
		select {
		case d.queue <- event:
		case <-ctx.Done():
		case <-d.quit:
		}
		return
	}

	select {
	case d.queue <- event:
	case <-d.quit:
	default:
		d.dropped.Add(1)
	}
}

// Close stops the relay after flushing queued events. Extra calls wait for
// the first to finish and return.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	if d.closed.CompareAndSwap(false, true) {
		close(d.quit)
	}
	d.wg.Wait()
}

// Dropped reports how many events were discarded under backpressure.
func (d *Dispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
