package audit

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event is one security audit record. Action uses stable snake_case codes
// and Error carries a machine-readable code rather than raw error text, so
// downstream pipelines can match on both without parsing prose.
type Event struct {
	Timestamp time.Time         `json:"timestamp"`
	Action    string            `json:"action"`
	Success   bool              `json:"success"`
	Principal string            `json:"principal,omitempty"`
	Domain    string            `json:"domain,omitempty"`
	TokenKind string            `json:"token_kind,omitempty"`
	RecordID  string            `json:"record_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Sink consumes dispatched events. Emit runs on the dispatcher goroutine,
// one event at a time.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// JSONWriterSink writes events to an io.Writer as JSON, one object per
// line. Safe for concurrent use.
type JSONWriterSink struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	s := &JSONWriterSink{}
	if w != nil {
		s.enc = json.NewEncoder(w)
	}
	return s
}

func (s *JSONWriterSink) Emit(_ context.Context, event Event) {
	if s == nil || s.enc == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.enc.Encode(event)
}

// ChannelSink hands events to an in-process consumer through a buffered
// channel. Emit gives up when ctx is cancelled before space opens.
type ChannelSink struct {
	ch chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{ch: make(chan Event, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.ch <- event:
	case <-ctx.Done():
	}
}

// Events returns the receive side of the channel.
func (s *ChannelSink) Events() <-chan Event {
	return s.ch
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}
