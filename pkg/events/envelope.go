// Package events provides the generic event infrastructure for domain event
// emission. It defines the Envelope type wrapping event payloads with
// consistent metadata and the EventSink interface for downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"time"
)

// Event types emitted by the pipeline.
const (
	// TypeLLMCallCompleted fires after every successful LLM call, carrying
	// token usage and attribution for asynchronous cost recording.
	TypeLLMCallCompleted = "llm.call_completed"

	// TypeStateChanged fires whenever a submission, rubric, or task changes
	// status.
	TypeStateChanged = "state.changed"
)

// Envelope wraps event payloads with consistent metadata. The payload schema
// varies by Type; consumers dispatch on it before decoding.
type Envelope struct {
	// ID uniquely identifies this event instance.
	ID string `json:"id"`

	// Type identifies the event for routing and processing.
	Type string `json:"type"`

	// Source identifies the component that emitted this event.
	Source string `json:"source"`

	// Timestamp records when the event was emitted.
	Timestamp time.Time `json:"timestamp"`

	// Payload contains the event data as JSON.
	Payload json.RawMessage `json:"payload"`
}

// EventSink receives events for downstream processing. Implementations must
// return quickly and tolerate duplicates; sink failures never fail the
// caller's primary operation.
type EventSink interface {
	Append(ctx context.Context, envelope Envelope) error
}

// NoOpEventSink discards all events. Useful for tests or when consumers are
// disabled.
type NoOpEventSink struct{}

// Append implements EventSink with no-op behavior.
func (n *NoOpEventSink) Append(_ context.Context, _ Envelope) error {
	return nil
}

// NewNoOpEventSink creates a new no-op event sink.
func NewNoOpEventSink() EventSink {
	return &NoOpEventSink{}
}
