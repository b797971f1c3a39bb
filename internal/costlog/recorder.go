// Package costlog records the cost of every completed LLM call. The
// recorder consumes completion events emitted by the LLM client, prices the
// token usage, and appends an immutable cost entry. Recording is strictly
// best-effort: a failure is logged and never propagates into the grading
// path.
package costlog

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/gradepipe/gradepipe/internal/domain"
	"github.com/gradepipe/gradepipe/internal/llm"
	"github.com/gradepipe/gradepipe/internal/llm/pricing"
	"github.com/gradepipe/gradepipe/internal/llm/transport"
	"github.com/gradepipe/gradepipe/internal/store"
	"github.com/gradepipe/gradepipe/pkg/events"
)

// Recorder turns completion events into cost log entries.
// It implements events.EventSink so it can be wired directly as the LLM
// client's sink.
type Recorder struct {
	pricing *pricing.Registry
	store   store.CostLogStore
	logger  *slog.Logger
}

var _ events.EventSink = (*Recorder)(nil)

// NewRecorder creates a cost recorder writing through the given store.
func NewRecorder(registry *pricing.Registry, costs store.CostLogStore) *Recorder {
	return &Recorder{
		pricing: registry,
		store:   costs,
		logger:  slog.Default().With("component", "costlog"),
	}
}

// Append implements events.EventSink. Events other than call completions
// are ignored. Errors are logged and swallowed; cost tracking must never
// block grading.
func (r *Recorder) Append(ctx context.Context, envelope events.Envelope) error {
	if envelope.Type != events.TypeLLMCallCompleted {
		return nil
	}

	var ev llm.CompletionEvent
	if err := json.Unmarshal(envelope.Payload, &ev); err != nil {
		r.logger.Warn("failed to decode completion event",
			"event_id", envelope.ID, "error", err)
		return nil
	}

	entry := r.buildEntry(&ev, envelope.Timestamp)
	if err := r.store.AppendCostLog(ctx, entry); err != nil {
		r.logger.Warn("failed to append cost log entry",
			"request_id", ev.RequestID,
			"provider", ev.Provider,
			"model", ev.Model,
			"error", err)
	}
	return nil
}

func (r *Recorder) buildEntry(ev *llm.CompletionEvent, at time.Time) *domain.CostLogEntry {
	cost := r.pricing.Calculate(ev.Provider, ev.Model, transport.NormalizedUsage{
		PromptTokens:     ev.PromptTokens,
		CompletionTokens: ev.CompletionTokens,
	})

	if at.IsZero() {
		at = time.Now().UTC()
	}

	return &domain.CostLogEntry{
		ID:                      uuid.NewString(),
		RequestID:               ev.RequestID,
		Provider:                ev.Provider,
		Model:                   ev.Model,
		PromptTokens:            ev.PromptTokens,
		CompletionTokens:        ev.CompletionTokens,
		PromptCostNanoCents:     cost.PromptNanoCents,
		CompletionCostNanoCents: cost.CompletionNanoCents,
		TotalCostNanoCents:      cost.TotalNanoCents,
		Attribution:             ev.Attribution,
		CreatedAt:               at,
	}
}
