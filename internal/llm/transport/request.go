package transport

import (
	"net/http"
	"time"

	"github.com/gradepipe/gradepipe/internal/domain"
)

// OperationType distinguishes the kinds of generation the pipeline performs.
type OperationType string

const (
	// OpGrading produces feedback and scores for a student submission.
	OpGrading OperationType = "grading"

	// OpRubric produces a structured rubric from a teacher's description.
	OpRubric OperationType = "rubric"
)

// Request is the normalized, provider-agnostic generation request.
// Immutable once constructed; validation rejects malformed requests before
// any network call.
type Request struct {
	// Operation affects prompt framing and downstream parsing.
	Operation OperationType `json:"operation"`

	// Provider and Model identify the LLM service and exact model version.
	Provider string `json:"provider"`
	Model    string `json:"model"`

	// Prompt is the full user prompt; SystemPrompt carries instructions.
	Prompt       string `json:"prompt"`
	SystemPrompt string `json:"system_prompt,omitempty"`

	// Generation parameters. A nil Temperature means the client default;
	// an explicit zero is a deterministic request and is sent as-is.
	MaxTokens   int64    `json:"max_tokens"`
	Temperature *float64 `json:"temperature,omitempty"`

	// Control fields for resilience and observability.
	Timeout   time.Duration     `json:"timeout"`
	RequestID string            `json:"request_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`

	// Attribution identifies the entity this call is billed against.
	Attribution domain.Attribution `json:"attribution"`
}

// ModelKey returns the circuit-breaker key for this request,
// "{provider}:{model}".
func (r *Request) ModelKey() string {
	return r.Provider + ":" + r.Model
}

// NormalizedUsage is provider-agnostic token accounting. Providers that
// omit usage yield a zero-value record, so cost calculation has a single
// code path.
type NormalizedUsage struct {
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`
	TotalTokens      int64 `json:"total_tokens"`
	LatencyMs        int64 `json:"latency_ms"`
}

// Response is the normalized generation response, produced exactly once per
// successful call. RawBody retains the opaque provider payload for audits.
type Response struct {
	Content            string          `json:"content"`
	FinishReason       string          `json:"finish_reason,omitempty"`
	ProviderRequestIDs []string        `json:"provider_request_ids,omitempty"`
	Usage              NormalizedUsage `json:"usage"`
	Headers            http.Header     `json:"-"`
	RawBody            []byte          `json:"-"`
}
