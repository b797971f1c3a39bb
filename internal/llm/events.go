package llm

import (
	"github.com/gradepipe/gradepipe/internal/domain"
)

// CompletionEvent is the payload emitted after every successful LLM call.
// It carries everything the cost recorder needs so recording never has to
// re-fetch the request.
type CompletionEvent struct {
	RequestID        string             `json:"request_id"`
	Operation        string             `json:"operation"`
	Provider         string             `json:"provider"`
	Model            string             `json:"model"`
	PromptTokens     int64              `json:"prompt_tokens"`
	CompletionTokens int64              `json:"completion_tokens"`
	LatencyMs        int64              `json:"latency_ms"`
	Attribution      domain.Attribution `json:"attribution"`
}
