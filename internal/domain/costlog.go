package domain

import "time"

// EntityKind identifies what a cost entry or generation request is
// attributed to.
type EntityKind string

const (
	EntitySubmission EntityKind = "submission"
	EntityRubric     EntityKind = "rubric"
	EntityTask       EntityKind = "task"
)

// Attribution identifies the originating entity and user a generation call
// is billed against.
type Attribution struct {
	EntityKind EntityKind `json:"entity_kind"`
	EntityID   string     `json:"entity_id"`
	UserID     string     `json:"user_id,omitempty"`
}

// CostLogEntry is the immutable per-call cost record. Entries are created
// once per completed generation call and never mutated or deleted by the
// pipeline; billing reports sum them.
type CostLogEntry struct {
	ID               string      `json:"id"`
	RequestID        string      `json:"request_id"`
	Provider         string      `json:"provider"`
	Model            string      `json:"model"`
	PromptTokens     int64       `json:"prompt_tokens"`
	CompletionTokens int64       `json:"completion_tokens"`
	// Costs are fixed-point nano-cents so thousands of small entries sum
	// without floating-point drift.
	PromptCostNanoCents     int64       `json:"prompt_cost_nano_cents"`
	CompletionCostNanoCents int64       `json:"completion_cost_nano_cents"`
	TotalCostNanoCents      int64       `json:"total_cost_nano_cents"`
	Attribution             Attribution `json:"attribution"`
	CreatedAt               time.Time   `json:"created_at"`
}
