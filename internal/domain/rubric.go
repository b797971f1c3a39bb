package domain

import "time"

// RubricStatus enumerates the lifecycle states of rubric generation.
type RubricStatus string

const (
	// RubricPending indicates rubric generation has not started.
	RubricPending RubricStatus = "pending"

	// RubricProcessing indicates rubric generation is in flight.
	RubricProcessing RubricStatus = "processing"

	// RubricComplete indicates the structured rubric is stored.
	RubricComplete RubricStatus = "complete"

	// RubricFailed indicates generation failed; explicit retry moves the
	// rubric back to pending.
	RubricFailed RubricStatus = "failed"
)

// RubricTransitions is the legal transition table for rubrics.
var RubricTransitions = map[RubricStatus][]RubricStatus{
	RubricPending:    {RubricProcessing},
	RubricProcessing: {RubricComplete, RubricFailed, RubricPending},
	RubricComplete:   {},
	RubricFailed:     {RubricPending},
}

// Rubric is the structured grading rubric generated for a task.
// Criteria are owned children: regeneration clears prior criteria before
// inserting new ones, so a rubric is never left half-written.
type Rubric struct {
	ID     string       `json:"id"`
	TaskID string       `json:"task_id"`
	Status RubricStatus `json:"status"`

	// Prompt is the teacher-supplied rubric description the generator
	// expands into structured criteria.
	Prompt string `json:"prompt"`

	Criteria []RubricCriterion `json:"criteria,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RubricCriterion is one gradable dimension with its scoring levels.
type RubricCriterion struct {
	ID          string        `json:"id"`
	RubricID    string        `json:"rubric_id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	MaxScore    float64       `json:"max_score"`
	Position    int           `json:"position"`
	Levels      []RubricLevel `json:"levels,omitempty"`
}

// RubricLevel describes one achievement level within a criterion.
type RubricLevel struct {
	Label       string  `json:"label"`
	Score       float64 `json:"score"`
	Description string  `json:"description,omitempty"`
}
