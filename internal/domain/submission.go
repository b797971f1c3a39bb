// Package domain defines the core entities of the grading pipeline: student
// submissions, rubrics, grading tasks, and the status state machines that
// govern their lifecycle. Entities are owned by the durable store; this
// package only describes their shape and legal transitions.
package domain

import "time"

// SubmissionStatus enumerates the lifecycle states of a student submission.
type SubmissionStatus string

const (
	// SubmissionPending indicates the submission is queued and has not
	// started processing, or has been re-queued after a transient failure.
	SubmissionPending SubmissionStatus = "pending"

	// SubmissionProcessing indicates grading is in flight.
	SubmissionProcessing SubmissionStatus = "processing"

	// SubmissionCompleted indicates grading finished and results are stored.
	SubmissionCompleted SubmissionStatus = "completed"

	// SubmissionFailed indicates a terminal failure; manual or explicit
	// automatic retry moves the submission back to pending.
	SubmissionFailed SubmissionStatus = "failed"
)

// SubmissionTransitions is the legal transition table for submissions.
// A status may always transition to itself (idempotent no-op write).
// Processing may fall back to pending so transiently failed work can
// re-enter the job queue.
var SubmissionTransitions = map[SubmissionStatus][]SubmissionStatus{
	SubmissionPending:    {SubmissionProcessing},
	SubmissionProcessing: {SubmissionCompleted, SubmissionFailed, SubmissionPending},
	SubmissionCompleted:  {},
	SubmissionFailed:     {SubmissionPending},
}

// Submission is one student document to be graded against a task's rubric.
type Submission struct {
	ID     string `json:"id"`
	TaskID string `json:"task_id"`
	UserID string `json:"user_id"`

	// DocumentURL locates the source document in the external file store.
	DocumentURL string `json:"document_url"`

	Status SubmissionStatus `json:"status"`

	// AttemptCount is incremented before each processing attempt.
	// FirstAttemptedAt is set exactly once, on the very first attempt.
	AttemptCount     int        `json:"attempt_count"`
	FirstAttemptedAt *time.Time `json:"first_attempted_at,omitempty"`

	// Grading results, populated on completion (or with a diagnostic
	// message on failure).
	Feedback        string             `json:"feedback,omitempty"`
	Strengths       []string           `json:"strengths,omitempty"`
	Opportunities   []string           `json:"opportunities,omitempty"`
	OverallGrade    string             `json:"overall_grade,omitempty"`
	CriterionScores map[string]float64 `json:"criterion_scores,omitempty"`

	// Token accounting for the grading call that produced the result.
	PromptTokens     int64 `json:"prompt_tokens"`
	CompletionTokens int64 `json:"completion_tokens"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RecordAttempt increments the attempt counter and stamps the first-attempt
// time if this is the first attempt. Must be persisted before the processing
// transition so retried work always reflects an accurate attempt history.
func (s *Submission) RecordAttempt(now time.Time) {
	s.AttemptCount++
	if s.FirstAttemptedAt == nil {
		t := now
		s.FirstAttemptedAt = &t
	}
}
