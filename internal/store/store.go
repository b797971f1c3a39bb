// Package store defines the persistence contracts for the grading pipeline.
// The pipeline reads and writes grading units through these interfaces; the
// concrete store owns the schema.
package store

import (
	"context"

	"github.com/gradepipe/gradepipe/internal/domain"
)

// SubmissionStore persists student submissions.
// Missing rows surface as domain.ErrNotFound.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, sub *domain.Submission) error
	GetSubmission(ctx context.Context, id string) (*domain.Submission, error)
	UpdateSubmission(ctx context.Context, sub *domain.Submission) error
	ListSubmissionsByTask(ctx context.Context, taskID string) ([]domain.Submission, error)
}

// RubricStore persists rubrics and their criteria.
type RubricStore interface {
	CreateRubric(ctx context.Context, rubric *domain.Rubric) error
	GetRubric(ctx context.Context, id string) (*domain.Rubric, error)
	UpdateRubric(ctx context.Context, rubric *domain.Rubric) error

	// ReplaceRubricCriteria atomically clears existing criteria and inserts
	// the new set, so regeneration never leaves a half-written rubric.
	ReplaceRubricCriteria(ctx context.Context, rubricID string, criteria []domain.RubricCriterion) error
}

// TaskStore persists grading tasks and summarizes their children.
type TaskStore interface {
	CreateTask(ctx context.Context, task *domain.GradingTask) error
	GetTask(ctx context.Context, id string) (*domain.GradingTask, error)
	UpdateTask(ctx context.Context, task *domain.GradingTask) error
	CountSubmissions(ctx context.Context, taskID string) (domain.SubmissionCounts, error)
}

// CostLogStore appends immutable cost records. Entries are never mutated or
// deleted by the pipeline.
type CostLogStore interface {
	AppendCostLog(ctx context.Context, entry *domain.CostLogEntry) error
	ListCostLogByEntity(ctx context.Context, kind domain.EntityKind, entityID string) ([]domain.CostLogEntry, error)
}

// Store is the full persistence surface the worker wires together.
type Store interface {
	SubmissionStore
	RubricStore
	TaskStore
	CostLogStore
}
