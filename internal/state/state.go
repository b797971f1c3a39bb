// Package state enforces the status state machines for grading units.
// Every status write goes through a manager: the transition table is
// checked, the unit is persisted, and a UI-refresh notification is
// published fire-and-forget. A status may always transition to itself as an
// idempotent no-op write; an illegal transition is a defect signal, never a
// retry case.
package state

import (
	"context"
	"log/slog"
	"slices"

	"github.com/gradepipe/gradepipe/internal/domain"
	"github.com/gradepipe/gradepipe/internal/notify"
	"github.com/gradepipe/gradepipe/internal/store"
)

// SubmissionManager owns status transitions for student submissions.
type SubmissionManager struct {
	store     store.SubmissionStore
	publisher notify.Publisher
	logger    *slog.Logger
}

// NewSubmissionManager creates a submission state manager.
func NewSubmissionManager(s store.SubmissionStore, p notify.Publisher) *SubmissionManager {
	if p == nil {
		p = notify.NoopPublisher{}
	}
	return &SubmissionManager{
		store:     s,
		publisher: p,
		logger:    slog.Default().With("component", "submission_state"),
	}
}

// TransitionTo moves the submission to target, persisting all of the unit's
// current fields. Callers set result or diagnostic fields on the struct
// before transitioning so the write is atomic with the status change.
func (m *SubmissionManager) TransitionTo(ctx context.Context, sub *domain.Submission, target domain.SubmissionStatus) error {
	from := sub.Status

	if from != target && !slices.Contains(domain.SubmissionTransitions[from], target) {
		return &domain.TransitionError{
			Entity: string(domain.EntitySubmission),
			ID:     sub.ID,
			From:   string(from),
			To:     string(target),
		}
	}

	sub.Status = target
	if err := m.store.UpdateSubmission(ctx, sub); err != nil {
		sub.Status = from
		return err
	}

	if from != target {
		m.logger.Info("submission transition",
			"submission_id", sub.ID, "from", from, "to", target)
		m.publisher.PublishStateChange(ctx, notify.StateChange{
			EntityKind: domain.EntitySubmission,
			EntityID:   sub.ID,
			From:       string(from),
			To:         string(target),
		})
	}
	return nil
}

// RubricManager owns status transitions for rubrics.
type RubricManager struct {
	store     store.RubricStore
	publisher notify.Publisher
	logger    *slog.Logger
}

// NewRubricManager creates a rubric state manager.
func NewRubricManager(s store.RubricStore, p notify.Publisher) *RubricManager {
	if p == nil {
		p = notify.NoopPublisher{}
	}
	return &RubricManager{
		store:     s,
		publisher: p,
		logger:    slog.Default().With("component", "rubric_state"),
	}
}

// TransitionTo moves the rubric to target, persisting its current fields.
func (m *RubricManager) TransitionTo(ctx context.Context, rubric *domain.Rubric, target domain.RubricStatus) error {
	from := rubric.Status

	if from != target && !slices.Contains(domain.RubricTransitions[from], target) {
		return &domain.TransitionError{
			Entity: string(domain.EntityRubric),
			ID:     rubric.ID,
			From:   string(from),
			To:     string(target),
		}
	}

	rubric.Status = target
	if err := m.store.UpdateRubric(ctx, rubric); err != nil {
		rubric.Status = from
		return err
	}

	if from != target {
		m.logger.Info("rubric transition",
			"rubric_id", rubric.ID, "from", from, "to", target)
		m.publisher.PublishStateChange(ctx, notify.StateChange{
			EntityKind: domain.EntityRubric,
			EntityID:   rubric.ID,
			From:       string(from),
			To:         string(target),
		})
	}
	return nil
}

// TaskManager owns status and stage transitions for grading tasks.
// The aggregate status is recomputed from child submission counts rather
// than set directly by callers; only the preparation stages follow a direct
// linear chain.
type TaskManager struct {
	store     store.TaskStore
	publisher notify.Publisher
	logger    *slog.Logger
}

// NewTaskManager creates a task state manager.
func NewTaskManager(s store.TaskStore, p notify.Publisher) *TaskManager {
	if p == nil {
		p = notify.NoopPublisher{}
	}
	return &TaskManager{
		store:     s,
		publisher: p,
		logger:    slog.Default().With("component", "task_state"),
	}
}

// TransitionTo moves the task to target, persisting its current fields.
func (m *TaskManager) TransitionTo(ctx context.Context, task *domain.GradingTask, target domain.TaskStatus) error {
	from := task.Status

	if from != target && !slices.Contains(domain.TaskTransitions[from], target) {
		return &domain.TransitionError{
			Entity: string(domain.EntityTask),
			ID:     task.ID,
			From:   string(from),
			To:     string(target),
		}
	}

	task.Status = target
	if err := m.store.UpdateTask(ctx, task); err != nil {
		task.Status = from
		return err
	}

	if from != target {
		m.logger.Info("task transition",
			"task_id", task.ID, "from", from, "to", target)
		m.publisher.PublishStateChange(ctx, notify.StateChange{
			EntityKind: domain.EntityTask,
			EntityID:   task.ID,
			From:       string(from),
			To:         string(target),
		})
	}
	return nil
}

// AdvanceStage moves the task along its linear preparation chain.
func (m *TaskManager) AdvanceStage(ctx context.Context, task *domain.GradingTask, target domain.TaskStage) error {
	from := task.Stage

	if from != target && !slices.Contains(domain.StageTransitions[from], target) {
		return &domain.TransitionError{
			Entity: string(domain.EntityTask),
			ID:     task.ID,
			From:   string(from),
			To:     string(target),
		}
	}

	task.Stage = target
	if err := m.store.UpdateTask(ctx, task); err != nil {
		task.Stage = from
		return err
	}
	return nil
}

// RecomputeStatus derives the aggregate status from child submission counts
// and applies it through the transition table. Called after every terminal
// submission transition.
func (m *TaskManager) RecomputeStatus(ctx context.Context, task *domain.GradingTask) error {
	counts, err := m.store.CountSubmissions(ctx, task.ID)
	if err != nil {
		return err
	}
	return m.TransitionTo(ctx, task, domain.RecomputeTaskStatus(counts))
}
