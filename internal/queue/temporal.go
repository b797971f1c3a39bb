package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/gradepipe/gradepipe/internal/domain"
)

// Workflow names registered with the worker. Scheduling refers to workflows
// by name so this package never imports workflow code.
const (
	SubmissionWorkflowName = "SubmissionWorkflow"
	RubricWorkflowName     = "RubricWorkflow"
)

// TemporalScheduler implements Scheduler on a Temporal client. Delayed
// rescheduling maps onto the workflow start delay, so a unit waiting out a
// circuit cooldown occupies no worker slot.
type TemporalScheduler struct {
	client    client.Client
	taskQueue string
	logger    *slog.Logger
}

var _ Scheduler = (*TemporalScheduler)(nil)

// NewTemporalScheduler creates a scheduler dispatching onto taskQueue.
func NewTemporalScheduler(c client.Client, taskQueue string) *TemporalScheduler {
	return &TemporalScheduler{
		client:    c,
		taskQueue: taskQueue,
		logger:    slog.Default().With("component", "scheduler"),
	}
}

// Enqueue implements Scheduler. Each enqueue starts a fresh workflow
// execution; the timestamped ID keeps reschedules of the same unit from
// colliding.
func (s *TemporalScheduler) Enqueue(ctx context.Context, ref Ref, delay time.Duration) error {
	workflowName, err := workflowFor(ref.Kind)
	if err != nil {
		return err
	}

	opts := client.StartWorkflowOptions{
		ID:         fmt.Sprintf("%s-%s-%d", ref.Kind, ref.ID, time.Now().UnixNano()),
		TaskQueue:  s.taskQueue,
		StartDelay: delay,
	}

	run, err := s.client.ExecuteWorkflow(ctx, opts, workflowName, ref.ID)
	if err != nil {
		return fmt.Errorf("failed to enqueue %s %s: %w", ref.Kind, ref.ID, err)
	}

	s.logger.Info("unit enqueued",
		"kind", ref.Kind, "id", ref.ID,
		"delay", delay, "workflow_id", run.GetID())
	return nil
}

func workflowFor(kind domain.EntityKind) (string, error) {
	switch kind {
	case domain.EntitySubmission:
		return SubmissionWorkflowName, nil
	case domain.EntityRubric:
		return RubricWorkflowName, nil
	default:
		return "", fmt.Errorf("no workflow for unit kind %q", kind)
	}
}
