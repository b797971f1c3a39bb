// Package workflow defines the Temporal workflows that drive grading units.
// Each workflow is a thin deterministic shell around one activity: the real
// retry and reschedule policy lives in the processors, which re-enqueue
// transiently failed units as fresh delayed workflow executions. Activity
// retries here only cover infrastructure failures such as an unreachable
// store.
package workflow

import (
	"context"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/gradepipe/gradepipe/internal/processor"
)

// Activity names registered with the worker.
const (
	ProcessSubmissionActivityName = "ProcessSubmission"
	ProcessRubricActivityName     = "ProcessRubric"
)

// Activities bundles the grading activities with their processors.
type Activities struct {
	Submissions *processor.SubmissionProcessor
	Rubrics     *processor.RubricProcessor
}

// ProcessSubmission grades one submission.
func (a *Activities) ProcessSubmission(ctx context.Context, submissionID string) error {
	return a.Submissions.Process(ctx, submissionID)
}

// ProcessRubric generates criteria for one rubric.
func (a *Activities) ProcessRubric(ctx context.Context, rubricID string) error {
	return a.Rubrics.Process(ctx, rubricID)
}

// activityOptions returns the standard options for grading activities.
// The generous start-to-close timeout covers a full LLM call with in-place
// retries; heartbeating is unnecessary for a single bounded call.
func activityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    3,
		},
	}
}

// SubmissionWorkflow executes the grading activity for one submission.
func SubmissionWorkflow(ctx workflow.Context, submissionID string) error {
	ctx = workflow.WithActivityOptions(ctx, activityOptions())
	return workflow.ExecuteActivity(ctx, ProcessSubmissionActivityName, submissionID).Get(ctx, nil)
}

// RubricWorkflow executes the rubric generation activity for one rubric.
func RubricWorkflow(ctx workflow.Context, rubricID string) error {
	ctx = workflow.WithActivityOptions(ctx, activityOptions())
	return workflow.ExecuteActivity(ctx, ProcessRubricActivityName, rubricID).Get(ctx, nil)
}
