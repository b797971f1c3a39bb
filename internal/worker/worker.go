// Package worker hosts the Temporal worker that executes grading workflows
// and activities.
package worker

import (
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"
	sdkworkflow "go.temporal.io/sdk/workflow"

	"github.com/gradepipe/gradepipe/internal/configuration"
	"github.com/gradepipe/gradepipe/internal/queue"
	"github.com/gradepipe/gradepipe/internal/workflow"
)

// New builds a worker on the configured task queue with the grading
// workflows and activities registered. Concurrency of in-flight grading
// units is bounded by the activity execution limit, so a burst of
// submissions cannot saturate provider rate limits.
func New(c client.Client, cfg configuration.TemporalConfig, scheduling configuration.SchedulingConfig, activities *workflow.Activities) sdkworker.Worker {
	w := sdkworker.New(c, cfg.TaskQueue, sdkworker.Options{
		MaxConcurrentActivityExecutionSize: scheduling.MaxConcurrentUnits,
	})

	w.RegisterWorkflowWithOptions(workflow.SubmissionWorkflow, sdkworkflow.RegisterOptions{
		Name: queue.SubmissionWorkflowName,
	})
	w.RegisterWorkflowWithOptions(workflow.RubricWorkflow, sdkworkflow.RegisterOptions{
		Name: queue.RubricWorkflowName,
	})

	w.RegisterActivityWithOptions(activities.ProcessSubmission, activity.RegisterOptions{
		Name: workflow.ProcessSubmissionActivityName,
	})
	w.RegisterActivityWithOptions(activities.ProcessRubric, activity.RegisterOptions{
		Name: workflow.ProcessRubricActivityName,
	})

	return w
}
