// Package processor drives grading units through their lifecycle: record
// the attempt, transition to processing, fetch content, call the LLM, parse
// the response, and land on a terminal status. Transient failures send the
// unit back to pending with a queued reschedule; everything else fails the
// unit with a bounded diagnostic.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gradepipe/gradepipe/internal/configuration"
	"github.com/gradepipe/gradepipe/internal/docs"
	"github.com/gradepipe/gradepipe/internal/domain"
	"github.com/gradepipe/gradepipe/internal/llm"
	"github.com/gradepipe/gradepipe/internal/llm/circuitbreaker"
	llmerrors "github.com/gradepipe/gradepipe/internal/llm/errors"
	"github.com/gradepipe/gradepipe/internal/llm/transport"
	"github.com/gradepipe/gradepipe/internal/parse"
	"github.com/gradepipe/gradepipe/internal/queue"
	"github.com/gradepipe/gradepipe/internal/state"
	"github.com/gradepipe/gradepipe/internal/store"
)

// SubmissionProcessor grades one student submission per Process call.
type SubmissionProcessor struct {
	store       store.Store
	submissions *state.SubmissionManager
	tasks       *state.TaskManager
	docs        docs.Provider
	client      llm.Client
	cascade     *parse.Cascade
	scheduler   queue.Scheduler
	breakers    *circuitbreaker.Registry
	scheduling  configuration.SchedulingConfig
	logger      *slog.Logger
	now         func() time.Time
}

// NewSubmissionProcessor wires a submission processor.
func NewSubmissionProcessor(
	st store.Store,
	submissions *state.SubmissionManager,
	tasks *state.TaskManager,
	provider docs.Provider,
	client llm.Client,
	scheduler queue.Scheduler,
	breakers *circuitbreaker.Registry,
	scheduling configuration.SchedulingConfig,
) *SubmissionProcessor {
	return &SubmissionProcessor{
		store:       st,
		submissions: submissions,
		tasks:       tasks,
		docs:        provider,
		client:      client,
		cascade:     parse.NewCascade(),
		scheduler:   scheduler,
		breakers:    breakers,
		scheduling:  scheduling,
		logger:      slog.Default().With("component", "submission_processor"),
		now:         time.Now,
	}
}

// Process grades the submission identified by submissionID. It returns an
// error only for infrastructure failures (store unreachable); grading
// outcomes, including terminal failures, are recorded on the unit and
// return nil so the queue does not blindly re-run them.
func (p *SubmissionProcessor) Process(ctx context.Context, submissionID string) error {
	sub, err := p.store.GetSubmission(ctx, submissionID)
	if err != nil {
		return err
	}

	// Attempt tracking is persisted before the processing transition is
	// tried, so retried work always reflects an accurate attempt history.
	sub.RecordAttempt(p.now().UTC())
	if err := p.store.UpdateSubmission(ctx, sub); err != nil {
		return err
	}

	if err := p.submissions.TransitionTo(ctx, sub, domain.SubmissionProcessing); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			// Double-processing guard: another worker holds this unit.
			p.logger.Warn("skipping submission in non-processable state",
				"submission_id", sub.ID, "status", sub.Status)
			return nil
		}
		return err
	}

	content, err := p.docs.Fetch(ctx, sub.DocumentURL)
	if err != nil {
		// Document failures are terminal for this attempt; the document is
		// not going to appear by retrying the same URL.
		return p.fail(ctx, sub, fmt.Sprintf("Could not retrieve the submission document: %v", err))
	}

	task, err := p.store.GetTask(ctx, sub.TaskID)
	if err != nil {
		return p.fail(ctx, sub, fmt.Sprintf("Grading task unavailable: %v", err))
	}
	rubric, err := p.store.GetRubric(ctx, task.RubricID)
	if err != nil {
		return p.fail(ctx, sub, fmt.Sprintf("Grading rubric unavailable: %v", err))
	}

	resp, err := p.client.Generate(ctx, &transport.Request{
		Operation:    transport.OpGrading,
		Provider:     task.Provider,
		Model:        task.Model,
		Prompt:       buildGradingPrompt(task, rubric, content),
		SystemPrompt: gradingSystemPrompt,
		Attribution: domain.Attribution{
			EntityKind: domain.EntitySubmission,
			EntityID:   sub.ID,
			UserID:     sub.UserID,
		},
	})
	if err != nil {
		return p.handleGenerateFailure(ctx, sub, err)
	}

	result, err := p.cascade.Parse(resp.Content)
	if err != nil {
		return p.fail(ctx, sub, fmt.Sprintf("Could not interpret the grading response: %v", err))
	}

	sub.Feedback = result.Feedback
	sub.Strengths = result.Strengths
	sub.Opportunities = result.Opportunities
	sub.OverallGrade = result.OverallGrade
	sub.CriterionScores = result.Scores
	sub.PromptTokens = resp.Usage.PromptTokens
	sub.CompletionTokens = resp.Usage.CompletionTokens

	if err := p.submissions.TransitionTo(ctx, sub, domain.SubmissionCompleted); err != nil {
		return err
	}

	p.recomputeTask(ctx, sub.TaskID)
	return nil
}

// handleGenerateFailure routes an LLM failure: transient kinds go back to
// pending with a queued reschedule, everything else fails the unit.
func (p *SubmissionProcessor) handleGenerateFailure(ctx context.Context, sub *domain.Submission, err error) error {
	kind := llmerrors.KindOf(err)

	if !isReschedulable(kind) {
		return p.fail(ctx, sub, fmt.Sprintf("Grading failed: %v", err))
	}

	if sub.AttemptCount >= p.scheduling.MaxSubmissionAttempts {
		return p.fail(ctx, sub, fmt.Sprintf(
			"Grading failed after %d attempts: %v", sub.AttemptCount, err))
	}

	delay := rescheduleDelay(err, kind,
		p.breakers.OpenTimeout(),
		p.scheduling.CircuitOpenBuffer,
		p.scheduling.DefaultRetryDelay)

	sub.Feedback = retryNoticeMessage
	if terr := p.submissions.TransitionTo(ctx, sub, domain.SubmissionPending); terr != nil {
		return terr
	}

	if qerr := p.scheduler.Enqueue(ctx, queue.Ref{
		Kind: domain.EntitySubmission,
		ID:   sub.ID,
	}, delay); qerr != nil {
		p.logger.Error("failed to reschedule submission",
			"submission_id", sub.ID, "delay", delay, "error", qerr)
		return qerr
	}

	p.logger.Info("submission rescheduled",
		"submission_id", sub.ID,
		"attempt", sub.AttemptCount,
		"kind", kind,
		"delay", delay)
	return nil
}

// fail transitions the submission to failed with a bounded user-facing
// diagnostic. The full error is logged, not exposed.
func (p *SubmissionProcessor) fail(ctx context.Context, sub *domain.Submission, diagnostic string) error {
	p.logger.Error("submission failed",
		"submission_id", sub.ID,
		"attempt", sub.AttemptCount,
		"diagnostic", diagnostic)

	sub.Feedback = truncateDiagnostic(diagnostic)
	if err := p.submissions.TransitionTo(ctx, sub, domain.SubmissionFailed); err != nil {
		return err
	}

	p.recomputeTask(ctx, sub.TaskID)
	return nil
}

// recomputeTask refreshes the aggregate task status after a terminal
// submission transition. Failures are logged; the submission outcome
// already stands.
func (p *SubmissionProcessor) recomputeTask(ctx context.Context, taskID string) {
	task, err := p.store.GetTask(ctx, taskID)
	if err != nil {
		p.logger.Warn("failed to load task for status recompute",
			"task_id", taskID, "error", err)
		return
	}
	if err := p.tasks.RecomputeStatus(ctx, task); err != nil {
		p.logger.Warn("failed to recompute task status",
			"task_id", taskID, "error", err)
	}
}
