package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/gradepipe/gradepipe/internal/configuration"
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

// RubricProcessor expands a teacher's rubric description into structured
// criteria. Rubric generation gates the whole task: submissions are only
// released for grading once the rubric is complete, and a terminal rubric
// failure fails the task.
type RubricProcessor struct {
	store      store.Store
	rubrics    *state.RubricManager
	tasks      *state.TaskManager
	client     llm.Client
	scheduler  queue.Scheduler
	breakers   *circuitbreaker.Registry
	scheduling configuration.SchedulingConfig
	logger     *slog.Logger
}

// NewRubricProcessor wires a rubric processor.
func NewRubricProcessor(
	st store.Store,
	rubrics *state.RubricManager,
	tasks *state.TaskManager,
	client llm.Client,
	scheduler queue.Scheduler,
	breakers *circuitbreaker.Registry,
	scheduling configuration.SchedulingConfig,
) *RubricProcessor {
	return &RubricProcessor{
		store:      st,
		rubrics:    rubrics,
		tasks:      tasks,
		client:     client,
		scheduler:  scheduler,
		breakers:   breakers,
		scheduling: scheduling,
		logger:     slog.Default().With("component", "rubric_processor"),
	}
}

// Process generates criteria for the rubric identified by rubricID.
func (p *RubricProcessor) Process(ctx context.Context, rubricID string) error {
	rubric, err := p.store.GetRubric(ctx, rubricID)
	if err != nil {
		return err
	}
	task, err := p.store.GetTask(ctx, rubric.TaskID)
	if err != nil {
		return err
	}

	if err := p.rubrics.TransitionTo(ctx, rubric, domain.RubricProcessing); err != nil {
		if errors.Is(err, domain.ErrInvalidTransition) {
			if rubric.Status == domain.RubricComplete {
				// A redelivery after completion may still owe the release
				// step if an earlier enqueue failed partway. Release only
				// touches pending submissions, so repeating it is harmless.
				return p.releaseSubmissions(ctx, task.ID)
			}
			p.logger.Warn("skipping rubric in non-processable state",
				"rubric_id", rubric.ID, "status", rubric.Status)
			return nil
		}
		return err
	}
	if err := p.tasks.TransitionTo(ctx, task, domain.TaskProcessing); err != nil {
		return err
	}

	resp, err := p.client.Generate(ctx, &transport.Request{
		Operation:    transport.OpRubric,
		Provider:     task.Provider,
		Model:        task.Model,
		Prompt:       buildRubricPrompt(task, rubric),
		SystemPrompt: rubricSystemPrompt,
		Attribution: domain.Attribution{
			EntityKind: domain.EntityRubric,
			EntityID:   rubric.ID,
			UserID:     task.UserID,
		},
	})
	if err != nil {
		return p.handleGenerateFailure(ctx, rubric, task, err)
	}

	specs, err := parse.ParseRubricCriteria(resp.Content)
	if err != nil {
		return p.fail(ctx, rubric, task, fmt.Sprintf(
			"Could not interpret the rubric response: %v", err))
	}

	criteria := criteriaFromSpecs(rubric.ID, specs)
	// Regeneration replaces prior criteria wholesale so a retried rubric is
	// never left half-written.
	if err := p.store.ReplaceRubricCriteria(ctx, rubric.ID, criteria); err != nil {
		return err
	}
	rubric.Criteria = criteria

	if err := p.rubrics.TransitionTo(ctx, rubric, domain.RubricComplete); err != nil {
		return err
	}
	if err := p.advanceToGrading(ctx, task); err != nil {
		return err
	}

	return p.releaseSubmissions(ctx, task.ID)
}

// advanceToGrading walks the task through its remaining preparation stages.
// Formatting currently has no work of its own; the stage is recorded so the
// UI shows progression.
func (p *RubricProcessor) advanceToGrading(ctx context.Context, task *domain.GradingTask) error {
	if task.Stage == domain.StageRubricGeneration {
		if err := p.tasks.AdvanceStage(ctx, task, domain.StageFormatting); err != nil {
			return err
		}
	}
	if task.Stage == domain.StageFormatting {
		if err := p.tasks.AdvanceStage(ctx, task, domain.StageGrading); err != nil {
			return err
		}
	}
	return nil
}

// releaseSubmissions enqueues every pending submission of the task for
// immediate grading now that the rubric exists.
func (p *RubricProcessor) releaseSubmissions(ctx context.Context, taskID string) error {
	subs, err := p.store.ListSubmissionsByTask(ctx, taskID)
	if err != nil {
		return err
	}

	released := 0
	for i := range subs {
		if subs[i].Status != domain.SubmissionPending {
			continue
		}
		if err := p.scheduler.Enqueue(ctx, queue.Ref{
			Kind: domain.EntitySubmission,
			ID:   subs[i].ID,
		}, 0); err != nil {
			return fmt.Errorf("enqueue submission %s: %w", subs[i].ID, err)
		}
		released++
	}

	p.logger.Info("submissions released for grading",
		"task_id", taskID, "count", released)
	return nil
}

func (p *RubricProcessor) handleGenerateFailure(ctx context.Context, rubric *domain.Rubric, task *domain.GradingTask, err error) error {
	kind := llmerrors.KindOf(err)

	if !isReschedulable(kind) {
		return p.fail(ctx, rubric, task, fmt.Sprintf("Rubric generation failed: %v", err))
	}

	delay := rescheduleDelay(err, kind,
		p.breakers.OpenTimeout(),
		p.scheduling.CircuitOpenBuffer,
		p.scheduling.DefaultRetryDelay)

	if terr := p.rubrics.TransitionTo(ctx, rubric, domain.RubricPending); terr != nil {
		return terr
	}

	if qerr := p.scheduler.Enqueue(ctx, queue.Ref{
		Kind: domain.EntityRubric,
		ID:   rubric.ID,
	}, delay); qerr != nil {
		p.logger.Error("failed to reschedule rubric",
			"rubric_id", rubric.ID, "delay", delay, "error", qerr)
		return qerr
	}

	p.logger.Info("rubric rescheduled",
		"rubric_id", rubric.ID, "kind", kind, "delay", delay)
	return nil
}

// fail marks both the rubric and its task failed. Grading cannot proceed
// without a rubric, so the failure propagates to the aggregate.
func (p *RubricProcessor) fail(ctx context.Context, rubric *domain.Rubric, task *domain.GradingTask, diagnostic string) error {
	p.logger.Error("rubric generation failed",
		"rubric_id", rubric.ID, "task_id", task.ID, "diagnostic", diagnostic)

	if err := p.rubrics.TransitionTo(ctx, rubric, domain.RubricFailed); err != nil {
		return err
	}
	if err := p.tasks.TransitionTo(ctx, task, domain.TaskFailed); err != nil {
		return err
	}
	return nil
}

// criteriaFromSpecs assigns identity and position to parsed criteria.
func criteriaFromSpecs(rubricID string, specs []parse.CriterionSpec) []domain.RubricCriterion {
	criteria := make([]domain.RubricCriterion, 0, len(specs))
	for i, spec := range specs {
		levels := make([]domain.RubricLevel, 0, len(spec.Levels))
		for _, l := range spec.Levels {
			levels = append(levels, domain.RubricLevel{
				Label:       l.Label,
				Score:       l.Score,
				Description: l.Description,
			})
		}
		criteria = append(criteria, domain.RubricCriterion{
			ID:          uuid.NewString(),
			RubricID:    rubricID,
			Title:       spec.Title,
			Description: spec.Description,
			MaxScore:    spec.MaxScore,
			Position:    i,
			Levels:      levels,
		})
	}
	return criteria
}
