package domain

import "time"

// TaskStatus enumerates the aggregate lifecycle states of a grading task.
// The aggregate status is recomputed from child submission counts rather
// than set directly by callers.
type TaskStatus string

const (
	// TaskCreated indicates the task exists but no work has started.
	TaskCreated TaskStatus = "created"

	// TaskProcessing indicates rubric generation or grading is in flight.
	TaskProcessing TaskStatus = "processing"

	// TaskCompleted indicates every submission graded successfully.
	TaskCompleted TaskStatus = "completed"

	// TaskCompletedWithErrors indicates all submissions reached a terminal
	// state but at least one failed.
	TaskCompletedWithErrors TaskStatus = "completed_with_errors"

	// TaskFailed indicates the task itself failed, typically because rubric
	// generation failed before any grading could start.
	TaskFailed TaskStatus = "failed"
)

// TaskTransitions is the legal transition table for grading tasks.
var TaskTransitions = map[TaskStatus][]TaskStatus{
	TaskCreated:             {TaskProcessing},
	TaskProcessing:          {TaskCompleted, TaskCompletedWithErrors, TaskFailed},
	TaskCompleted:           {},
	TaskCompletedWithErrors: {},
	TaskFailed:              {TaskProcessing},
}

// TaskStage enumerates the linear preparation sub-stages a task moves
// through before submission grading fans out. Unlike the aggregate status,
// stages follow a strict linear chain.
type TaskStage string

const (
	StageRubricGeneration TaskStage = "rubric_generation"
	StageFormatting       TaskStage = "formatting"
	StageGrading          TaskStage = "grading"
)

// StageTransitions is the linear chain for task preparation sub-stages.
var StageTransitions = map[TaskStage][]TaskStage{
	StageRubricGeneration: {StageFormatting},
	StageFormatting:       {StageGrading},
	StageGrading:          {},
}

// GradingTask is a teacher's grading job: an assignment prompt, a rubric,
// and a batch of student submissions graded against it.
type GradingTask struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`

	// AssignmentPrompt is the original assignment given to students; it is
	// included in every grading prompt alongside the rubric.
	AssignmentPrompt string `json:"assignment_prompt"`

	// Model selects the LLM used for rubric generation and grading,
	// e.g. "anthropic:claude-3-5-sonnet".
	Provider string `json:"provider"`
	Model    string `json:"model"`

	RubricID string     `json:"rubric_id,omitempty"`
	Status   TaskStatus `json:"status"`
	Stage    TaskStage  `json:"stage"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubmissionCounts summarizes child submission states for aggregate
// status recomputation.
type SubmissionCounts struct {
	Total     int
	Completed int
	Failed    int
}

// Terminal reports whether every child submission reached a terminal state.
func (c SubmissionCounts) Terminal() bool {
	return c.Total > 0 && c.Completed+c.Failed == c.Total
}

// RecomputeTaskStatus derives the aggregate task status from child
// submission counts. It returns TaskProcessing until all children are
// terminal; callers should only persist the result through the state
// manager so the transition table still applies.
func RecomputeTaskStatus(c SubmissionCounts) TaskStatus {
	switch {
	case !c.Terminal():
		return TaskProcessing
	case c.Failed == 0:
		return TaskCompleted
	case c.Completed == 0:
		return TaskFailed
	default:
		return TaskCompletedWithErrors
	}
}
