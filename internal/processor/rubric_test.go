package processor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradepipe/gradepipe/internal/domain"
	llmerrors "github.com/gradepipe/gradepipe/internal/llm/errors"
	"github.com/gradepipe/gradepipe/internal/llm/transport"
	"github.com/gradepipe/gradepipe/internal/state"
)

type rubricFixture struct {
	store     *memStore
	llm       *fakeLLM
	scheduler *fakeScheduler
	processor *RubricProcessor
}

func newRubricFixture(t *testing.T) *rubricFixture {
	t.Helper()

	st := newMemStore()
	ctx := context.Background()

	require.NoError(t, st.CreateTask(ctx, &domain.GradingTask{
		ID:               "task-1",
		UserID:           "teacher-1",
		AssignmentPrompt: "Write an essay on photosynthesis.",
		Provider:         "anthropic",
		Model:            "claude-sonnet-4-20250514",
		RubricID:         "rubric-1",
		Status:           domain.TaskCreated,
		Stage:            domain.StageRubricGeneration,
	}))
	require.NoError(t, st.CreateRubric(ctx, &domain.Rubric{
		ID:     "rubric-1",
		TaskID: "task-1",
		Status: domain.RubricPending,
		Prompt: "Focus on scientific accuracy and clarity.",
	}))
	require.NoError(t, st.CreateSubmission(ctx, &domain.Submission{
		ID:          "sub-1",
		TaskID:      "task-1",
		UserID:      "student-1",
		DocumentURL: "essays/sub-1.txt",
		Status:      domain.SubmissionPending,
	}))

	llmClient := &fakeLLM{}
	scheduler := &fakeScheduler{}

	p := NewRubricProcessor(
		st,
		state.NewRubricManager(st, nil),
		state.NewTaskManager(st, nil),
		llmClient,
		scheduler,
		testBreakers(),
		testScheduling(),
	)

	return &rubricFixture{store: st, llm: llmClient, scheduler: scheduler, processor: p}
}

const rubricJSON = `{"criteria":[
	{"title":"Accuracy","description":"Scientific correctness","max_score":10},
	{"title":"Clarity","max_score":5}
]}`

func TestRubricProcessor_Success(t *testing.T) {
	f := newRubricFixture(t)
	f.llm.responses = []fakeLLMResult{{resp: &transport.Response{Content: rubricJSON}}}

	require.NoError(t, f.processor.Process(context.Background(), "rubric-1"))

	rubric := f.store.rubrics["rubric-1"]
	assert.Equal(t, domain.RubricComplete, rubric.Status)

	criteria := f.store.criteria["rubric-1"]
	require.Len(t, criteria, 2)
	assert.Equal(t, "Accuracy", criteria[0].Title)
	assert.Equal(t, "Scientific correctness", criteria[0].Description)
	assert.Equal(t, float64(10), criteria[0].MaxScore)
	assert.Equal(t, 0, criteria[0].Position)
	assert.Equal(t, 1, criteria[1].Position)
	assert.NotEmpty(t, criteria[0].ID)
	assert.Equal(t, "rubric-1", criteria[0].RubricID)

	task := f.store.tasks["task-1"]
	assert.Equal(t, domain.TaskProcessing, task.Status)
	assert.Equal(t, domain.StageGrading, task.Stage, "task advances through formatting to grading")

	require.Len(t, f.scheduler.enqueued, 1, "pending submissions released for grading")
	call := f.scheduler.enqueued[0]
	assert.Equal(t, domain.EntitySubmission, call.ref.Kind)
	assert.Equal(t, "sub-1", call.ref.ID)
	assert.Zero(t, call.delay)

	require.Len(t, f.llm.requests, 1)
	req := f.llm.requests[0]
	assert.Equal(t, transport.OpRubric, req.Operation)
	assert.Contains(t, req.Prompt, "Focus on scientific accuracy and clarity.")
	assert.Equal(t, domain.EntityRubric, req.Attribution.EntityKind)
	assert.Equal(t, "rubric-1", req.Attribution.EntityID)
	assert.Equal(t, "teacher-1", req.Attribution.UserID)
}

func TestRubricProcessor_RegenerationReplacesCriteria(t *testing.T) {
	f := newRubricFixture(t)
	f.store.criteria["rubric-1"] = []domain.RubricCriterion{
		{ID: "stale", RubricID: "rubric-1", Title: "Old criterion"},
	}
	f.llm.responses = []fakeLLMResult{{resp: &transport.Response{Content: rubricJSON}}}

	require.NoError(t, f.processor.Process(context.Background(), "rubric-1"))

	criteria := f.store.criteria["rubric-1"]
	require.Len(t, criteria, 2)
	for _, c := range criteria {
		assert.NotEqual(t, "stale", c.ID, "prior criteria are cleared on regeneration")
	}
}

func TestRubricProcessor_RedeliveryAfterFailedReleaseEnqueuesSubmissions(t *testing.T) {
	f := newRubricFixture(t)
	require.NoError(t, f.store.CreateSubmission(context.Background(), &domain.Submission{
		ID:          "sub-2",
		TaskID:      "task-1",
		UserID:      "student-2",
		DocumentURL: "essays/sub-2.txt",
		Status:      domain.SubmissionPending,
	}))
	f.llm.responses = []fakeLLMResult{{resp: &transport.Response{Content: rubricJSON}}}
	f.scheduler.enqueueErr = errors.New("queue unavailable")

	err := f.processor.Process(context.Background(), "rubric-1")

	require.Error(t, err, "release failure surfaces so the queue redelivers")
	assert.Equal(t, domain.RubricComplete, f.store.rubrics["rubric-1"].Status,
		"the rubric itself finished before the release step")
	assert.Empty(t, f.scheduler.enqueued)

	// Redelivery finds the rubric already complete; the release step still
	// runs so no submission is stranded in pending.
	f.scheduler.enqueueErr = nil
	require.NoError(t, f.processor.Process(context.Background(), "rubric-1"))

	assert.Len(t, f.llm.requests, 1, "criteria are not regenerated on redelivery")
	released := map[string]bool{}
	for _, call := range f.scheduler.enqueued {
		assert.Equal(t, domain.EntitySubmission, call.ref.Kind)
		released[call.ref.ID] = true
	}
	assert.True(t, released["sub-1"])
	assert.True(t, released["sub-2"])
}

func TestRubricProcessor_TransientFailureReschedules(t *testing.T) {
	f := newRubricFixture(t)
	f.llm.responses = []fakeLLMResult{{err: &llmerrors.ProviderError{
		Provider:   "anthropic",
		StatusCode: 529,
		Message:    "overloaded",
		Type:       llmerrors.ErrorTypeOverload,
		RetryAfter: 8,
	}}}

	require.NoError(t, f.processor.Process(context.Background(), "rubric-1"))

	rubric := f.store.rubrics["rubric-1"]
	assert.Equal(t, domain.RubricPending, rubric.Status)

	task := f.store.tasks["task-1"]
	assert.Equal(t, domain.TaskProcessing, task.Status, "task stays processing while the rubric retries")

	require.Len(t, f.scheduler.enqueued, 1)
	call := f.scheduler.enqueued[0]
	assert.Equal(t, domain.EntityRubric, call.ref.Kind)
	assert.Equal(t, "rubric-1", call.ref.ID)
	assert.Equal(t, 8*time.Second, call.delay)
}

func TestRubricProcessor_TerminalFailureFailsTask(t *testing.T) {
	f := newRubricFixture(t)
	f.llm.responses = []fakeLLMResult{{err: &llmerrors.ProviderError{
		Provider:   "anthropic",
		StatusCode: 401,
		Message:    "invalid api key",
		Type:       llmerrors.ErrorTypeAPI,
	}}}

	require.NoError(t, f.processor.Process(context.Background(), "rubric-1"))

	assert.Equal(t, domain.RubricFailed, f.store.rubrics["rubric-1"].Status)
	assert.Equal(t, domain.TaskFailed, f.store.tasks["task-1"].Status,
		"grading cannot proceed without a rubric")
	assert.Empty(t, f.scheduler.enqueued)
}

func TestRubricProcessor_UnusableResponseFailsTask(t *testing.T) {
	f := newRubricFixture(t)
	f.llm.responses = []fakeLLMResult{{resp: &transport.Response{
		Content: "I cannot produce a rubric for this assignment.",
	}}}

	require.NoError(t, f.processor.Process(context.Background(), "rubric-1"))

	assert.Equal(t, domain.RubricFailed, f.store.rubrics["rubric-1"].Status)
	assert.Equal(t, domain.TaskFailed, f.store.tasks["task-1"].Status)
}

func TestRubricProcessor_SkipsNonProcessableRubric(t *testing.T) {
	f := newRubricFixture(t)
	f.store.rubrics["rubric-1"].Status = domain.RubricComplete

	require.NoError(t, f.processor.Process(context.Background(), "rubric-1"))

	assert.Empty(t, f.llm.requests)
	assert.Equal(t, domain.RubricComplete, f.store.rubrics["rubric-1"].Status)
}

func TestRubricProcessor_UnknownRubric(t *testing.T) {
	f := newRubricFixture(t)

	err := f.processor.Process(context.Background(), "missing")

	require.ErrorIs(t, err, domain.ErrNotFound)
}
