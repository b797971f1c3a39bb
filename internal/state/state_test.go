package state

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gradepipe/gradepipe/internal/domain"
	"github.com/gradepipe/gradepipe/internal/notify"
)

type fakeSubmissionStore struct {
	updates   int
	updateErr error
	last      *domain.Submission
}

func (f *fakeSubmissionStore) CreateSubmission(context.Context, *domain.Submission) error {
	return nil
}

func (f *fakeSubmissionStore) GetSubmission(context.Context, string) (*domain.Submission, error) {
	return nil, domain.ErrNotFound
}

func (f *fakeSubmissionStore) UpdateSubmission(_ context.Context, sub *domain.Submission) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updates++
	copied := *sub
	f.last = &copied
	return nil
}

func (f *fakeSubmissionStore) ListSubmissionsByTask(context.Context, string) ([]domain.Submission, error) {
	return nil, nil
}

type fakeTaskStore struct {
	task    *domain.GradingTask
	counts  domain.SubmissionCounts
	updates int
}

func (f *fakeTaskStore) CreateTask(context.Context, *domain.GradingTask) error { return nil }

func (f *fakeTaskStore) GetTask(context.Context, string) (*domain.GradingTask, error) {
	return f.task, nil
}

func (f *fakeTaskStore) UpdateTask(_ context.Context, task *domain.GradingTask) error {
	f.updates++
	return nil
}

func (f *fakeTaskStore) CountSubmissions(context.Context, string) (domain.SubmissionCounts, error) {
	return f.counts, nil
}

type recordingPublisher struct {
	changes []notify.StateChange
}

func (p *recordingPublisher) PublishStateChange(_ context.Context, change notify.StateChange) {
	p.changes = append(p.changes, change)
}

func TestSubmissionManager_ValidTransition(t *testing.T) {
	store := &fakeSubmissionStore{}
	pub := &recordingPublisher{}
	m := NewSubmissionManager(store, pub)

	sub := &domain.Submission{ID: "s1", Status: domain.SubmissionPending}
	err := m.TransitionTo(context.Background(), sub, domain.SubmissionProcessing)

	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionProcessing, sub.Status)
	assert.Equal(t, 1, store.updates)
	require.Len(t, pub.changes, 1)
	assert.Equal(t, string(domain.SubmissionPending), pub.changes[0].From)
	assert.Equal(t, string(domain.SubmissionProcessing), pub.changes[0].To)
}

func TestSubmissionManager_SelfTransitionPersistsWithoutNotify(t *testing.T) {
	store := &fakeSubmissionStore{}
	pub := &recordingPublisher{}
	m := NewSubmissionManager(store, pub)

	sub := &domain.Submission{ID: "s1", Status: domain.SubmissionProcessing, Feedback: "partial"}
	err := m.TransitionTo(context.Background(), sub, domain.SubmissionProcessing)

	require.NoError(t, err)
	assert.Equal(t, 1, store.updates, "self-transition still persists current fields")
	assert.Equal(t, "partial", store.last.Feedback)
	assert.Empty(t, pub.changes, "no notification for an idempotent no-op transition")
}

func TestSubmissionManager_InvalidTransitionRejected(t *testing.T) {
	store := &fakeSubmissionStore{}
	m := NewSubmissionManager(store, nil)

	sub := &domain.Submission{ID: "s1", Status: domain.SubmissionCompleted}
	err := m.TransitionTo(context.Background(), sub, domain.SubmissionProcessing)

	require.Error(t, err)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	var terr *domain.TransitionError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "s1", terr.ID)

	assert.Equal(t, domain.SubmissionCompleted, sub.Status, "status untouched on rejection")
	assert.Zero(t, store.updates)
}

func TestSubmissionManager_PendingDirectlyToCompletedRejected(t *testing.T) {
	m := NewSubmissionManager(&fakeSubmissionStore{}, nil)

	sub := &domain.Submission{ID: "s1", Status: domain.SubmissionPending}
	err := m.TransitionTo(context.Background(), sub, domain.SubmissionCompleted)

	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestSubmissionManager_StoreFailureRollsBackStatus(t *testing.T) {
	store := &fakeSubmissionStore{updateErr: errors.New("disk full")}
	pub := &recordingPublisher{}
	m := NewSubmissionManager(store, pub)

	sub := &domain.Submission{ID: "s1", Status: domain.SubmissionPending}
	err := m.TransitionTo(context.Background(), sub, domain.SubmissionProcessing)

	require.Error(t, err)
	assert.Equal(t, domain.SubmissionPending, sub.Status,
		"in-memory status must roll back when the write fails")
	assert.Empty(t, pub.changes)
}

func TestSubmissionManager_ProcessingBackToPendingAllowed(t *testing.T) {
	m := NewSubmissionManager(&fakeSubmissionStore{}, nil)

	sub := &domain.Submission{ID: "s1", Status: domain.SubmissionProcessing}
	err := m.TransitionTo(context.Background(), sub, domain.SubmissionPending)

	require.NoError(t, err, "transient failures requeue processing work")
}

func TestTaskManager_AdvanceStage(t *testing.T) {
	store := &fakeTaskStore{}
	m := NewTaskManager(store, nil)

	task := &domain.GradingTask{ID: "t1", Stage: domain.StageRubricGeneration}
	require.NoError(t, m.AdvanceStage(context.Background(), task, domain.StageFormatting))
	require.NoError(t, m.AdvanceStage(context.Background(), task, domain.StageGrading))
	assert.Equal(t, domain.StageGrading, task.Stage)

	err := m.AdvanceStage(context.Background(), task, domain.StageRubricGeneration)
	require.ErrorIs(t, err, domain.ErrInvalidTransition, "stages never move backwards")
}

func TestTaskManager_RecomputeStatus(t *testing.T) {
	tests := []struct {
		name   string
		counts domain.SubmissionCounts
		from   domain.TaskStatus
		want   domain.TaskStatus
	}{
		{"in flight", domain.SubmissionCounts{Total: 3, Completed: 1}, domain.TaskProcessing, domain.TaskProcessing},
		{"all completed", domain.SubmissionCounts{Total: 2, Completed: 2}, domain.TaskProcessing, domain.TaskCompleted},
		{"mixed terminal", domain.SubmissionCounts{Total: 2, Completed: 1, Failed: 1}, domain.TaskProcessing, domain.TaskCompletedWithErrors},
		{"all failed", domain.SubmissionCounts{Total: 2, Failed: 2}, domain.TaskProcessing, domain.TaskFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeTaskStore{counts: tt.counts}
			pub := &recordingPublisher{}
			m := NewTaskManager(store, pub)

			task := &domain.GradingTask{ID: "t1", Status: tt.from}
			require.NoError(t, m.RecomputeStatus(context.Background(), task))
			assert.Equal(t, tt.want, task.Status)
		})
	}
}

func TestRecomputeTaskStatus_EmptyTaskStaysProcessing(t *testing.T) {
	got := domain.RecomputeTaskStatus(domain.SubmissionCounts{})
	assert.Equal(t, domain.TaskProcessing, got,
		"a task with no submissions is not terminal")
}
