// Package sqlite implements the persistence contracts on SQLite. The store
// runs in WAL mode so the worker's concurrent grading goroutines can read
// while a write is in flight.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/gradepipe/gradepipe/internal/domain"
	"github.com/gradepipe/gradepipe/internal/store"
)

// Store is the SQLite implementation of store.Store.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New opens (or creates) the database at path, enables WAL mode, and
// initializes the schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			assignment_prompt TEXT NOT NULL,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			rubric_id TEXT,
			status TEXT NOT NULL,
			stage TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rubrics (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			status TEXT NOT NULL,
			prompt TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS rubric_criteria (
			id TEXT PRIMARY KEY,
			rubric_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			max_score REAL NOT NULL,
			position INTEGER NOT NULL,
			levels TEXT,
			FOREIGN KEY (rubric_id) REFERENCES rubrics(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS submissions (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			document_url TEXT NOT NULL,
			status TEXT NOT NULL,
			attempt_count INTEGER NOT NULL DEFAULT 0,
			first_attempted_at TIMESTAMP,
			feedback TEXT,
			strengths TEXT,
			opportunities TEXT,
			overall_grade TEXT,
			criterion_scores TEXT,
			prompt_tokens INTEGER NOT NULL DEFAULT 0,
			completion_tokens INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS cost_log (
			id TEXT PRIMARY KEY,
			request_id TEXT NOT NULL,
			provider TEXT NOT NULL,
			model TEXT NOT NULL,
			prompt_tokens INTEGER NOT NULL,
			completion_tokens INTEGER NOT NULL,
			prompt_cost_nano_cents INTEGER NOT NULL,
			completion_cost_nano_cents INTEGER NOT NULL,
			total_cost_nano_cents INTEGER NOT NULL,
			entity_kind TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			user_id TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_task ON submissions(task_id)`,
		`CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status)`,
		`CREATE INDEX IF NOT EXISTS idx_rubric_criteria_rubric ON rubric_criteria(rubric_id)`,
		`CREATE INDEX IF NOT EXISTS idx_cost_log_entity ON cost_log(entity_kind, entity_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// CreateSubmission inserts a new submission row.
func (s *Store) CreateSubmission(ctx context.Context, sub *domain.Submission) error {
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	strengths, opportunities, scores, err := marshalResults(sub)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO submissions (
			id, task_id, user_id, document_url, status, attempt_count,
			first_attempted_at, feedback, strengths, opportunities,
			overall_grade, criterion_scores, prompt_tokens, completion_tokens,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.TaskID, sub.UserID, sub.DocumentURL, sub.Status,
		sub.AttemptCount, nullableTime(sub.FirstAttemptedAt), sub.Feedback,
		strengths, opportunities, sub.OverallGrade, scores,
		sub.PromptTokens, sub.CompletionTokens, sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

// GetSubmission loads one submission by ID.
func (s *Store) GetSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, user_id, document_url, status, attempt_count,
		       first_attempted_at, feedback, strengths, opportunities,
		       overall_grade, criterion_scores, prompt_tokens,
		       completion_tokens, created_at, updated_at
		FROM submissions WHERE id = ?`, id)

	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("submission %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return sub, nil
}

// UpdateSubmission writes the full submission row back.
func (s *Store) UpdateSubmission(ctx context.Context, sub *domain.Submission) error {
	sub.UpdatedAt = time.Now().UTC()

	strengths, opportunities, scores, err := marshalResults(sub)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE submissions SET
			task_id = ?, user_id = ?, document_url = ?, status = ?,
			attempt_count = ?, first_attempted_at = ?, feedback = ?,
			strengths = ?, opportunities = ?, overall_grade = ?,
			criterion_scores = ?, prompt_tokens = ?, completion_tokens = ?,
			updated_at = ?
		WHERE id = ?`,
		sub.TaskID, sub.UserID, sub.DocumentURL, sub.Status,
		sub.AttemptCount, nullableTime(sub.FirstAttemptedAt), sub.Feedback,
		strengths, opportunities, sub.OverallGrade, scores,
		sub.PromptTokens, sub.CompletionTokens, sub.UpdatedAt, sub.ID)
	if err != nil {
		return fmt.Errorf("failed to update submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("submission %s: %w", sub.ID, domain.ErrNotFound)
	}
	return nil
}

// ListSubmissionsByTask returns a task's submissions ordered by creation.
func (s *Store) ListSubmissionsByTask(ctx context.Context, taskID string) ([]domain.Submission, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, task_id, user_id, document_url, status, attempt_count,
		       first_attempted_at, feedback, strengths, opportunities,
		       overall_grade, criterion_scores, prompt_tokens,
		       completion_tokens, created_at, updated_at
		FROM submissions WHERE task_id = ? ORDER BY created_at ASC`, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// CreateRubric inserts a new rubric row. Criteria are stored separately via
// ReplaceRubricCriteria.
func (s *Store) CreateRubric(ctx context.Context, rubric *domain.Rubric) error {
	now := time.Now().UTC()
	if rubric.CreatedAt.IsZero() {
		rubric.CreatedAt = now
	}
	rubric.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rubrics (id, task_id, status, prompt, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rubric.ID, rubric.TaskID, rubric.Status, rubric.Prompt,
		rubric.CreatedAt, rubric.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create rubric: %w", err)
	}
	return nil
}

// GetRubric loads a rubric with its criteria ordered by position.
func (s *Store) GetRubric(ctx context.Context, id string) (*domain.Rubric, error) {
	var rubric domain.Rubric
	err := s.db.QueryRowContext(ctx, `
		SELECT id, task_id, status, prompt, created_at, updated_at
		FROM rubrics WHERE id = ?`, id).Scan(
		&rubric.ID, &rubric.TaskID, &rubric.Status, &rubric.Prompt,
		&rubric.CreatedAt, &rubric.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("rubric %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rubric: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, rubric_id, title, description, max_score, position, levels
		FROM rubric_criteria WHERE rubric_id = ? ORDER BY position ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query criteria: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.RubricCriterion
		var description sql.NullString
		var levels sql.NullString
		if err := rows.Scan(&c.ID, &c.RubricID, &c.Title, &description,
			&c.MaxScore, &c.Position, &levels); err != nil {
			return nil, fmt.Errorf("failed to scan criterion: %w", err)
		}
		c.Description = description.String
		if levels.Valid && levels.String != "" {
			if err := json.Unmarshal([]byte(levels.String), &c.Levels); err != nil {
				return nil, fmt.Errorf("failed to unmarshal levels: %w", err)
			}
		}
		rubric.Criteria = append(rubric.Criteria, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &rubric, nil
}

// UpdateRubric writes the rubric row back, excluding criteria.
func (s *Store) UpdateRubric(ctx context.Context, rubric *domain.Rubric) error {
	rubric.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE rubrics SET task_id = ?, status = ?, prompt = ?, updated_at = ?
		WHERE id = ?`,
		rubric.TaskID, rubric.Status, rubric.Prompt, rubric.UpdatedAt, rubric.ID)
	if err != nil {
		return fmt.Errorf("failed to update rubric: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rubric %s: %w", rubric.ID, domain.ErrNotFound)
	}
	return nil
}

// ReplaceRubricCriteria clears existing criteria and inserts the new set in
// one transaction, so regeneration never leaves a half-written rubric.
func (s *Store) ReplaceRubricCriteria(ctx context.Context, rubricID string, criteria []domain.RubricCriterion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM rubric_criteria WHERE rubric_id = ?`, rubricID); err != nil {
		return fmt.Errorf("failed to clear criteria: %w", err)
	}

	for _, c := range criteria {
		levels, err := json.Marshal(c.Levels)
		if err != nil {
			return fmt.Errorf("failed to marshal levels: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO rubric_criteria (id, rubric_id, title, description, max_score, position, levels)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, rubricID, c.Title, c.Description, c.MaxScore, c.Position,
			string(levels)); err != nil {
			return fmt.Errorf("failed to insert criterion: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit criteria: %w", err)
	}
	return nil
}

// CreateTask inserts a new grading task row.
func (s *Store) CreateTask(ctx context.Context, task *domain.GradingTask) error {
	now := time.Now().UTC()
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}
	task.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, user_id, assignment_prompt, provider, model,
			rubric_id, status, stage, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, task.UserID, task.AssignmentPrompt, task.Provider, task.Model,
		task.RubricID, task.Status, task.Stage, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask loads one grading task by ID.
func (s *Store) GetTask(ctx context.Context, id string) (*domain.GradingTask, error) {
	var task domain.GradingTask
	var rubricID sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, assignment_prompt, provider, model, rubric_id,
		       status, stage, created_at, updated_at
		FROM tasks WHERE id = ?`, id).Scan(
		&task.ID, &task.UserID, &task.AssignmentPrompt, &task.Provider,
		&task.Model, &rubricID, &task.Status, &task.Stage,
		&task.CreatedAt, &task.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	task.RubricID = rubricID.String
	return &task, nil
}

// UpdateTask writes the task row back.
func (s *Store) UpdateTask(ctx context.Context, task *domain.GradingTask) error {
	task.UpdatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET user_id = ?, assignment_prompt = ?, provider = ?,
			model = ?, rubric_id = ?, status = ?, stage = ?, updated_at = ?
		WHERE id = ?`,
		task.UserID, task.AssignmentPrompt, task.Provider, task.Model,
		task.RubricID, task.Status, task.Stage, task.UpdatedAt, task.ID)
	if err != nil {
		return fmt.Errorf("failed to update task: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("task %s: %w", task.ID, domain.ErrNotFound)
	}
	return nil
}

// CountSubmissions summarizes a task's child submission states.
func (s *Store) CountSubmissions(ctx context.Context, taskID string) (domain.SubmissionCounts, error) {
	var counts domain.SubmissionCounts
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = ? THEN 1 ELSE 0 END), 0)
		FROM submissions WHERE task_id = ?`,
		domain.SubmissionCompleted, domain.SubmissionFailed, taskID).Scan(
		&counts.Total, &counts.Completed, &counts.Failed)
	if err != nil {
		return counts, fmt.Errorf("failed to count submissions: %w", err)
	}
	return counts, nil
}

// AppendCostLog inserts one immutable cost record.
func (s *Store) AppendCostLog(ctx context.Context, entry *domain.CostLogEntry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cost_log (id, request_id, provider, model, prompt_tokens,
			completion_tokens, prompt_cost_nano_cents,
			completion_cost_nano_cents, total_cost_nano_cents, entity_kind,
			entity_id, user_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.RequestID, entry.Provider, entry.Model,
		entry.PromptTokens, entry.CompletionTokens,
		entry.PromptCostNanoCents, entry.CompletionCostNanoCents,
		entry.TotalCostNanoCents, entry.Attribution.EntityKind,
		entry.Attribution.EntityID, entry.Attribution.UserID, entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append cost log: %w", err)
	}
	return nil
}

// ListCostLogByEntity returns the cost entries attributed to one entity,
// oldest first.
func (s *Store) ListCostLogByEntity(ctx context.Context, kind domain.EntityKind, entityID string) ([]domain.CostLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, request_id, provider, model, prompt_tokens,
		       completion_tokens, prompt_cost_nano_cents,
		       completion_cost_nano_cents, total_cost_nano_cents, entity_kind,
		       entity_id, user_id, created_at
		FROM cost_log WHERE entity_kind = ? AND entity_id = ?
		ORDER BY created_at ASC`, kind, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cost log: %w", err)
	}
	defer rows.Close()

	var entries []domain.CostLogEntry
	for rows.Next() {
		var e domain.CostLogEntry
		var userID sql.NullString
		if err := rows.Scan(&e.ID, &e.RequestID, &e.Provider, &e.Model,
			&e.PromptTokens, &e.CompletionTokens, &e.PromptCostNanoCents,
			&e.CompletionCostNanoCents, &e.TotalCostNanoCents,
			&e.Attribution.EntityKind, &e.Attribution.EntityID, &userID,
			&e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan cost entry: %w", err)
		}
		e.Attribution.UserID = userID.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*domain.Submission, error) {
	var sub domain.Submission
	var firstAttempted sql.NullTime
	var feedback, strengths, opportunities, grade, scores sql.NullString

	if err := row.Scan(&sub.ID, &sub.TaskID, &sub.UserID, &sub.DocumentURL,
		&sub.Status, &sub.AttemptCount, &firstAttempted, &feedback,
		&strengths, &opportunities, &grade, &scores, &sub.PromptTokens,
		&sub.CompletionTokens, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return nil, err
	}

	if firstAttempted.Valid {
		t := firstAttempted.Time
		sub.FirstAttemptedAt = &t
	}
	sub.Feedback = feedback.String
	sub.OverallGrade = grade.String

	if strengths.Valid && strengths.String != "" {
		if err := json.Unmarshal([]byte(strengths.String), &sub.Strengths); err != nil {
			return nil, fmt.Errorf("failed to unmarshal strengths: %w", err)
		}
	}
	if opportunities.Valid && opportunities.String != "" {
		if err := json.Unmarshal([]byte(opportunities.String), &sub.Opportunities); err != nil {
			return nil, fmt.Errorf("failed to unmarshal opportunities: %w", err)
		}
	}
	if scores.Valid && scores.String != "" {
		if err := json.Unmarshal([]byte(scores.String), &sub.CriterionScores); err != nil {
			return nil, fmt.Errorf("failed to unmarshal criterion scores: %w", err)
		}
	}
	return &sub, nil
}

func marshalResults(sub *domain.Submission) (strengths, opportunities, scores string, err error) {
	b, err := json.Marshal(sub.Strengths)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal strengths: %w", err)
	}
	strengths = string(b)

	b, err = json.Marshal(sub.Opportunities)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal opportunities: %w", err)
	}
	opportunities = string(b)

	b, err = json.Marshal(sub.CriterionScores)
	if err != nil {
		return "", "", "", fmt.Errorf("failed to marshal criterion scores: %w", err)
	}
	scores = string(b)
	return strengths, opportunities, scores, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
