// Package repository implements the database access layer for the CoTask backend.
// This file handles tasks, the delegation chain and the legacy assignment roster.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/flvvius/cotask/internal/apperr"
	"github.com/flvvius/cotask/internal/database"
	"github.com/flvvius/cotask/internal/models"
)

// taskColumns is the canonical select list for task rows.
const taskColumns = `id, group_id, encrypted_title, title_nonce, encrypted_description,
	description_nonce, status_id, priority, deadline, creator_id, current_assignee,
	is_completed, completed_at, created_at, updated_at`

// TaskRepository handles task database operations, including the append-only
// delegation chain and the legacy roster surface.
type TaskRepository struct{}

// NewTaskRepository creates a new instance of TaskRepository.
func NewTaskRepository() *TaskRepository {
	return &TaskRepository{}
}

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.GroupID, &t.EncryptedTitle, &t.TitleNonce,
		&t.EncryptedDescription, &t.DescriptionNonce, &t.StatusID, &t.Priority,
		&t.Deadline, &t.CreatorID, &t.CurrentAssignee, &t.IsCompleted,
		&t.CompletedAt, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "task not found")
		}
		return nil, err
	}
	return &t, nil
}

// Create inserts a new task.
//
// Side Effects: populates task.ID, task.CreatedAt and task.UpdatedAt.
func (r *TaskRepository) Create(ctx context.Context, q database.Querier, task *models.Task) error {
	query := `
		INSERT INTO tasks (group_id, encrypted_title, title_nonce, encrypted_description,
			description_nonce, status_id, priority, deadline, creator_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	return q.QueryRow(ctx, query, task.GroupID, task.EncryptedTitle, task.TitleNonce,
		task.EncryptedDescription, task.DescriptionNonce, task.StatusID,
		task.Priority, task.Deadline, task.CreatorID).
		Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
}

// GetByID retrieves a task by primary key.
func (r *TaskRepository) GetByID(ctx context.Context, q database.Querier, taskID int) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(q.QueryRow(ctx, query, taskID))
}

// GetByIDForUpdate retrieves a task and locks its row for the duration of
// the surrounding transaction. Delegation and subtask completion take this
// lock so concurrent read-validate-write sequences on the same task
// serialize instead of validating against stale state.
func (r *TaskRepository) GetByIDForUpdate(ctx context.Context, q database.Querier, taskID int) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 FOR UPDATE`
	return scanTask(q.QueryRow(ctx, query, taskID))
}

// ListByGroup retrieves a group's tasks with subtask counters, newest first.
func (r *TaskRepository) ListByGroup(ctx context.Context, q database.Querier, groupID int) ([]models.TaskWithCounts, error) {
	query := `
		SELECT t.id, t.group_id, t.encrypted_title, t.title_nonce, t.encrypted_description,
		       t.description_nonce, t.status_id, t.priority, t.deadline, t.creator_id,
		       t.current_assignee, t.is_completed, t.completed_at, t.created_at, t.updated_at,
		       COUNT(s.id) AS subtask_count,
		       COUNT(s.id) FILTER (WHERE s.is_completed) AS completed_subtask_count
		FROM tasks t
		LEFT JOIN subtasks s ON s.parent_task_id = t.id
		WHERE t.group_id = $1
		GROUP BY t.id
		ORDER BY t.created_at DESC
	`
	rows, err := q.Query(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.TaskWithCounts
	for rows.Next() {
		var t models.TaskWithCounts
		err := rows.Scan(&t.ID, &t.GroupID, &t.EncryptedTitle, &t.TitleNonce,
			&t.EncryptedDescription, &t.DescriptionNonce, &t.StatusID, &t.Priority,
			&t.Deadline, &t.CreatorID, &t.CurrentAssignee, &t.IsCompleted,
			&t.CompletedAt, &t.CreatedAt, &t.UpdatedAt,
			&t.SubtaskCount, &t.CompletedSubtaskCount)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// UpdateFields patches task content fields, leaving nil fields untouched.
// Ciphertext and nonce travel together; callers validate the pairing.
func (r *TaskRepository) UpdateFields(ctx context.Context, q database.Querier, taskID int,
	encryptedTitle, titleNonce, encryptedDescription, descriptionNonce *string,
	priority *models.Priority, deadline *time.Time) error {
	query := `
		UPDATE tasks
		SET encrypted_title = COALESCE($2, encrypted_title),
		    title_nonce = COALESCE($3, title_nonce),
		    encrypted_description = COALESCE($4, encrypted_description),
		    description_nonce = COALESCE($5, description_nonce),
		    priority = COALESCE($6, priority),
		    deadline = COALESCE($7, deadline),
		    updated_at = now()
		WHERE id = $1
	`
	_, err := q.Exec(ctx, query, taskID, encryptedTitle, titleNonce,
		encryptedDescription, descriptionNonce, priority, deadline)
	return err
}

// UpdateStatus moves a task to another lane.
func (r *TaskRepository) UpdateStatus(ctx context.Context, q database.Querier, taskID, statusID int) error {
	query := `UPDATE tasks SET status_id = $2, updated_at = now() WHERE id = $1`
	_, err := q.Exec(ctx, query, taskID, statusID)
	return err
}

// MarkCompleted sets the completion flag and timestamp, moving the task to
// the given lane in the same statement. Idempotent: completing an already
// completed task rewrites the same values.
func (r *TaskRepository) MarkCompleted(ctx context.Context, q database.Querier, taskID, doneStatusID int) error {
	query := `
		UPDATE tasks
		SET status_id = $2, is_completed = true,
		    completed_at = COALESCE(completed_at, now()),
		    updated_at = now()
		WHERE id = $1
	`
	_, err := q.Exec(ctx, query, taskID, doneStatusID)
	return err
}

// ============================================================================
// Delegation chain (append-only)
// ============================================================================

// ListChain retrieves a task's delegation chain in order.
func (r *TaskRepository) ListChain(ctx context.Context, q database.Querier, taskID int) ([]models.ChainEntry, error) {
	query := `
		SELECT id, task_id, position, assigned_by, assigned_to,
		       assigner_role, assignee_role, created_at
		FROM assignment_chain
		WHERE task_id = $1
		ORDER BY position
	`
	rows, err := q.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chain []models.ChainEntry
	for rows.Next() {
		var e models.ChainEntry
		err := rows.Scan(&e.ID, &e.TaskID, &e.Position, &e.AssignedBy, &e.AssignedTo,
			&e.AssignerRole, &e.AssigneeRole, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		chain = append(chain, e)
	}
	return chain, rows.Err()
}

// AppendChainEntry writes one delegation event and points the task's current
// assignee at the new holder. Chain rows are never updated or deleted.
func (r *TaskRepository) AppendChainEntry(ctx context.Context, q database.Querier, entry *models.ChainEntry) error {
	query := `
		INSERT INTO assignment_chain (task_id, position, assigned_by, assigned_to,
			assigner_role, assignee_role)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	err := q.QueryRow(ctx, query, entry.TaskID, entry.Position, entry.AssignedBy,
		entry.AssignedTo, entry.AssignerRole, entry.AssigneeRole).
		Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return err
	}

	update := `UPDATE tasks SET current_assignee = $2, updated_at = now() WHERE id = $1`
	_, err = q.Exec(ctx, update, entry.TaskID, entry.AssignedTo)
	return err
}

// ============================================================================
// Legacy assignment roster (toggle-self-assignment compatibility)
// ============================================================================

// ListAssignments retrieves the legacy roster for a task.
func (r *TaskRepository) ListAssignments(ctx context.Context, q database.Querier, taskID int) ([]models.TaskAssignment, error) {
	query := `SELECT task_id, user_id, task_role FROM task_assignments WHERE task_id = $1`

	rows, err := q.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assignments []models.TaskAssignment
	for rows.Next() {
		var a models.TaskAssignment
		if err := rows.Scan(&a.TaskID, &a.UserID, &a.TaskRole); err != nil {
			return nil, err
		}
		assignments = append(assignments, a)
	}
	return assignments, rows.Err()
}

// AddAssignment inserts one roster occupant.
func (r *TaskRepository) AddAssignment(ctx context.Context, q database.Querier, a models.TaskAssignment) error {
	query := `INSERT INTO task_assignments (task_id, user_id, task_role) VALUES ($1, $2, $3)`
	_, err := q.Exec(ctx, query, a.TaskID, a.UserID, a.TaskRole)
	return err
}

// RemoveAssignment deletes one roster occupant.
func (r *TaskRepository) RemoveAssignment(ctx context.Context, q database.Querier, taskID, userID int) error {
	query := `DELETE FROM task_assignments WHERE task_id = $1 AND user_id = $2`
	_, err := q.Exec(ctx, query, taskID, userID)
	return err
}
