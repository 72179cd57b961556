// Package repository implements the database access layer for the CoTask backend.
// This file handles subtasks and the sibling-completion counters the
// auto-completion engine relies on.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/flvvius/cotask/internal/apperr"
	"github.com/flvvius/cotask/internal/database"
	"github.com/flvvius/cotask/internal/models"
)

// subtaskColumns is the canonical select list for subtask rows.
const subtaskColumns = `id, parent_task_id, encrypted_title, title_nonce,
	encrypted_description, description_nonce, order_num, is_completed,
	completed_at, completed_by, assigned_to, created_at, updated_at`

// SubtaskRepository handles subtask database operations.
type SubtaskRepository struct{}

// NewSubtaskRepository creates a new instance of SubtaskRepository.
func NewSubtaskRepository() *SubtaskRepository {
	return &SubtaskRepository{}
}

func scanSubtask(row pgx.Row) (*models.Subtask, error) {
	var s models.Subtask
	err := row.Scan(&s.ID, &s.ParentTaskID, &s.EncryptedTitle, &s.TitleNonce,
		&s.EncryptedDescription, &s.DescriptionNonce, &s.Order, &s.IsCompleted,
		&s.CompletedAt, &s.CompletedBy, &s.AssignedTo, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "subtask not found")
		}
		return nil, err
	}
	return &s, nil
}

// Create inserts a new subtask. The caller supplies Order as the current
// sibling count, computed under the parent task's row lock.
func (r *SubtaskRepository) Create(ctx context.Context, q database.Querier, subtask *models.Subtask) error {
	query := `
		INSERT INTO subtasks (parent_task_id, encrypted_title, title_nonce,
			encrypted_description, description_nonce, order_num, assigned_to)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at
	`
	return q.QueryRow(ctx, query, subtask.ParentTaskID, subtask.EncryptedTitle,
		subtask.TitleNonce, subtask.EncryptedDescription, subtask.DescriptionNonce,
		subtask.Order, subtask.AssignedTo).
		Scan(&subtask.ID, &subtask.CreatedAt, &subtask.UpdatedAt)
}

// GetByID retrieves a subtask by primary key.
func (r *SubtaskRepository) GetByID(ctx context.Context, q database.Querier, subtaskID int) (*models.Subtask, error) {
	query := `SELECT ` + subtaskColumns + ` FROM subtasks WHERE id = $1`
	return scanSubtask(q.QueryRow(ctx, query, subtaskID))
}

// ListByParent retrieves a task's subtasks in order.
func (r *SubtaskRepository) ListByParent(ctx context.Context, q database.Querier, parentTaskID int) ([]models.Subtask, error) {
	query := `SELECT ` + subtaskColumns + ` FROM subtasks WHERE parent_task_id = $1 ORDER BY order_num`

	rows, err := q.Query(ctx, query, parentTaskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subtasks []models.Subtask
	for rows.Next() {
		var s models.Subtask
		err := rows.Scan(&s.ID, &s.ParentTaskID, &s.EncryptedTitle, &s.TitleNonce,
			&s.EncryptedDescription, &s.DescriptionNonce, &s.Order, &s.IsCompleted,
			&s.CompletedAt, &s.CompletedBy, &s.AssignedTo, &s.CreatedAt, &s.UpdatedAt)
		if err != nil {
			return nil, err
		}
		subtasks = append(subtasks, s)
	}
	return subtasks, rows.Err()
}

// CountSiblings returns the total and incomplete subtask counts of a task in
// one query. Callers hold the parent row lock, so the pair is consistent
// with the write that preceded it in the same transaction.
func (r *SubtaskRepository) CountSiblings(ctx context.Context, q database.Querier, parentTaskID int) (total, incomplete int, err error) {
	query := `
		SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT is_completed)
		FROM subtasks WHERE parent_task_id = $1
	`
	err = q.QueryRow(ctx, query, parentTaskID).Scan(&total, &incomplete)
	return total, incomplete, err
}

// SetCompletion patches the completion fields of a subtask.
func (r *SubtaskRepository) SetCompletion(ctx context.Context, q database.Querier, subtaskID int, completed bool, completedBy *int) error {
	query := `
		UPDATE subtasks
		SET is_completed = $2,
		    completed_at = CASE WHEN $2 THEN now() END,
		    completed_by = CASE WHEN $2 THEN $3 END,
		    updated_at = now()
		WHERE id = $1
	`
	_, err := q.Exec(ctx, query, subtaskID, completed, completedBy)
	return err
}

// SetAssignee points a subtask at its single assignee.
func (r *SubtaskRepository) SetAssignee(ctx context.Context, q database.Querier, subtaskID, userID int) error {
	query := `UPDATE subtasks SET assigned_to = $2, updated_at = now() WHERE id = $1`
	_, err := q.Exec(ctx, query, subtaskID, userID)
	return err
}
