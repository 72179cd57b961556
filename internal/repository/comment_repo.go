// Package repository implements the database access layer for the CoTask backend.
// This file handles encrypted task comments.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/flvvius/cotask/internal/apperr"
	"github.com/flvvius/cotask/internal/database"
	"github.com/flvvius/cotask/internal/models"
)

// CommentRepository handles comment database operations.
type CommentRepository struct{}

// NewCommentRepository creates a new instance of CommentRepository.
func NewCommentRepository() *CommentRepository {
	return &CommentRepository{}
}

// Create inserts one comment.
//
// Side Effects: populates comment.ID, comment.CreatedAt and comment.UpdatedAt.
func (r *CommentRepository) Create(ctx context.Context, q database.Querier, comment *models.Comment) error {
	query := `
		INSERT INTO comments (task_id, user_id, encrypted_content, content_nonce)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	return q.QueryRow(ctx, query, comment.TaskID, comment.UserID,
		comment.EncryptedContent, comment.ContentNonce).
		Scan(&comment.ID, &comment.CreatedAt, &comment.UpdatedAt)
}

// GetByID retrieves a comment by primary key.
func (r *CommentRepository) GetByID(ctx context.Context, q database.Querier, commentID int) (*models.Comment, error) {
	query := `
		SELECT id, task_id, user_id, encrypted_content, content_nonce,
		       is_edited, created_at, updated_at
		FROM comments
		WHERE id = $1
	`
	var c models.Comment
	err := q.QueryRow(ctx, query, commentID).Scan(&c.ID, &c.TaskID, &c.UserID,
		&c.EncryptedContent, &c.ContentNonce, &c.IsEdited, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "comment not found")
		}
		return nil, err
	}
	return &c, nil
}

// ListByTask retrieves a task's comments, oldest first.
func (r *CommentRepository) ListByTask(ctx context.Context, q database.Querier, taskID int) ([]models.Comment, error) {
	query := `
		SELECT id, task_id, user_id, encrypted_content, content_nonce,
		       is_edited, created_at, updated_at
		FROM comments
		WHERE task_id = $1
		ORDER BY created_at
	`
	rows, err := q.Query(ctx, query, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []models.Comment
	for rows.Next() {
		var c models.Comment
		err := rows.Scan(&c.ID, &c.TaskID, &c.UserID, &c.EncryptedContent,
			&c.ContentNonce, &c.IsEdited, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, err
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}

// UpdateContent replaces a comment's ciphertext and marks it edited.
func (r *CommentRepository) UpdateContent(ctx context.Context, q database.Querier, commentID int, encryptedContent, contentNonce string) error {
	query := `
		UPDATE comments
		SET encrypted_content = $2, content_nonce = $3, is_edited = true,
		    updated_at = now()
		WHERE id = $1
	`
	_, err := q.Exec(ctx, query, commentID, encryptedContent, contentNonce)
	return err
}
