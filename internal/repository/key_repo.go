// Package repository implements the database access layer for the CoTask backend.
// This file handles wrapped symmetric keys: the server stores only ciphertext
// produced by the clients' public-key wrapping, never key material.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/flvvius/cotask/internal/apperr"
	"github.com/flvvius/cotask/internal/database"
	"github.com/flvvius/cotask/internal/models"
)

// KeyRepository handles wrapped-key database operations for tasks and groups.
// Granting access inserts a wrapped-key row for the member; revoking deletes
// it. Content ciphertext is never touched by either.
type KeyRepository struct{}

// NewKeyRepository creates a new instance of KeyRepository.
func NewKeyRepository() *KeyRepository {
	return &KeyRepository{}
}

// UpsertTaskKey stores or refreshes the task key wrapped for one member.
func (r *KeyRepository) UpsertTaskKey(ctx context.Context, q database.Querier, key *models.UserTaskKey) error {
	query := `
		INSERT INTO user_task_keys (task_id, user_id, encrypted_key, key_nonce, granted_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (task_id, user_id) DO UPDATE
		SET encrypted_key = EXCLUDED.encrypted_key,
		    key_nonce = EXCLUDED.key_nonce,
		    granted_by = EXCLUDED.granted_by,
		    granted_at = now()
		RETURNING granted_at
	`
	return q.QueryRow(ctx, query, key.TaskID, key.UserID, key.EncryptedKey,
		key.KeyNonce, key.GrantedBy).
		Scan(&key.GrantedAt)
}

// GetTaskKey retrieves the wrapped task key for one member.
func (r *KeyRepository) GetTaskKey(ctx context.Context, q database.Querier, taskID, userID int) (*models.UserTaskKey, error) {
	query := `
		SELECT task_id, user_id, encrypted_key, key_nonce, granted_by, granted_at
		FROM user_task_keys WHERE task_id = $1 AND user_id = $2
	`
	var k models.UserTaskKey
	err := q.QueryRow(ctx, query, taskID, userID).
		Scan(&k.TaskID, &k.UserID, &k.EncryptedKey, &k.KeyNonce, &k.GrantedBy, &k.GrantedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "no task key wrapped for this user")
		}
		return nil, err
	}
	return &k, nil
}

// DeleteTaskKey revokes one member's access to a task's content.
func (r *KeyRepository) DeleteTaskKey(ctx context.Context, q database.Querier, taskID, userID int) error {
	query := `DELETE FROM user_task_keys WHERE task_id = $1 AND user_id = $2`
	_, err := q.Exec(ctx, query, taskID, userID)
	return err
}

// UpsertGroupKey stores or refreshes the group key wrapped for one member.
func (r *KeyRepository) UpsertGroupKey(ctx context.Context, q database.Querier, key *models.GroupKey) error {
	query := `
		INSERT INTO group_keys (group_id, user_id, encrypted_key, key_nonce, granted_by)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (group_id, user_id) DO UPDATE
		SET encrypted_key = EXCLUDED.encrypted_key,
		    key_nonce = EXCLUDED.key_nonce,
		    granted_by = EXCLUDED.granted_by,
		    granted_at = now()
		RETURNING granted_at
	`
	return q.QueryRow(ctx, query, key.GroupID, key.UserID, key.EncryptedKey,
		key.KeyNonce, key.GrantedBy).
		Scan(&key.GrantedAt)
}

// GetGroupKey retrieves the wrapped group key for one member.
func (r *KeyRepository) GetGroupKey(ctx context.Context, q database.Querier, groupID, userID int) (*models.GroupKey, error) {
	query := `
		SELECT group_id, user_id, encrypted_key, key_nonce, granted_by, granted_at
		FROM group_keys WHERE group_id = $1 AND user_id = $2
	`
	var k models.GroupKey
	err := q.QueryRow(ctx, query, groupID, userID).
		Scan(&k.GroupID, &k.UserID, &k.EncryptedKey, &k.KeyNonce, &k.GrantedBy, &k.GrantedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "no group key wrapped for this user")
		}
		return nil, err
	}
	return &k, nil
}

// DeleteGroupKey revokes one member's access to a group's content.
func (r *KeyRepository) DeleteGroupKey(ctx context.Context, q database.Querier, groupID, userID int) error {
	query := `DELETE FROM group_keys WHERE group_id = $1 AND user_id = $2`
	_, err := q.Exec(ctx, query, groupID, userID)
	return err
}
