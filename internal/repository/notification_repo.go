// Package repository implements the database access layer for the CoTask backend.
// This file handles the notification inbox records.
package repository

import (
	"context"

	"github.com/flvvius/cotask/internal/database"
	"github.com/flvvius/cotask/internal/models"
)

// NotificationRepository handles notification database operations.
// Inserts are invoked best-effort by the notification emitter; reads and the
// read-flag toggles belong to the recipient's inbox.
type NotificationRepository struct{}

// NewNotificationRepository creates a new instance of NotificationRepository.
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

// Create inserts one unread notification.
func (r *NotificationRepository) Create(ctx context.Context, q database.Querier, n *models.Notification) error {
	query := `
		INSERT INTO notifications (user_id, type, encrypted_title, encrypted_message,
			related_task_id, related_group_id, related_user_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	return q.QueryRow(ctx, query, n.UserID, n.Type, n.EncryptedTitle,
		n.EncryptedMessage, n.RelatedTaskID, n.RelatedGroupID, n.RelatedUserID).
		Scan(&n.ID, &n.CreatedAt)
}

// ListByUser retrieves a user's notifications, newest first.
// When onlyUnread is true, read notifications are filtered out.
func (r *NotificationRepository) ListByUser(ctx context.Context, q database.Querier, userID int, onlyUnread bool) ([]models.Notification, error) {
	query := `
		SELECT id, user_id, type, encrypted_title, encrypted_message,
		       related_task_id, related_group_id, related_user_id, is_read, created_at
		FROM notifications
		WHERE user_id = $1 AND ($2 = false OR is_read = false)
		ORDER BY created_at DESC
	`
	rows, err := q.Query(ctx, query, userID, onlyUnread)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []models.Notification
	for rows.Next() {
		var n models.Notification
		err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.EncryptedTitle, &n.EncryptedMessage,
			&n.RelatedTaskID, &n.RelatedGroupID, &n.RelatedUserID, &n.IsRead, &n.CreatedAt)
		if err != nil {
			return nil, err
		}
		notifications = append(notifications, n)
	}
	return notifications, rows.Err()
}

// UnreadCount returns the number of unread notifications for a user.
func (r *NotificationRepository) UnreadCount(ctx context.Context, q database.Querier, userID int) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`
	var count int
	err := q.QueryRow(ctx, query, userID).Scan(&count)
	return count, err
}

// MarkRead flips one notification's read flag. Scoped to the recipient so a
// user can never mark someone else's notification.
func (r *NotificationRepository) MarkRead(ctx context.Context, q database.Querier, notificationID, userID int) error {
	query := `UPDATE notifications SET is_read = true WHERE id = $1 AND user_id = $2`
	_, err := q.Exec(ctx, query, notificationID, userID)
	return err
}

// MarkAllRead flips every unread notification of a user and returns how many
// rows changed, for the single summarizing audit entry.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, q database.Querier, userID int) (int, error) {
	query := `UPDATE notifications SET is_read = true WHERE user_id = $1 AND is_read = false`
	tag, err := q.Exec(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

// Delete removes one notification, scoped to the recipient.
func (r *NotificationRepository) Delete(ctx context.Context, q database.Querier, notificationID, userID int) error {
	query := `DELETE FROM notifications WHERE id = $1 AND user_id = $2`
	_, err := q.Exec(ctx, query, notificationID, userID)
	return err
}
