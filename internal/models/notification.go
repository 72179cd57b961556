package models

import "time"

// NotificationType classifies an inbox notification.
type NotificationType string

// Notification types emitted by the core services.
const (
	NotificationTaskAssigned        NotificationType = "task_assigned"
	NotificationTaskCompleted       NotificationType = "task_completed"
	NotificationTaskUpdated         NotificationType = "task_updated"
	NotificationTaskDelegated       NotificationType = "task_delegated"
	NotificationSubtaskCompleted    NotificationType = "subtask_completed"
	NotificationDeadlineApproaching NotificationType = "deadline_approaching"
	NotificationGroupInvite         NotificationType = "group_invite"
	NotificationMention             NotificationType = "mention"
)

// Notification is a best-effort side-effect record addressed to one user.
// The core never mutates notifications except for read-flag toggling by the
// recipient; loss of a notification is acceptable, loss of state is not.
//
// Database Table: notifications
type Notification struct {
	ID               int              `db:"id"`
	UserID           int              `db:"user_id"` // Recipient
	Type             NotificationType `db:"type"`
	EncryptedTitle   string           `db:"encrypted_title"`
	EncryptedMessage string           `db:"encrypted_message"`
	RelatedTaskID    *int             `db:"related_task_id"`
	RelatedGroupID   *int             `db:"related_group_id"`
	RelatedUserID    *int             `db:"related_user_id"` // Who triggered the notification
	IsRead           bool             `db:"is_read"`
	CreatedAt        time.Time        `db:"created_at"`
}
