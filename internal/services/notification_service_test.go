package services_test

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"

	"github.com/flvvius/cotask/internal/models"
	"github.com/flvvius/cotask/internal/services"
)

// TestNotificationService_Emit_SwallowsFailure verifies emission is
// best-effort: a failed insert is absorbed and never surfaces to the caller.
//
// Related:
//   - notification_service.go:Emit()
func TestNotificationService_Emit_SwallowsFailure(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectQuery("INSERT INTO notifications").
		WithArgs(4, models.NotificationTaskAssigned, "Task Assigned", "you have a new task",
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)

	svc := services.NewNotificationService(nil)

	// No return value to check; the call must simply not panic or propagate.
	svc.Emit(context.Background(), &models.Notification{
		UserID:           4,
		Type:             models.NotificationTaskAssigned,
		EncryptedTitle:   "Task Assigned",
		EncryptedMessage: "you have a new task",
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestNotificationService_EmitToMany_ContinuesAfterFailure verifies fan-out
// keeps going when one recipient's insert fails.
func TestNotificationService_EmitToMany_ContinuesAfterFailure(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectQuery("INSERT INTO notifications").
		WithArgs(3, models.NotificationSubtaskCompleted, "Subtask Completed",
			"a subtask was finished", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(assert.AnError)
	mock.ExpectQuery("INSERT INTO notifications").
		WithArgs(4, models.NotificationSubtaskCompleted, "Subtask Completed",
			"a subtask was finished", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(insertReturning(2))

	svc := services.NewNotificationService(nil)

	svc.EmitToMany(context.Background(), []int{3, 4}, models.Notification{
		Type:             models.NotificationSubtaskCompleted,
		EncryptedTitle:   "Subtask Completed",
		EncryptedMessage: "a subtask was finished",
	})

	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestNotificationService_MarkAllRead_AuditsOnce verifies the bulk read
// toggle writes exactly one summarizing audit entry.
//
// Related:
//   - PUT /api/notifications/read-all
//   - notification_service.go:MarkAllRead()
func TestNotificationService_MarkAllRead_AuditsOnce(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.+)FROM users WHERE id =").
		WithArgs(4).
		WillReturnRows(userRows(4, "Dave", nil))
	mock.ExpectExec("UPDATE notifications SET is_read = true WHERE user_id =").
		WithArgs(4).
		WillReturnResult(pgxmock.NewResult("UPDATE", 3))
	expectAudit(mock, 4, models.AuditActionMarkAllRead)
	mock.ExpectCommit()

	svc := services.NewNotificationService(nil)

	count, err := svc.MarkAllRead(context.Background(), 4)

	assert.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestNotificationService_MarkAllRead_NoopSkipsAudit verifies no audit entry
// is written when nothing was unread.
func TestNotificationService_MarkAllRead_NoopSkipsAudit(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.+)FROM users WHERE id =").
		WithArgs(4).
		WillReturnRows(userRows(4, "Dave", nil))
	mock.ExpectExec("UPDATE notifications SET is_read = true WHERE user_id =").
		WithArgs(4).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectCommit()

	svc := services.NewNotificationService(nil)

	count, err := svc.MarkAllRead(context.Background(), 4)

	assert.NoError(t, err)
	assert.Zero(t, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestNotificationService_List verifies the unread filter is passed through.
func TestNotificationService_List(t *testing.T) {
	mock := newMockDB(t)

	taskID := 10
	rows := pgxmock.NewRows([]string{"id", "user_id", "type", "encrypted_title",
		"encrypted_message", "related_task_id", "related_group_id", "related_user_id",
		"is_read", "created_at"}).
		AddRow(1, 4, models.NotificationTaskDelegated, "Task Delegated",
			"a task is now yours", &taskID, nil, nil, false, testTime)

	mock.ExpectQuery("SELECT(.+)FROM notifications WHERE user_id =").
		WithArgs(4, true).
		WillReturnRows(rows)

	svc := services.NewNotificationService(nil)

	notifications, err := svc.List(context.Background(), 4, true)

	assert.NoError(t, err)
	assert.Len(t, notifications, 1)
	assert.Equal(t, models.NotificationTaskDelegated, notifications[0].Type)
	assert.NoError(t, mock.ExpectationsWereMet())
}
