package services_test

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flvvius/cotask/internal/apperr"
	"github.com/flvvius/cotask/internal/models"
	"github.com/flvvius/cotask/internal/services"
)

// subtaskRows builds one subtask row matching the canonical select list.
func subtaskRows(id, parentTaskID, order int, completed bool) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "parent_task_id", "encrypted_title", "title_nonce",
		"encrypted_description", "description_nonce", "order_num", "is_completed",
		"completed_at", "completed_by", "assigned_to", "created_at", "updated_at"}).
		AddRow(id, parentTaskID, "Y2lwaGVydGV4dA", "bm9uY2U", nil, nil, order, completed,
			nil, nil, nil, testTime, testTime)
}

// statusRows builds one status lane row.
func statusRows(id, groupID int, name string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "group_id", "name", "order_num", "color",
		"is_default", "created_at"}).
		AddRow(id, groupID, name, 2, "#10b981", true, testTime)
}

// siblingCounts builds the total/incomplete pair CountSiblings returns.
func siblingCounts(total, incomplete int) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"count", "count_incomplete"}).AddRow(total, incomplete)
}

// TestSubtaskService_ToggleCompletion_AutoCompletesParent verifies the
// auto-completion engine: finishing the last incomplete subtask moves the
// parent task into the "Done" lane in the same transaction.
//
// Related:
//   - PUT /api/subtasks/:subtaskID/completion
//   - subtask_service.go:ToggleCompletion()
//
// Verifies:
//   - sibling counts read under the parent row lock
//   - parent marked completed and moved to the Done lane atomically
//   - the automatic transition gets its own audit entry
//   - scrum masters and the current assignee notified after commit
func TestSubtaskService_ToggleCompletion_AutoCompletesParent(t *testing.T) {
	mock := newMockDB(t)

	// Task 10 in group 1, currently held by user 4. Actor is user 2,
	// group 1 has one scrum master (user 3).
	holder := 4
	completedBy := 2

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.+)FROM subtasks WHERE id =").
		WithArgs(50).
		WillReturnRows(subtaskRows(50, 10, 1, false))
	expectTaskForUpdate(mock, 10, taskRows(10, 1, 1, &holder))
	expectMember(mock, 1, 2, models.RoleOwner)
	mock.ExpectExec("UPDATE subtasks(.+)SET is_completed =").
		WithArgs(50, true, &completedBy).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("SELECT(.+)FROM users WHERE id =").
		WithArgs(2).
		WillReturnRows(userRows(2, "Bob", nil))
	expectAudit(mock, 2, models.AuditActionCompleteSubtask)
	mock.ExpectQuery("SELECT user_id FROM group_members WHERE group_id =").
		WithArgs(1, models.RoleScrumMaster).
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(3))
	mock.ExpectQuery("SELECT COUNT(.+)FROM subtasks WHERE parent_task_id =").
		WithArgs(10).
		WillReturnRows(siblingCounts(2, 0))
	mock.ExpectQuery("SELECT(.+)FROM task_statuses WHERE group_id =(.+)name =").
		WithArgs(1, models.DoneStatusName).
		WillReturnRows(statusRows(7, 1, models.DoneStatusName))
	mock.ExpectExec("UPDATE tasks(.+)is_completed = true").
		WithArgs(10, 7).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	expectAudit(mock, 2, models.AuditActionAutoCompleteTask)
	mock.ExpectCommit()

	// Post-commit: one notification to the scrum master, one to the holder.
	expectNotification(mock, 3, models.NotificationSubtaskCompleted)
	expectNotification(mock, 4, models.NotificationTaskCompleted)

	svc := services.NewSubtaskService(services.NewNotificationService(nil))

	subtask, err := svc.ToggleCompletion(context.Background(), 50, 2, true)

	assert.NoError(t, err)
	require.NotNil(t, subtask)
	assert.True(t, subtask.IsCompleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSubtaskService_ToggleCompletion_SiblingsStillOpen verifies the engine
// does not touch the parent while any sibling remains incomplete.
func TestSubtaskService_ToggleCompletion_SiblingsStillOpen(t *testing.T) {
	mock := newMockDB(t)

	completedBy := 2

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.+)FROM subtasks WHERE id =").
		WithArgs(50).
		WillReturnRows(subtaskRows(50, 10, 0, false))
	expectTaskForUpdate(mock, 10, taskRows(10, 1, 1, nil))
	expectMember(mock, 1, 2, models.RoleAttendee)
	mock.ExpectExec("UPDATE subtasks(.+)SET is_completed =").
		WithArgs(50, true, &completedBy).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("SELECT(.+)FROM users WHERE id =").
		WithArgs(2).
		WillReturnRows(userRows(2, "Bob", nil))
	expectAudit(mock, 2, models.AuditActionCompleteSubtask)
	mock.ExpectQuery("SELECT user_id FROM group_members WHERE group_id =").
		WithArgs(1, models.RoleScrumMaster).
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(3))
	// One sibling still open, so no Done lookup and no task update follow.
	mock.ExpectQuery("SELECT COUNT(.+)FROM subtasks WHERE parent_task_id =").
		WithArgs(10).
		WillReturnRows(siblingCounts(3, 1))
	mock.ExpectCommit()

	expectNotification(mock, 3, models.NotificationSubtaskCompleted)

	svc := services.NewSubtaskService(services.NewNotificationService(nil))

	_, err := svc.ToggleCompletion(context.Background(), 50, 2, true)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSubtaskService_ToggleCompletion_Idempotent verifies completing an
// already completed subtask is a committed no-op: no writes, no audit entry,
// no notifications.
func TestSubtaskService_ToggleCompletion_Idempotent(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.+)FROM subtasks WHERE id =").
		WithArgs(50).
		WillReturnRows(subtaskRows(50, 10, 0, true))
	expectTaskForUpdate(mock, 10, taskRows(10, 1, 1, nil))
	expectMember(mock, 1, 2, models.RoleAttendee)
	mock.ExpectCommit()

	svc := services.NewSubtaskService(services.NewNotificationService(nil))

	subtask, err := svc.ToggleCompletion(context.Background(), 50, 2, true)

	assert.NoError(t, err)
	assert.True(t, subtask.IsCompleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSubtaskService_ToggleCompletion_ReopenKeepsParent verifies un-completing
// a subtask never regresses the parent task: the reopen path audits the
// toggle and nothing else.
func TestSubtaskService_ToggleCompletion_ReopenKeepsParent(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.+)FROM subtasks WHERE id =").
		WithArgs(50).
		WillReturnRows(subtaskRows(50, 10, 0, true))
	expectTaskForUpdate(mock, 10, taskRows(10, 1, 1, nil))
	expectMember(mock, 1, 2, models.RoleAttendee)
	mock.ExpectExec("UPDATE subtasks(.+)SET is_completed =").
		WithArgs(50, false, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("SELECT(.+)FROM users WHERE id =").
		WithArgs(2).
		WillReturnRows(userRows(2, "Bob", nil))
	expectAudit(mock, 2, models.AuditActionReopenSubtask)
	mock.ExpectCommit()

	svc := services.NewSubtaskService(services.NewNotificationService(nil))

	subtask, err := svc.ToggleCompletion(context.Background(), 50, 2, false)

	assert.NoError(t, err)
	assert.False(t, subtask.IsCompleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSubtaskService_CreateSubtask_OwnerSuccess verifies an owner can break
// down any task, with the new subtask ordered after existing siblings.
func TestSubtaskService_CreateSubtask_OwnerSuccess(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	expectTaskForUpdate(mock, 10, taskRows(10, 1, 1, nil))
	expectMember(mock, 1, 1, models.RoleOwner)
	mock.ExpectQuery("SELECT COUNT(.+)FROM subtasks WHERE parent_task_id =").
		WithArgs(10).
		WillReturnRows(siblingCounts(2, 1))
	mock.ExpectQuery("INSERT INTO subtasks").
		WithArgs(10, "Y2lwaGVydGV4dA", "bm9uY2U", pgxmock.AnyArg(), pgxmock.AnyArg(),
			2, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(51, testTime, testTime))
	mock.ExpectQuery("SELECT(.+)FROM users WHERE id =").
		WithArgs(1).
		WillReturnRows(userRows(1, "Alice", nil))
	expectAudit(mock, 1, models.AuditActionCreateSubtask)
	mock.ExpectCommit()

	svc := services.NewSubtaskService(services.NewNotificationService(nil))

	subtask, err := svc.CreateSubtask(context.Background(), 1, services.CreateSubtaskInput{
		ParentTaskID:   10,
		EncryptedTitle: "Y2lwaGVydGV4dA",
		TitleNonce:     "bm9uY2U",
	})

	assert.NoError(t, err)
	require.NotNil(t, subtask)
	assert.Equal(t, 51, subtask.ID)
	assert.Equal(t, 2, subtask.Order, "order should be the sibling count at insert time")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSubtaskService_CreateSubtask_AttendeeForbidden verifies attendees
// cannot create subtasks.
func TestSubtaskService_CreateSubtask_AttendeeForbidden(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	expectTaskForUpdate(mock, 10, taskRows(10, 1, 1, nil))
	expectMember(mock, 1, 3, models.RoleAttendee)
	mock.ExpectRollback()

	svc := services.NewSubtaskService(services.NewNotificationService(nil))

	_, err := svc.CreateSubtask(context.Background(), 3, services.CreateSubtaskInput{
		ParentTaskID:   10,
		EncryptedTitle: "Y2lwaGVydGV4dA",
		TitleNonce:     "bm9uY2U",
	})

	assert.True(t, apperr.IsKind(err, apperr.KindPermissionDenied), "expected permission_denied, got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSubtaskService_CreateSubtask_ScrumMasterNeedsDelegation verifies a
// scrum master may only break down a task that appears delegated to them in
// the chain.
func TestSubtaskService_CreateSubtask_ScrumMasterNeedsDelegation(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	expectTaskForUpdate(mock, 10, taskRows(10, 1, 1, nil))
	expectMember(mock, 1, 2, models.RoleScrumMaster)
	mock.ExpectQuery("SELECT(.+)FROM assignment_chain WHERE task_id =").
		WithArgs(10).
		WillReturnRows(chainRows(models.ChainEntry{
			TaskID: 10, Position: 0, AssignedBy: 1, AssignedTo: 4,
			AssignerRole: models.RoleOwner, AssigneeRole: models.RoleAttendee,
		}))
	mock.ExpectRollback()

	svc := services.NewSubtaskService(services.NewNotificationService(nil))

	_, err := svc.CreateSubtask(context.Background(), 2, services.CreateSubtaskInput{
		ParentTaskID:   10,
		EncryptedTitle: "Y2lwaGVydGV4dA",
		TitleNonce:     "bm9uY2U",
	})

	assert.True(t, apperr.IsKind(err, apperr.KindNotDelegated), "expected not_delegated, got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSubtaskService_CreateSubtask_MissingCiphertext verifies the payload
// guard rejects a subtask without title ciphertext before touching the
// database.
func TestSubtaskService_CreateSubtask_MissingCiphertext(t *testing.T) {
	mock := newMockDB(t)

	svc := services.NewSubtaskService(services.NewNotificationService(nil))

	_, err := svc.CreateSubtask(context.Background(), 1, services.CreateSubtaskInput{
		ParentTaskID: 10,
	})

	assert.True(t, apperr.IsKind(err, apperr.KindInvalid), "expected invalid, got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSubtaskService_DelegateSubtask_Success verifies a scrum master can
// point a subtask at an attendee.
func TestSubtaskService_DelegateSubtask_Success(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.+)FROM subtasks WHERE id =").
		WithArgs(50).
		WillReturnRows(subtaskRows(50, 10, 0, false))
	mock.ExpectQuery("SELECT(.+)FROM tasks WHERE id =").
		WithArgs(10).
		WillReturnRows(taskRows(10, 1, 1, nil))
	expectMember(mock, 1, 2, models.RoleScrumMaster)
	expectMember(mock, 1, 4, models.RoleAttendee)
	mock.ExpectExec("UPDATE subtasks SET assigned_to =").
		WithArgs(50, 4).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("SELECT(.+)FROM users WHERE id =").
		WithArgs(2).
		WillReturnRows(userRows(2, "Bob", nil))
	expectAudit(mock, 2, models.AuditActionDelegateSubtask)
	mock.ExpectCommit()

	expectNotification(mock, 4, models.NotificationTaskAssigned)

	svc := services.NewSubtaskService(services.NewNotificationService(nil))

	err := svc.DelegateSubtask(context.Background(), 50, 2, 4)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSubtaskService_DelegateSubtask_AlreadyAssigned verifies re-pointing a
// subtask at its current assignee is rejected before any write.
func TestSubtaskService_DelegateSubtask_AlreadyAssigned(t *testing.T) {
	mock := newMockDB(t)

	assignee := 4
	rows := pgxmock.NewRows([]string{"id", "parent_task_id", "encrypted_title", "title_nonce",
		"encrypted_description", "description_nonce", "order_num", "is_completed",
		"completed_at", "completed_by", "assigned_to", "created_at", "updated_at"}).
		AddRow(50, 10, "Y2lwaGVydGV4dA", "bm9uY2U", nil, nil, 0, false,
			nil, nil, &assignee, testTime, testTime)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.+)FROM subtasks WHERE id =").
		WithArgs(50).
		WillReturnRows(rows)
	mock.ExpectQuery("SELECT(.+)FROM tasks WHERE id =").
		WithArgs(10).
		WillReturnRows(taskRows(10, 1, 1, nil))
	expectMember(mock, 1, 2, models.RoleScrumMaster)
	mock.ExpectRollback()

	svc := services.NewSubtaskService(services.NewNotificationService(nil))

	err := svc.DelegateSubtask(context.Background(), 50, 2, 4)

	assert.True(t, apperr.IsKind(err, apperr.KindAlreadyAssigned), "expected already_assigned, got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestSubtaskService_DelegateSubtask_OnlyScrumMasters verifies owners and
// attendees cannot delegate subtasks; the subtask pointer is a scrum master
// tool.
func TestSubtaskService_DelegateSubtask_OnlyScrumMasters(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.+)FROM subtasks WHERE id =").
		WithArgs(50).
		WillReturnRows(subtaskRows(50, 10, 0, false))
	mock.ExpectQuery("SELECT(.+)FROM tasks WHERE id =").
		WithArgs(10).
		WillReturnRows(taskRows(10, 1, 1, nil))
	expectMember(mock, 1, 1, models.RoleOwner)
	mock.ExpectRollback()

	svc := services.NewSubtaskService(services.NewNotificationService(nil))

	err := svc.DelegateSubtask(context.Background(), 50, 1, 4)

	assert.True(t, apperr.IsKind(err, apperr.KindPermissionDenied), "expected permission_denied, got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
