package services_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flvvius/cotask/internal/apperr"
	"github.com/flvvius/cotask/internal/models"
	"github.com/flvvius/cotask/internal/services"
)

// commentRows builds one comment row matching the canonical select list.
func commentRows(id, taskID, userID int, edited bool) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "task_id", "user_id", "encrypted_content",
		"content_nonce", "is_edited", "created_at", "updated_at"}).
		AddRow(id, taskID, userID, "Y2lwaGVydGV4dA", "bm9uY2U", edited, testTime, testTime)
}

// TestCommentService_Add_Success verifies any group member can comment on a
// task in the group, with the comment audited in the same transaction.
//
// Related:
//   - POST /api/tasks/:taskID/comments
//   - comment_service.go:Add()
func TestCommentService_Add_Success(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.+)FROM tasks WHERE id =").
		WithArgs(10).
		WillReturnRows(taskRows(10, 1, 1, nil))
	expectMember(mock, 1, 3, models.RoleAttendee)
	mock.ExpectQuery("INSERT INTO comments").
		WithArgs(10, 3, "Y2lwaGVydGV4dA", "bm9uY2U").
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(70, testTime, testTime))
	mock.ExpectQuery("SELECT(.+)FROM users WHERE id =").
		WithArgs(3).
		WillReturnRows(userRows(3, "Carol", nil))
	expectAudit(mock, 3, models.AuditActionAddComment)
	mock.ExpectCommit()

	svc := services.NewCommentService()

	comment, err := svc.Add(context.Background(), 10, 3, "Y2lwaGVydGV4dA", "bm9uY2U")

	assert.NoError(t, err)
	require.NotNil(t, comment)
	assert.Equal(t, 70, comment.ID)
	assert.False(t, comment.IsEdited)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCommentService_Add_NonMemberForbidden verifies outsiders cannot comment.
func TestCommentService_Add_NonMemberForbidden(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.+)FROM tasks WHERE id =").
		WithArgs(10).
		WillReturnRows(taskRows(10, 1, 1, nil))
	mock.ExpectQuery("SELECT(.+)FROM group_members WHERE group_id =").
		WithArgs(1, 9).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	svc := services.NewCommentService()

	_, err := svc.Add(context.Background(), 10, 9, "Y2lwaGVydGV4dA", "bm9uY2U")

	assert.True(t, apperr.IsKind(err, apperr.KindNotMember), "expected not_member, got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCommentService_Add_MissingCiphertext verifies the payload guard rejects
// a comment without its nonce before touching the database.
func TestCommentService_Add_MissingCiphertext(t *testing.T) {
	mock := newMockDB(t)

	svc := services.NewCommentService()

	_, err := svc.Add(context.Background(), 10, 3, "Y2lwaGVydGV4dA", "")

	assert.True(t, apperr.IsKind(err, apperr.KindInvalid), "expected invalid, got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCommentService_Edit_Success verifies the author can replace their
// ciphertext, with the edited flag set permanently.
//
// Related:
//   - PUT /api/comments/:commentID
//   - comment_service.go:Edit()
func TestCommentService_Edit_Success(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.+)FROM comments WHERE id =").
		WithArgs(70).
		WillReturnRows(commentRows(70, 10, 3, false))
	mock.ExpectQuery("SELECT(.+)FROM tasks WHERE id =").
		WithArgs(10).
		WillReturnRows(taskRows(10, 1, 1, nil))
	mock.ExpectExec("UPDATE comments").
		WithArgs(70, "bmV3Q29udGVudA", "bmV3Tm9uY2U").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("SELECT(.+)FROM users WHERE id =").
		WithArgs(3).
		WillReturnRows(userRows(3, "Carol", nil))
	expectAudit(mock, 3, models.AuditActionEditComment)
	mock.ExpectCommit()

	svc := services.NewCommentService()

	comment, err := svc.Edit(context.Background(), 70, 3, "bmV3Q29udGVudA", "bmV3Tm9uY2U")

	assert.NoError(t, err)
	require.NotNil(t, comment)
	assert.True(t, comment.IsEdited)
	assert.Equal(t, "bmV3Q29udGVudA", comment.EncryptedContent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCommentService_Edit_AuthorOnly verifies nobody but the author may edit
// a comment, regardless of group role.
func TestCommentService_Edit_AuthorOnly(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.+)FROM comments WHERE id =").
		WithArgs(70).
		WillReturnRows(commentRows(70, 10, 3, false))
	mock.ExpectRollback()

	svc := services.NewCommentService()

	_, err := svc.Edit(context.Background(), 70, 1, "bmV3Q29udGVudA", "bmV3Tm9uY2U")

	assert.True(t, apperr.IsKind(err, apperr.KindPermissionDenied), "expected permission_denied, got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestCommentService_List verifies the member gate applies to reads too.
func TestCommentService_List(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectQuery("SELECT(.+)FROM tasks WHERE id =").
		WithArgs(10).
		WillReturnRows(taskRows(10, 1, 1, nil))
	expectMember(mock, 1, 3, models.RoleAttendee)
	mock.ExpectQuery("SELECT(.+)FROM comments WHERE task_id =").
		WithArgs(10).
		WillReturnRows(commentRows(70, 10, 3, false))

	svc := services.NewCommentService()

	comments, err := svc.List(context.Background(), 10, 3)

	assert.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, 70, comments[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
