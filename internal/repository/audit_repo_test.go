package repository_test

import (
	"context"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flvvius/cotask/internal/models"
	"github.com/flvvius/cotask/internal/repository"
)

// TestAuditRepository_Log verifies one append-only audit insert.
//
// Related:
//   - audit_repo.go:Log()
func TestAuditRepository_Log(t *testing.T) {
	mock := newMock(t)

	groupID := 1
	entry := &models.AuditLog{
		ActorID:     2,
		ActorName:   "Bob",
		Action:      models.AuditActionDelegateTask,
		EntityType:  models.AuditEntityTask,
		EntityID:    "10",
		GroupID:     &groupID,
		Description: "Bob delegated task 10 to user 3",
	}

	mock.ExpectQuery("INSERT INTO audit_logs").
		WithArgs(2, "Bob", models.AuditActionDelegateTask, models.AuditEntityTask, "10",
			pgxmock.AnyArg(), &groupID, "Bob delegated task 10 to user 3", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(1, testTime))

	repo := repository.NewAuditRepository()

	err := repo.Log(context.Background(), mock, entry)

	assert.NoError(t, err)
	assert.Equal(t, 1, entry.ID)
	assert.Equal(t, testTime, entry.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// auditRow builds one audit listing row.
func auditRow(id int, action string, groupID *int) []interface{} {
	return []interface{}{id, 2, "Bob", action, models.AuditEntityTask, "10",
		nil, groupID, "description", nil, testTime}
}

// TestAuditRepository_ListByGroup verifies the group-scoped listing binds the
// group and the limit.
func TestAuditRepository_ListByGroup(t *testing.T) {
	mock := newMock(t)

	groupID := 1
	rows := pgxmock.NewRows([]string{"id", "actor_id", "actor_name", "action", "entity_type",
		"entity_id", "entity_name", "group_id", "description", "metadata", "created_at"}).
		AddRow(auditRow(2, models.AuditActionAutoCompleteTask, &groupID)...).
		AddRow(auditRow(1, models.AuditActionDelegateTask, &groupID)...)

	mock.ExpectQuery("SELECT(.+)FROM audit_logs WHERE group_id =").
		WithArgs(1, 50).
		WillReturnRows(rows)

	repo := repository.NewAuditRepository()

	entries, err := repo.ListByGroup(context.Background(), mock, 1, 50)

	assert.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.AuditActionAutoCompleteTask, entries[0].Action)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestAuditRepository_ListByActor verifies the personal history listing.
func TestAuditRepository_ListByActor(t *testing.T) {
	mock := newMock(t)

	groupID := 1
	rows := pgxmock.NewRows([]string{"id", "actor_id", "actor_name", "action", "entity_type",
		"entity_id", "entity_name", "group_id", "description", "metadata", "created_at"}).
		AddRow(auditRow(3, models.AuditActionCreateSubtask, &groupID)...)

	mock.ExpectQuery("SELECT(.+)FROM audit_logs WHERE actor_id =").
		WithArgs(2, 100).
		WillReturnRows(rows)

	repo := repository.NewAuditRepository()

	entries, err := repo.ListByActor(context.Background(), mock, 2, 100)

	assert.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 2, entries[0].ActorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
