package repository_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flvvius/cotask/internal/apperr"
	"github.com/flvvius/cotask/internal/models"
	"github.com/flvvius/cotask/internal/repository"
)

// userRow builds one user row matching the canonical select list.
func userRow(id int, email, name string, defaultRole *models.Role) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "external_id", "email", "name", "profile_picture",
		"description", "contact", "default_role", "public_key", "password_hash",
		"created_at", "updated_at"}).
		AddRow(id, "local:"+email, email, name, nil, nil, nil, defaultRole, nil, "",
			testTime, testTime)
}

// TestUserRepository_FindByEmail verifies the login lookup.
func TestUserRepository_FindByEmail(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery("SELECT(.+)FROM users WHERE email =").
		WithArgs("alice@example.com").
		WillReturnRows(userRow(1, "alice@example.com", "Alice", nil))

	repo := repository.NewUserRepository()

	user, err := repo.FindByEmail(context.Background(), mock, "alice@example.com")

	assert.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "Alice", user.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUserRepository_FindByExternalID_NotFound verifies an unknown subject
// maps to the not_found error kind the identity resolver branches on.
func TestUserRepository_FindByExternalID_NotFound(t *testing.T) {
	mock := newMock(t)

	mock.ExpectQuery("SELECT(.+)FROM users WHERE external_id =").
		WithArgs("provider|nobody").
		WillReturnError(pgx.ErrNoRows)

	repo := repository.NewUserRepository()

	_, err := repo.FindByExternalID(context.Background(), mock, "provider|nobody")

	assert.True(t, apperr.IsKind(err, apperr.KindNotFound), "expected not_found, got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUserRepository_Create verifies user insertion populates the generated
// fields.
func TestUserRepository_Create(t *testing.T) {
	mock := newMock(t)

	user := &models.User{
		ExternalID: "local:new@example.com",
		Email:      "new@example.com",
		Name:       "New User",
	}

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("local:new@example.com", "new@example.com", "New User", pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(9, testTime, testTime))

	repo := repository.NewUserRepository()

	err := repo.Create(context.Background(), mock, user)

	assert.NoError(t, err)
	assert.Equal(t, 9, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUserRepository_ListProfiles verifies only public fields come back for
// the member picker.
func TestUserRepository_ListProfiles(t *testing.T) {
	mock := newMock(t)

	publicKey := "cHVibGljS2V5"
	rows := pgxmock.NewRows([]string{"id", "name", "email", "profile_picture", "public_key"}).
		AddRow(1, "Alice", "alice@example.com", nil, &publicKey).
		AddRow(2, "Bob", "bob@example.com", nil, nil)

	mock.ExpectQuery("SELECT(.+)FROM users ORDER BY name").
		WillReturnRows(rows)

	repo := repository.NewUserRepository()

	profiles, err := repo.ListProfiles(context.Background(), mock)

	assert.NoError(t, err)
	require.Len(t, profiles, 2)
	require.NotNil(t, profiles[0].PublicKey)
	assert.Equal(t, publicKey, *profiles[0].PublicKey)
	assert.Nil(t, profiles[1].PublicKey, "users who never published a key stay nil")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUserRepository_UpdateProfile verifies the COALESCE patch leaves nil
// fields to the database.
func TestUserRepository_UpdateProfile(t *testing.T) {
	mock := newMock(t)

	name := "Renamed"
	mock.ExpectExec("UPDATE users").
		WithArgs(1, &name, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	repo := repository.NewUserRepository()

	err := repo.UpdateProfile(context.Background(), mock, 1, &name, nil, nil, nil, nil)

	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
