package services_test

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/flvvius/cotask/internal/apperr"
	"github.com/flvvius/cotask/internal/models"
	"github.com/flvvius/cotask/internal/services"
)

// userRowsWithHash builds a user row carrying a real bcrypt hash, for the
// authentication tests.
func userRowsWithHash(id int, email, passwordHash string) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "external_id", "email", "name", "profile_picture",
		"description", "contact", "default_role", "public_key", "password_hash",
		"created_at", "updated_at"}).
		AddRow(id, "local:"+email, email, "Test User", nil,
			nil, nil, nil, nil, passwordHash, testTime, testTime)
}

// TestIdentityService_Register verifies registration stores a bcrypt hash
// and derives the external id from the email.
//
// Related:
//   - POST /api/auth/register
//   - identity_service.go:Register()
func TestIdentityService_Register(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectQuery("INSERT INTO users").
		WithArgs("local:new@example.com", "new@example.com", "New User", pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(1, testTime, testTime))

	svc := services.NewIdentityService()

	user, err := svc.Register(context.Background(), "new@example.com", "New User", "Sup3rSecret", nil)

	assert.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, "local:new@example.com", user.ExternalID)
	assert.NotEqual(t, "Sup3rSecret", user.PasswordHash, "plaintext must never be stored")
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("Sup3rSecret")),
		"stored hash should verify against the original password")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestIdentityService_Authenticate_UnknownEmail verifies the login failure
// for an unknown email carries the same error kind as a wrong password, so
// account existence is not revealed.
func TestIdentityService_Authenticate_UnknownEmail(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectQuery("SELECT(.+)FROM users WHERE email =").
		WithArgs("ghost@example.com").
		WillReturnError(pgx.ErrNoRows)

	svc := services.NewIdentityService()

	_, err := svc.Authenticate(context.Background(), "ghost@example.com", "whatever")

	assert.True(t, apperr.IsKind(err, apperr.KindNotAuthenticated), "expected not_authenticated, got %v", err)
	assert.EqualError(t, err, "invalid credentials")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestIdentityService_Authenticate_WrongPassword verifies a wrong password
// yields the identical error as an unknown email.
func TestIdentityService_Authenticate_WrongPassword(t *testing.T) {
	mock := newMockDB(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT(.+)FROM users WHERE email =").
		WithArgs("user@example.com").
		WillReturnRows(userRowsWithHash(1, "user@example.com", string(hash)))

	svc := services.NewIdentityService()

	_, err = svc.Authenticate(context.Background(), "user@example.com", "wrong-password")

	assert.True(t, apperr.IsKind(err, apperr.KindNotAuthenticated), "expected not_authenticated, got %v", err)
	assert.EqualError(t, err, "invalid credentials")
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestIdentityService_Authenticate_Success verifies valid credentials return
// the user record.
func TestIdentityService_Authenticate_Success(t *testing.T) {
	mock := newMockDB(t)

	hash, err := bcrypt.GenerateFromPassword([]byte("correct-password"), bcrypt.MinCost)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT(.+)FROM users WHERE email =").
		WithArgs("user@example.com").
		WillReturnRows(userRowsWithHash(7, "user@example.com", string(hash)))

	svc := services.NewIdentityService()

	user, err := svc.Authenticate(context.Background(), "user@example.com", "correct-password")

	assert.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, 7, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestIdentityService_Resolve_FirstContact verifies an unknown identity
// subject creates a user record inside the transaction.
//
// Related:
//   - identity_service.go:Resolve()
func TestIdentityService_Resolve_FirstContact(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.+)FROM users WHERE external_id =").
		WithArgs("provider|abc123").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("INSERT INTO users").
		WithArgs("provider|abc123", "fresh@example.com", "Fresh User", pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
			AddRow(9, testTime, testTime))
	mock.ExpectCommit()

	svc := services.NewIdentityService()

	user, err := svc.Resolve(context.Background(), models.IdentityClaims{
		Subject: "provider|abc123",
		Email:   "fresh@example.com",
		Name:    "Fresh User",
	})

	assert.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, 9, user.ID)
	assert.Equal(t, "provider|abc123", user.ExternalID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestIdentityService_Resolve_ExistingSubject verifies a known subject has
// its provider-supplied fields refreshed and the stored record returned.
func TestIdentityService_Resolve_ExistingSubject(t *testing.T) {
	mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT(.+)FROM users WHERE external_id =").
		WithArgs("provider|abc123").
		WillReturnRows(userRowsWithHash(9, "user@example.com", ""))
	mock.ExpectExec("UPDATE users").
		WithArgs(9, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("SELECT(.+)FROM users WHERE id =").
		WithArgs(9).
		WillReturnRows(userRowsWithHash(9, "user@example.com", ""))
	mock.ExpectCommit()

	svc := services.NewIdentityService()

	user, err := svc.Resolve(context.Background(), models.IdentityClaims{
		Subject: "provider|abc123",
		Email:   "user@example.com",
	})

	assert.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, 9, user.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestIdentityService_Resolve_MissingSubject verifies an empty subject is
// rejected before any database work.
func TestIdentityService_Resolve_MissingSubject(t *testing.T) {
	mock := newMockDB(t)

	svc := services.NewIdentityService()

	_, err := svc.Resolve(context.Background(), models.IdentityClaims{})

	assert.True(t, apperr.IsKind(err, apperr.KindNotAuthenticated), "expected not_authenticated, got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestIdentityService_PublishPublicKey_Required verifies an empty key is
// rejected.
func TestIdentityService_PublishPublicKey_Required(t *testing.T) {
	mock := newMockDB(t)

	svc := services.NewIdentityService()

	err := svc.PublishPublicKey(context.Background(), 4, "")

	assert.True(t, apperr.IsKind(err, apperr.KindInvalid), "expected invalid, got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
