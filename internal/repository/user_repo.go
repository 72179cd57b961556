// Package repository implements the database access layer for the CoTask backend.
// This file handles user records and identity resolution lookups.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/flvvius/cotask/internal/apperr"
	"github.com/flvvius/cotask/internal/database"
	"github.com/flvvius/cotask/internal/models"
)

// userColumns is the canonical select list for user rows.
const userColumns = `id, external_id, email, name, profile_picture, description,
	contact, default_role, public_key, password_hash, created_at, updated_at`

// UserRepository handles user-related database operations.
type UserRepository struct{}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository() *UserRepository {
	return &UserRepository{}
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.ExternalID, &u.Email, &u.Name, &u.ProfilePicture,
		&u.Description, &u.Contact, &u.DefaultRole, &u.PublicKey,
		&u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "user not found")
		}
		return nil, err
	}
	return &u, nil
}

// GetByID retrieves a user by primary key.
func (r *UserRepository) GetByID(ctx context.Context, q database.Querier, userID int) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return scanUser(q.QueryRow(ctx, query, userID))
}

// FindByEmail retrieves a user by email address.
// Used by boundary authentication and add-member-by-email.
func (r *UserRepository) FindByEmail(ctx context.Context, q database.Querier, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return scanUser(q.QueryRow(ctx, query, email))
}

// FindByExternalID retrieves a user by identity-provider subject.
func (r *UserRepository) FindByExternalID(ctx context.Context, q database.Querier, externalID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE external_id = $1`
	return scanUser(q.QueryRow(ctx, query, externalID))
}

// Create inserts a new user record.
//
// Side Effects: populates user.ID, user.CreatedAt and user.UpdatedAt.
func (r *UserRepository) Create(ctx context.Context, q database.Querier, user *models.User) error {
	query := `
		INSERT INTO users (external_id, email, name, profile_picture, description,
			contact, default_role, public_key, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	return q.QueryRow(ctx, query, user.ExternalID, user.Email, user.Name,
		user.ProfilePicture, user.Description, user.Contact, user.DefaultRole,
		user.PublicKey, user.PasswordHash).
		Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

// UpdateClaims refreshes the profile fields an identity provider supplies.
// Empty claim values leave the stored value untouched.
func (r *UserRepository) UpdateClaims(ctx context.Context, q database.Querier, userID int, email, name, picture string) error {
	query := `
		UPDATE users
		SET email = COALESCE(NULLIF($2, ''), email),
		    name = COALESCE(NULLIF($3, ''), name),
		    profile_picture = COALESCE(NULLIF($4, ''), profile_picture),
		    updated_at = now()
		WHERE id = $1
	`
	_, err := q.Exec(ctx, query, userID, email, name, picture)
	return err
}

// UpdateProfile patches the user-editable profile fields.
// Nil pointers leave the stored value untouched.
func (r *UserRepository) UpdateProfile(ctx context.Context, q database.Querier, userID int, name, description, contact, publicKey *string, defaultRole *models.Role) error {
	query := `
		UPDATE users
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    contact = COALESCE($4, contact),
		    public_key = COALESCE($5, public_key),
		    default_role = COALESCE($6, default_role),
		    updated_at = now()
		WHERE id = $1
	`
	_, err := q.Exec(ctx, query, userID, name, description, contact, publicKey, defaultRole)
	return err
}

// SetDefaultRole stores the first-login role hint. This is a UX hint only
// and never an authorization source; real roles live in group_members.
func (r *UserRepository) SetDefaultRole(ctx context.Context, q database.Querier, userID int, role models.Role) error {
	query := `UPDATE users SET default_role = $2, updated_at = now() WHERE id = $1`
	_, err := q.Exec(ctx, query, userID, role)
	return err
}

// ListProfiles returns public profiles for all users, for the member picker.
func (r *UserRepository) ListProfiles(ctx context.Context, q database.Querier) ([]models.PublicProfile, error) {
	query := `SELECT id, name, email, profile_picture, public_key FROM users ORDER BY name`

	rows, err := q.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []models.PublicProfile
	for rows.Next() {
		var p models.PublicProfile
		if err := rows.Scan(&p.ID, &p.Name, &p.Email, &p.ProfilePicture, &p.PublicKey); err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
