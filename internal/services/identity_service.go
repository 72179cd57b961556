package services

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/jackc/pgx/v5"

	"github.com/flvvius/cotask/internal/apperr"
	"github.com/flvvius/cotask/internal/database"
	"github.com/flvvius/cotask/internal/models"
	"github.com/flvvius/cotask/internal/repository"
)

// IdentityService resolves external identities to local user records and
// handles the boundary credentials for the built-in login.
//
// Security Notes:
//   - bcrypt with constant-time comparison for password verification
//   - login failures return the same error kind whether the email is unknown
//     or the password is wrong, so account existence is not revealed
//   - the private half of a user's keypair never reaches this service;
//     clients publish only the public key
type IdentityService struct {
	userRepo *repository.UserRepository
}

// NewIdentityService creates an identity service.
func NewIdentityService() *IdentityService {
	return &IdentityService{
		userRepo: repository.NewUserRepository(),
	}
}

// Resolve maps identity-provider claims to a local user, creating the record
// on first contact and refreshing the provider-supplied profile fields on
// every later one. Idempotent per subject.
func (s *IdentityService) Resolve(ctx context.Context, claims models.IdentityClaims) (*models.User, error) {
	if claims.Subject == "" {
		return nil, apperr.New(apperr.KindNotAuthenticated, "missing identity subject")
	}

	var user *models.User
	err := withTx(ctx, func(tx pgx.Tx) error {
		var err error
		user, err = s.userRepo.FindByExternalID(ctx, tx, claims.Subject)
		if err == nil {
			if uerr := s.userRepo.UpdateClaims(ctx, tx, user.ID, claims.Email, claims.Name, claims.Picture); uerr != nil {
				return uerr
			}
			user, err = s.userRepo.GetByID(ctx, tx, user.ID)
			return err
		}
		if !apperr.IsKind(err, apperr.KindNotFound) {
			return err
		}

		name := claims.Name
		if name == "" {
			name = claims.Email
		}
		user = &models.User{
			ExternalID: claims.Subject,
			Email:      claims.Email,
			Name:       name,
		}
		if claims.Picture != "" {
			user.ProfilePicture = &claims.Picture
		}
		return s.userRepo.Create(ctx, tx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Register creates a user with built-in credentials.
// The external id is derived from the email so the record resolves the same
// way regardless of which boundary created it.
func (s *IdentityService) Register(ctx context.Context, email, name, password string, defaultRole *models.Role) (*models.User, error) {
	if email == "" || password == "" {
		return nil, apperr.New(apperr.KindInvalid, "email and password are required")
	}
	if defaultRole != nil && !defaultRole.Valid() {
		return nil, apperr.Newf(apperr.KindInvalid, "invalid role %q", *defaultRole)
	}

	hash, err := s.HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if name == "" {
		name = email
	}

	user := &models.User{
		ExternalID:   "local:" + email,
		Email:        email,
		Name:         name,
		DefaultRole:  defaultRole,
		PasswordHash: hash,
	}
	if err := s.userRepo.Create(ctx, database.DB, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate verifies built-in credentials and returns the user on success.
func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, database.DB, email)
	if err != nil {
		if apperr.IsKind(err, apperr.KindNotFound) {
			return nil, apperr.New(apperr.KindNotAuthenticated, "invalid credentials")
		}
		return nil, err
	}

	// Constant-time comparison, never log or store the plaintext.
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.New(apperr.KindNotAuthenticated, "invalid credentials")
	}
	return user, nil
}

// HashPassword generates a bcrypt hash of the provided plaintext password.
func (s *IdentityService) HashPassword(password string) (string, error) {
	// Cost 12 gives 2^12 iterations, balancing security and login latency.
	const bcryptCost = 12
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	return string(hash), err
}

// GetUser returns one user record.
func (s *IdentityService) GetUser(ctx context.Context, userID int) (*models.User, error) {
	return s.userRepo.GetByID(ctx, database.DB, userID)
}

// UpdateProfile patches the caller's editable profile fields.
// Nil pointers leave stored values untouched.
func (s *IdentityService) UpdateProfile(ctx context.Context, userID int, name, description, contact *string, defaultRole *models.Role) (*models.User, error) {
	if defaultRole != nil && !defaultRole.Valid() {
		return nil, apperr.Newf(apperr.KindInvalid, "invalid role %q", *defaultRole)
	}
	var user *models.User
	err := withTx(ctx, func(tx pgx.Tx) error {
		if err := s.userRepo.UpdateProfile(ctx, tx, userID, name, description, contact, nil, defaultRole); err != nil {
			return err
		}
		var err error
		user, err = s.userRepo.GetByID(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// PublishPublicKey stores the caller's box public key so other members can
// wrap symmetric keys for them. Overwrites any previously published key.
func (s *IdentityService) PublishPublicKey(ctx context.Context, userID int, publicKey string) error {
	if publicKey == "" {
		return apperr.New(apperr.KindInvalid, "public key is required")
	}
	return s.userRepo.UpdateProfile(ctx, database.DB, userID, nil, nil, nil, &publicKey, nil)
}

// ListProfiles returns public profiles for all users, for the member picker.
func (s *IdentityService) ListProfiles(ctx context.Context) ([]models.PublicProfile, error) {
	return s.userRepo.ListProfiles(ctx, database.DB)
}
