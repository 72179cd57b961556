package models

import "time"

// User represents a CoTask account. Users are created on first authenticated
// contact by the identity resolver and are never hard-deleted.
//
// Database Table: users
// Security Note: PasswordHash must never be exposed in API responses or logs.
// The public key is published by the client once its device keypair exists;
// the matching private key never reaches the server.
type User struct {
	ID             int       `db:"id"`              // Primary key, auto-increment
	ExternalID     string    `db:"external_id"`     // Stable subject id from the identity provider
	Email          string    `db:"email"`           // Unique, used for login and member lookup
	Name           string    `db:"name"`            // Display name
	ProfilePicture *string   `db:"profile_picture"` // Optional avatar URL
	Description    *string   `db:"description"`     // Optional profile blurb
	Contact        *string   `db:"contact"`         // Optional contact info
	DefaultRole    *Role     `db:"default_role"`    // UX hint only, never an authorization source
	PublicKey      *string   `db:"public_key"`      // Base64 NaCl box public key, nil until published
	PasswordHash   string    `db:"password_hash"`   // bcrypt hash for boundary auth
	CreatedAt      time.Time `db:"created_at"`      // Account creation timestamp
	UpdatedAt      time.Time `db:"updated_at"`      // Last profile mutation
}

// IdentityClaims are the profile claims the authentication boundary resolves
// once per request chain and hands to the identity service. Services never
// read ambient auth state; they take an already-resolved acting user.
type IdentityClaims struct {
	Subject string // Stable external identity (required)
	Email   string
	Name    string
	Picture string
}

// PublicProfile is the subset of User safe to return to other members.
type PublicProfile struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	ProfilePicture *string `json:"profilePicture,omitempty"`
	PublicKey      *string `json:"publicKey,omitempty"`
}
