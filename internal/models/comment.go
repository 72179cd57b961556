package models

import "time"

// Comment is an encrypted remark on a task. Content arrives as ciphertext
// under the task's content key; the server never sees plaintext.
//
// Database Table: comments
type Comment struct {
	ID               int       `db:"id"`      // Primary key
	TaskID           int       `db:"task_id"` // Commented task
	UserID           int       `db:"user_id"` // Author
	EncryptedContent string    `db:"encrypted_content"`
	ContentNonce     string    `db:"content_nonce"`
	IsEdited         bool      `db:"is_edited"` // Set once the author edits
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}
