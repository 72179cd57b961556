package models

import "time"

// Subtask is a child item of a task. Subtasks form a flat one-level
// hierarchy: they can never have subtasks of their own.
//
// Database Table: subtasks
type Subtask struct {
	ID                   int        `db:"id"`             // Primary key
	ParentTaskID         int        `db:"parent_task_id"` // Owning task
	EncryptedTitle       string     `db:"encrypted_title"`
	TitleNonce           string     `db:"title_nonce"`
	EncryptedDescription *string    `db:"encrypted_description"`
	DescriptionNonce     *string    `db:"description_nonce"`
	Order                int        `db:"order_num"` // count(existing siblings) at insert time
	IsCompleted          bool       `db:"is_completed"`
	CompletedAt          *time.Time `db:"completed_at"`
	CompletedBy          *int       `db:"completed_by"`
	AssignedTo           *int       `db:"assigned_to"` // Optional single assignee
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
}
