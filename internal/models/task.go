package models

import "time"

// Task represents a unit of work inside a group. Title and description are
// end-to-end encrypted: the server stores only ciphertext and nonce, and
// members decrypt with the task key wrapped for them in user_task_keys.
//
// Database Table: tasks
// Invariants (enforced by the delegation service, see assignment_chain):
//   - chain length never exceeds MaxChainLength
//   - no user appears twice in {creator} ∪ chain assignees
//   - CurrentAssignee mirrors the newest chain entry, nil when the chain is empty
//   - a task cannot enter the "Done" lane while any subtask is incomplete
type Task struct {
	ID                   int        `db:"id"`                    // Primary key
	GroupID              int        `db:"group_id"`              // Owning group
	EncryptedTitle       string     `db:"encrypted_title"`       // Base64 secretbox ciphertext
	TitleNonce           string     `db:"title_nonce"`           // Base64 secretbox nonce
	EncryptedDescription *string    `db:"encrypted_description"` // Optional ciphertext
	DescriptionNonce     *string    `db:"description_nonce"`     // Nonce for the description
	StatusID             int        `db:"status_id"`             // Current lane
	Priority             Priority   `db:"priority"`              // low / medium / high / urgent
	Deadline             *time.Time `db:"deadline"`              // Optional deadline
	CreatorID            int        `db:"creator_id"`            // Who created the task
	CurrentAssignee      *int       `db:"current_assignee"`      // Holder per the chain's last entry
	IsCompleted          bool       `db:"is_completed"`          // Set by the auto-completion engine
	CompletedAt          *time.Time `db:"completed_at"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
}

// MaxChainLength bounds the delegation chain: the creator plus at most three
// delegations, so at most four people ever touch a task.
const MaxChainLength = 3

// MaxAssignments bounds the legacy assignment roster kept for compatibility.
const MaxAssignments = 3

// ChainEntry is one delegation event. Entries are append-only: once written
// they are never edited or removed, forming the audit trail of delegation.
// Roles are frozen at delegation time, so later role changes in the group do
// not rewrite history.
//
// Database Table: assignment_chain
type ChainEntry struct {
	ID           int       `db:"id"`            // Primary key
	TaskID       int       `db:"task_id"`       // Owning task
	Position     int       `db:"position"`      // 0-based position in the chain
	AssignedBy   int       `db:"assigned_by"`   // Delegating user
	AssignedTo   int       `db:"assigned_to"`   // Receiving user
	AssignerRole Role      `db:"assigner_role"` // Delegator's group role at the time
	AssigneeRole Role      `db:"assignee_role"` // Recipient's group role at the time
	CreatedAt    time.Time `db:"created_at"`    // When the delegation happened
}

// TaskAssignment is one occupant of the legacy roster surface.
//
// Legacy: the roster predates the delegation chain and is retained only for
// ToggleSelfAssignment compatibility. It never interacts with the chain or
// CurrentAssignee; the chain is the canonical assignment mechanism.
//
// Database Table: task_assignments (composite primary key task_id, user_id)
type TaskAssignment struct {
	TaskID   int  `db:"task_id"`
	UserID   int  `db:"user_id"`
	TaskRole Role `db:"task_role"` // owner for the first occupant, attendee after
}

// TaskWithCounts is a task enriched with subtask counters for list views.
type TaskWithCounts struct {
	Task
	SubtaskCount          int `json:"subtaskCount"`
	CompletedSubtaskCount int `json:"completedSubtaskCount"`
}

// UserTaskKey is a task's symmetric key wrapped for one authorized member.
//
// Database Table: user_task_keys (composite primary key task_id, user_id)
type UserTaskKey struct {
	TaskID       int       `db:"task_id"`
	UserID       int       `db:"user_id"`
	EncryptedKey string    `db:"encrypted_key"` // Base64 box ciphertext of the task key
	KeyNonce     string    `db:"key_nonce"`     // Base64 box nonce
	GrantedBy    int       `db:"granted_by"`
	GrantedAt    time.Time `db:"granted_at"`
}
