package models

import "time"

// Group represents a collaboration space owning tasks, statuses and members.
//
// Database Table: groups
type Group struct {
	ID          int       `db:"id"`          // Primary key, auto-increment
	Name        string    `db:"name"`        // Group name
	Description *string   `db:"description"` // Optional description
	Color       *string   `db:"color"`       // Optional hex color for visual identification
	CreatorID   int       `db:"creator_id"`  // Foreign key to users.id
	CreatedAt   time.Time `db:"created_at"`  // Creation timestamp
	UpdatedAt   time.Time `db:"updated_at"`  // Last mutation timestamp
}

// GroupMember represents membership of a user in a group with exactly one role.
//
// Database Table: group_members (composite primary key group_id, user_id)
// Invariant: every group keeps at least one owner at all times. Removing or
// demoting the last owner is rejected by the membership service.
type GroupMember struct {
	GroupID  int       `db:"group_id"`  // Foreign key to groups.id
	UserID   int       `db:"user_id"`   // Foreign key to users.id
	Role     Role      `db:"role"`      // owner, scrum_master or attendee
	JoinedAt time.Time `db:"joined_at"` // When the user joined the group
}

// GroupMemberInfo is a membership enriched with the member's public profile,
// used by the member listing endpoints.
type GroupMemberInfo struct {
	GroupMember
	User PublicProfile `json:"user"`
}

// GroupStats summarizes task progress for a group card.
type GroupStats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Pending   int `json:"pending"`
}

// GroupWithStats is a group enriched with the caller's role and task counters.
type GroupWithStats struct {
	Group
	Role  Role       `json:"role"`
	Stats GroupStats `json:"stats"`
}

// TaskStatus is one lane of a group's ordered status list. Groups are seeded
// with the default "To Do" / "In Progress" / "Done" lanes at creation.
//
// Database Table: task_statuses
type TaskStatus struct {
	ID        int       `db:"id"`         // Primary key
	GroupID   int       `db:"group_id"`   // Owning group
	Name      string    `db:"name"`       // Lane name; "Done" is the terminal lane
	Order     int       `db:"order_num"`  // Position in the lane list
	Color     string    `db:"color"`      // Hex color for UI
	IsDefault bool      `db:"is_default"` // true for the seeded lanes
	CreatedAt time.Time `db:"created_at"`
}

// DoneStatusName is the terminal lane name the auto-completion engine looks
// up when all subtasks of a task are complete.
const DoneStatusName = "Done"

// GroupKey is a group's symmetric content key wrapped for one member.
// Granting or revoking access means inserting or deleting one of these rows;
// the encrypted content itself is never re-encrypted.
//
// Database Table: group_keys (composite primary key group_id, user_id)
type GroupKey struct {
	GroupID      int       `db:"group_id"`
	UserID       int       `db:"user_id"`
	EncryptedKey string    `db:"encrypted_key"` // Base64 box ciphertext of the symmetric key
	KeyNonce     string    `db:"key_nonce"`     // Base64 box nonce
	GrantedBy    int       `db:"granted_by"`    // Who wrapped the key
	GrantedAt    time.Time `db:"granted_at"`
}
