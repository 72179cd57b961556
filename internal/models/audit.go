package models

import "time"

// AuditEntityType names the kind of entity an audit entry refers to.
type AuditEntityType string

// Audit entity types.
const (
	AuditEntityTask         AuditEntityType = "task"
	AuditEntitySubtask      AuditEntityType = "subtask"
	AuditEntityGroup        AuditEntityType = "group"
	AuditEntityUser         AuditEntityType = "user"
	AuditEntityGroupMember  AuditEntityType = "group_member"
	AuditEntityNotification AuditEntityType = "notification"
	AuditEntityComment      AuditEntityType = "comment"
)

// AuditLog is an append-only record of one mutating action.
// Entries are write-once: never modified or deleted by the core. Every
// mutating operation produces exactly one entry per logical action; bulk
// operations produce one summarizing entry.
//
// Database Table: audit_logs
// Purpose: owner-only audit view, forensic analysis
type AuditLog struct {
	ID          int             `db:"id"`          // Primary key
	ActorID     int             `db:"actor_id"`    // User who performed the action
	ActorName   string          `db:"actor_name"`  // Denormalized for the audit view
	Action      string          `db:"action"`      // Verb, e.g. "delegate_task", "complete_subtask"
	EntityType  AuditEntityType `db:"entity_type"` // Kind of affected entity
	EntityID    string          `db:"entity_id"`   // ID of the affected entity
	EntityName  *string         `db:"entity_name"` // Optional display name (plaintext-safe only)
	GroupID     *int            `db:"group_id"`    // Group scope, when applicable
	Description string          `db:"description"` // Human-readable summary
	Metadata    *string         `db:"metadata"`    // JSON-encoded extra details
	CreatedAt   time.Time       `db:"created_at"`  // When the action occurred
}

// Audit action verbs used by the services.
const (
	AuditActionCreateGroup      = "create_group"
	AuditActionUpdateGroup      = "update_group"
	AuditActionAddMember        = "add_member"
	AuditActionRemoveMember     = "remove_member"
	AuditActionChangeRole       = "change_member_role"
	AuditActionCreateTask       = "create_task"
	AuditActionUpdateTask       = "update_task"
	AuditActionDelegateTask     = "delegate_task"
	AuditActionUpdateTaskStatus = "update_task_status"
	AuditActionAutoCompleteTask = "auto_complete_task"
	AuditActionToggleSelfAssign = "toggle_self_assignment"
	AuditActionGrantTaskAccess  = "grant_task_access"
	AuditActionCreateSubtask    = "create_subtask"
	AuditActionCompleteSubtask  = "complete_subtask"
	AuditActionReopenSubtask    = "reopen_subtask"
	AuditActionDelegateSubtask  = "delegate_subtask"
	AuditActionMarkAllRead      = "mark_all_notifications_read"
	AuditActionAddComment       = "add_comment"
	AuditActionEditComment      = "edit_comment"
)
