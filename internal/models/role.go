// Package models defines the domain entities and data transfer objects for CoTask.
// It includes database models mapped to PostgreSQL tables and the role/priority
// enumerations used by the permission checks in the service layer.
package models

// Role is a user's role within a single group.
// Roles are scoped to (group, user) pairs and are never global:
// the same user may be owner of one group and attendee of another.
type Role string

// Group roles, from most to least privileged.
const (
	RoleOwner       Role = "owner"        // Full control over the group
	RoleScrumMaster Role = "scrum_master" // Manages tasks and members
	RoleAttendee    Role = "attendee"     // Works tasks, creates nothing above subtask level
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleScrumMaster, RoleAttendee:
		return true
	}
	return false
}

// Level returns the coarse hierarchy rank: owner(3) > scrum_master(2) > attendee(1).
// Level is only suitable for minimum-role checks; delegation legality uses
// explicit role-pair rules in the delegation service and must not be reduced
// to a hierarchy comparison.
func (r Role) Level() int {
	switch r {
	case RoleOwner:
		return 3
	case RoleScrumMaster:
		return 2
	case RoleAttendee:
		return 1
	}
	return 0
}

// AtLeast reports whether r ranks at or above the minimum role.
func (r Role) AtLeast(minimum Role) bool {
	return r.Level() >= minimum.Level()
}

// Priority is a task's urgency bucket.
type Priority string

// Task priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
