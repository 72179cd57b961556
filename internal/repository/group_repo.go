// Package repository implements the database access layer for the CoTask backend.
// This file handles groups, memberships and the per-group role table.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/flvvius/cotask/internal/apperr"
	"github.com/flvvius/cotask/internal/database"
	"github.com/flvvius/cotask/internal/models"
)

// GroupRepository handles group and membership database operations.
// The membership rows are the single authorization source for the services:
// a user's role is always scoped to one group.
type GroupRepository struct{}

// NewGroupRepository creates a new instance of GroupRepository.
func NewGroupRepository() *GroupRepository {
	return &GroupRepository{}
}

// Create inserts a new group.
//
// Side Effects: populates group.ID, group.CreatedAt and group.UpdatedAt.
func (r *GroupRepository) Create(ctx context.Context, q database.Querier, group *models.Group) error {
	query := `
		INSERT INTO groups (name, description, color, creator_id)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	return q.QueryRow(ctx, query, group.Name, group.Description, group.Color, group.CreatorID).
		Scan(&group.ID, &group.CreatedAt, &group.UpdatedAt)
}

// GetByID retrieves a group by primary key.
func (r *GroupRepository) GetByID(ctx context.Context, q database.Querier, groupID int) (*models.Group, error) {
	query := `
		SELECT id, name, description, color, creator_id, created_at, updated_at
		FROM groups WHERE id = $1
	`
	var g models.Group
	err := q.QueryRow(ctx, query, groupID).
		Scan(&g.ID, &g.Name, &g.Description, &g.Color, &g.CreatorID, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "group not found")
		}
		return nil, err
	}
	return &g, nil
}

// Update patches the group's editable fields. Nil pointers keep stored values.
func (r *GroupRepository) Update(ctx context.Context, q database.Querier, groupID int, name, description, color *string) error {
	query := `
		UPDATE groups
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    color = COALESCE($4, color),
		    updated_at = now()
		WHERE id = $1
	`
	_, err := q.Exec(ctx, query, groupID, name, description, color)
	return err
}

// GetMember retrieves one membership row, or a NotMember error when the
// user does not belong to the group. This is the role lookup every
// authorization check goes through.
func (r *GroupRepository) GetMember(ctx context.Context, q database.Querier, groupID, userID int) (*models.GroupMember, error) {
	query := `
		SELECT group_id, user_id, role, joined_at
		FROM group_members
		WHERE group_id = $1 AND user_id = $2
	`
	var m models.GroupMember
	err := q.QueryRow(ctx, query, groupID, userID).
		Scan(&m.GroupID, &m.UserID, &m.Role, &m.JoinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotMember, "not a member of this group")
		}
		return nil, err
	}
	return &m, nil
}

// AddMember inserts a membership row.
func (r *GroupRepository) AddMember(ctx context.Context, q database.Querier, member *models.GroupMember) error {
	query := `
		INSERT INTO group_members (group_id, user_id, role)
		VALUES ($1, $2, $3)
		RETURNING joined_at
	`
	return q.QueryRow(ctx, query, member.GroupID, member.UserID, member.Role).
		Scan(&member.JoinedAt)
}

// RemoveMember deletes a membership row.
func (r *GroupRepository) RemoveMember(ctx context.Context, q database.Querier, groupID, userID int) error {
	query := `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`
	_, err := q.Exec(ctx, query, groupID, userID)
	return err
}

// UpdateMemberRole changes a member's role in one group.
func (r *GroupRepository) UpdateMemberRole(ctx context.Context, q database.Querier, groupID, userID int, role models.Role) error {
	query := `UPDATE group_members SET role = $3 WHERE group_id = $1 AND user_id = $2`
	_, err := q.Exec(ctx, query, groupID, userID, role)
	return err
}

// CountOwners returns how many owners a group currently has.
// The membership service consults this under a transaction before any
// removal or demotion that could violate the at-least-one-owner invariant.
func (r *GroupRepository) CountOwners(ctx context.Context, q database.Querier, groupID int) (int, error) {
	query := `SELECT COUNT(*) FROM group_members WHERE group_id = $1 AND role = 'owner'`
	var count int
	err := q.QueryRow(ctx, query, groupID).Scan(&count)
	return count, err
}

// ListMembers retrieves all memberships of a group with public profiles.
func (r *GroupRepository) ListMembers(ctx context.Context, q database.Querier, groupID int) ([]models.GroupMemberInfo, error) {
	query := `
		SELECT gm.group_id, gm.user_id, gm.role, gm.joined_at,
		       u.id, u.name, u.email, u.profile_picture, u.public_key
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY u.name
	`
	rows, err := q.Query(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.GroupMemberInfo
	for rows.Next() {
		var m models.GroupMemberInfo
		err := rows.Scan(&m.GroupID, &m.UserID, &m.Role, &m.JoinedAt,
			&m.User.ID, &m.User.Name, &m.User.Email, &m.User.ProfilePicture, &m.User.PublicKey)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListMembersByRole returns the user ids of a group's members holding the
// given role. Used by the notification emitter to find scrum masters.
func (r *GroupRepository) ListMembersByRole(ctx context.Context, q database.Querier, groupID int, role models.Role) ([]int, error) {
	query := `SELECT user_id FROM group_members WHERE group_id = $1 AND role = $2`

	rows, err := q.Query(ctx, query, groupID, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var userIDs []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		userIDs = append(userIDs, id)
	}
	return userIDs, rows.Err()
}

// ListByUser retrieves all groups the user belongs to, with the user's role
// and task counters for the group cards.
func (r *GroupRepository) ListByUser(ctx context.Context, q database.Querier, userID int) ([]models.GroupWithStats, error) {
	query := `
		SELECT g.id, g.name, g.description, g.color, g.creator_id, g.created_at, g.updated_at,
		       gm.role,
		       COUNT(t.id) AS total,
		       COUNT(t.id) FILTER (WHERE t.is_completed) AS completed
		FROM groups g
		JOIN group_members gm ON gm.group_id = g.id AND gm.user_id = $1
		LEFT JOIN tasks t ON t.group_id = g.id
		GROUP BY g.id, g.name, g.description, g.color, g.creator_id, g.created_at, g.updated_at, gm.role
		ORDER BY g.created_at DESC
	`
	rows, err := q.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []models.GroupWithStats
	for rows.Next() {
		var g models.GroupWithStats
		err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.Color, &g.CreatorID,
			&g.CreatedAt, &g.UpdatedAt, &g.Role, &g.Stats.Total, &g.Stats.Completed)
		if err != nil {
			return nil, err
		}
		g.Stats.Pending = g.Stats.Total - g.Stats.Completed
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// IsOwnerAnywhere reports whether the user holds the owner role in any group.
// Gates the global audit log listing.
func (r *GroupRepository) IsOwnerAnywhere(ctx context.Context, q database.Querier, userID int) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM group_members WHERE user_id = $1 AND role = 'owner')`
	var exists bool
	err := q.QueryRow(ctx, query, userID).Scan(&exists)
	return exists, err
}
