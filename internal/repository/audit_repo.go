// Package repository implements the database access layer for the CoTask backend.
// This file implements the audit trail recorder for the owner-only audit view.
package repository

import (
	"context"

	"github.com/flvvius/cotask/internal/database"
	"github.com/flvvius/cotask/internal/models"
)

// AuditRepository handles audit trail database operations.
//
// Immutability Note:
//
//	Audit entries are write-once. The repository deliberately exposes no
//	update or delete method; they form the permanent record of who did
//	what, and the delegation chain's own history complements them.
type AuditRepository struct{}

// NewAuditRepository creates a new instance of AuditRepository.
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// Log appends one audit entry. Called inside the same transaction as the
// state change it documents, so the entry and the mutation commit together.
//
// Side Effects: populates entry.ID and entry.CreatedAt.
func (r *AuditRepository) Log(ctx context.Context, q database.Querier, entry *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (actor_id, actor_name, action, entity_type, entity_id,
			entity_name, group_id, description, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at
	`
	return q.QueryRow(ctx, query, entry.ActorID, entry.ActorName, entry.Action,
		entry.EntityType, entry.EntityID, entry.EntityName, entry.GroupID,
		entry.Description, entry.Metadata).
		Scan(&entry.ID, &entry.CreatedAt)
}

func scanAuditRows(ctx context.Context, q database.Querier, query string, args ...interface{}) ([]models.AuditLog, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []models.AuditLog
	for rows.Next() {
		var e models.AuditLog
		err := rows.Scan(&e.ID, &e.ActorID, &e.ActorName, &e.Action, &e.EntityType,
			&e.EntityID, &e.EntityName, &e.GroupID, &e.Description, &e.Metadata, &e.CreatedAt)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListByGroup retrieves a group's newest audit entries, most recent first.
func (r *AuditRepository) ListByGroup(ctx context.Context, q database.Querier, groupID, limit int) ([]models.AuditLog, error) {
	query := `
		SELECT id, actor_id, actor_name, action, entity_type, entity_id,
		       entity_name, group_id, description, metadata, created_at
		FROM audit_logs
		WHERE group_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return scanAuditRows(ctx, q, query, groupID, limit)
}

// ListAll retrieves the newest audit entries across all groups.
// Callers gate this behind the owner-anywhere check.
func (r *AuditRepository) ListAll(ctx context.Context, q database.Querier, limit int) ([]models.AuditLog, error) {
	query := `
		SELECT id, actor_id, actor_name, action, entity_type, entity_id,
		       entity_name, group_id, description, metadata, created_at
		FROM audit_logs
		ORDER BY created_at DESC
		LIMIT $1
	`
	return scanAuditRows(ctx, q, query, limit)
}

// ListByActor retrieves one user's newest audit entries.
func (r *AuditRepository) ListByActor(ctx context.Context, q database.Querier, actorID, limit int) ([]models.AuditLog, error) {
	query := `
		SELECT id, actor_id, actor_name, action, entity_type, entity_id,
		       entity_name, group_id, description, metadata, created_at
		FROM audit_logs
		WHERE actor_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	return scanAuditRows(ctx, q, query, actorID, limit)
}
