// Package repository implements the database access layer for the CoTask backend.
// This file handles the per-group task status lanes.
package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/flvvius/cotask/internal/apperr"
	"github.com/flvvius/cotask/internal/database"
	"github.com/flvvius/cotask/internal/models"
)

// StatusRepository handles task status lane database operations.
type StatusRepository struct{}

// NewStatusRepository creates a new instance of StatusRepository.
func NewStatusRepository() *StatusRepository {
	return &StatusRepository{}
}

// defaultStatus describes one seeded lane.
type defaultStatus struct {
	name  string
	color string
}

// defaultStatuses are the lanes every new group starts with, in order.
var defaultStatuses = []defaultStatus{
	{"To Do", "#64748b"},
	{"In Progress", "#f59e0b"},
	{models.DoneStatusName, "#10b981"},
}

// Create inserts a single status lane.
func (r *StatusRepository) Create(ctx context.Context, q database.Querier, status *models.TaskStatus) error {
	query := `
		INSERT INTO task_statuses (group_id, name, order_num, color, is_default)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	return q.QueryRow(ctx, query, status.GroupID, status.Name, status.Order,
		status.Color, status.IsDefault).
		Scan(&status.ID, &status.CreatedAt)
}

// SeedDefaults creates the default "To Do" / "In Progress" / "Done" lanes
// for a freshly created group.
func (r *StatusRepository) SeedDefaults(ctx context.Context, q database.Querier, groupID int) error {
	for i, s := range defaultStatuses {
		status := &models.TaskStatus{
			GroupID:   groupID,
			Name:      s.name,
			Order:     i,
			Color:     s.color,
			IsDefault: true,
		}
		if err := r.Create(ctx, q, status); err != nil {
			return err
		}
	}
	return nil
}

// GetByID retrieves a status lane by primary key.
func (r *StatusRepository) GetByID(ctx context.Context, q database.Querier, statusID int) (*models.TaskStatus, error) {
	query := `
		SELECT id, group_id, name, order_num, color, is_default, created_at
		FROM task_statuses WHERE id = $1
	`
	var s models.TaskStatus
	err := q.QueryRow(ctx, query, statusID).
		Scan(&s.ID, &s.GroupID, &s.Name, &s.Order, &s.Color, &s.IsDefault, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.New(apperr.KindNotFound, "status not found")
		}
		return nil, err
	}
	return &s, nil
}

// FindByName retrieves a group's lane by name. The auto-completion engine
// uses this to locate the "Done" lane.
func (r *StatusRepository) FindByName(ctx context.Context, q database.Querier, groupID int, name string) (*models.TaskStatus, error) {
	query := `
		SELECT id, group_id, name, order_num, color, is_default, created_at
		FROM task_statuses WHERE group_id = $1 AND name = $2
	`
	var s models.TaskStatus
	err := q.QueryRow(ctx, query, groupID, name).
		Scan(&s.ID, &s.GroupID, &s.Name, &s.Order, &s.Color, &s.IsDefault, &s.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperr.Newf(apperr.KindNotFound, "status %q not found in group", name)
		}
		return nil, err
	}
	return &s, nil
}

// ListByGroup retrieves a group's lanes in display order.
func (r *StatusRepository) ListByGroup(ctx context.Context, q database.Querier, groupID int) ([]models.TaskStatus, error) {
	query := `
		SELECT id, group_id, name, order_num, color, is_default, created_at
		FROM task_statuses WHERE group_id = $1
		ORDER BY order_num
	`
	rows, err := q.Query(ctx, query, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var statuses []models.TaskStatus
	for rows.Next() {
		var s models.TaskStatus
		err := rows.Scan(&s.ID, &s.GroupID, &s.Name, &s.Order, &s.Color, &s.IsDefault, &s.CreatedAt)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, s)
	}
	return statuses, rows.Err()
}
