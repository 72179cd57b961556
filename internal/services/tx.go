// Package services provides the business logic layer for the CoTask backend.
// Services implement the core state machines (delegation, subtask
// auto-completion, membership invariants) on top of the repository layer.
//
// Every mutating operation here is a single read-validate-write transaction:
// either all invariant checks pass and the state transition commits together
// with its audit entry, or nothing changes. Notifications are the one
// deliberate exception: they are emitted best-effort after commit.
package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/flvvius/cotask/internal/database"
)

// withTx runs fn inside a transaction on the global pool.
// Rolls back when fn returns an error, commits otherwise.
func withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := database.DB.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
