package services

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/flvvius/cotask/internal/apperr"
	"github.com/flvvius/cotask/internal/database"
	"github.com/flvvius/cotask/internal/models"
	"github.com/flvvius/cotask/internal/repository"
)

// DelegationService implements the task delegation state machine.
//
// A task starts unassigned and is handed along a chain of at most
// models.MaxChainLength assignees, after which no further delegation is
// permitted and the task stays with its last assignee.
//
// The whole transition runs in one transaction with the task row locked, so
// two concurrent delegations of the same task serialize: the second sees the
// first's chain before validating and cannot break the length or
// duplicate-assignee invariants.
type DelegationService struct {
	taskRepo  *repository.TaskRepository
	groupRepo *repository.GroupRepository
	userRepo  *repository.UserRepository
	auditRepo *repository.AuditRepository
	notifier  *NotificationService
}

// NewDelegationService creates a delegation service.
func NewDelegationService(notifier *NotificationService) *DelegationService {
	return &DelegationService{
		taskRepo:  repository.NewTaskRepository(),
		groupRepo: repository.NewGroupRepository(),
		userRepo:  repository.NewUserRepository(),
		auditRepo: repository.NewAuditRepository(),
		notifier:  notifier,
	}
}

// Delegate hands the task from actingUser to targetUser, appending one entry
// to the delegation chain.
//
// The checks run in a fixed order, permission checks before state checks, so
// the error kind returned for a given situation is deterministic:
//
//  1. both users must be members of the task's group (NotMember)
//  2. attendees may never delegate (PermissionDenied)
//  3. a scrum master may delegate only a task they currently hold
//     (NotCurrentAssignee), and only to an attendee (InvalidTarget)
//  4. an owner may delegate to anyone except a peer owner (InvalidTarget)
//  5. the target must not already hold the task (AlreadyAssigned)
//  6. the target must never have held the task, creator included
//     (DuplicateDelegate)
//  7. the chain must have room (DelegationLimitReached)
//
// On success the chain entry freezes both roles as they were at delegation
// time, the current assignee moves to the target, the audit entry commits
// with the transition, and the target is notified best-effort afterwards.
func (s *DelegationService) Delegate(ctx context.Context, taskID, actingUserID, targetUserID int) (*models.Task, error) {
	var (
		task  *models.Task
		actor *models.User
	)

	err := withTx(ctx, func(tx pgx.Tx) error {
		var err error
		task, err = s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
		if err != nil {
			return err
		}

		// Check 1: membership of both parties.
		actingMember, err := s.groupRepo.GetMember(ctx, tx, task.GroupID, actingUserID)
		if err != nil {
			return err
		}
		targetMember, err := s.groupRepo.GetMember(ctx, tx, task.GroupID, targetUserID)
		if err != nil {
			return err
		}

		// Check 2: attendees never delegate.
		if actingMember.Role == models.RoleAttendee {
			return apperr.New(apperr.KindPermissionDenied, "attendees cannot delegate tasks")
		}

		// Checks 3 and 4: explicit role-pair rules, not a hierarchy
		// comparison. A scrum master outranks an attendee yet may only
		// delegate a task they currently hold.
		switch actingMember.Role {
		case models.RoleScrumMaster:
			if task.CurrentAssignee == nil || *task.CurrentAssignee != actingUserID {
				return apperr.New(apperr.KindNotCurrentAssignee, "scrum masters can only delegate tasks currently assigned to them")
			}
			if targetMember.Role != models.RoleAttendee {
				return apperr.New(apperr.KindInvalidTarget, "scrum masters can only delegate to attendees")
			}
		case models.RoleOwner:
			if targetMember.Role == models.RoleOwner {
				return apperr.New(apperr.KindInvalidTarget, "owners cannot delegate to other owners")
			}
		}

		// Check 5: no-op guard.
		if task.CurrentAssignee != nil && *task.CurrentAssignee == targetUserID {
			return apperr.New(apperr.KindAlreadyAssigned, "user is already the current assignee")
		}

		// Check 6: nobody touches a task twice, creator included.
		chain, err := s.taskRepo.ListChain(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if targetUserID == task.CreatorID {
			return apperr.New(apperr.KindDuplicateDelegate, "task cannot return to its creator")
		}
		for _, entry := range chain {
			if entry.AssignedTo == targetUserID {
				return apperr.New(apperr.KindDuplicateDelegate, "user already appears in the delegation chain")
			}
		}

		// Check 7: chain bound.
		if len(chain) >= models.MaxChainLength {
			return apperr.Newf(apperr.KindDelegationLimitReached, "delegation limit of %d reached", models.MaxChainLength)
		}

		entry := &models.ChainEntry{
			TaskID:       taskID,
			Position:     len(chain),
			AssignedBy:   actingUserID,
			AssignedTo:   targetUserID,
			AssignerRole: actingMember.Role,
			AssigneeRole: targetMember.Role,
		}
		if err := s.taskRepo.AppendChainEntry(ctx, tx, entry); err != nil {
			return err
		}
		task.CurrentAssignee = &targetUserID

		actor, err = s.userRepo.GetByID(ctx, tx, actingUserID)
		if err != nil {
			return err
		}

		metadata, _ := json.Marshal(map[string]interface{}{
			"targetUserId":  targetUserID,
			"chainPosition": entry.Position,
			"assignerRole":  actingMember.Role,
			"assigneeRole":  targetMember.Role,
		})
		metadataStr := string(metadata)

		return s.auditRepo.Log(ctx, tx, &models.AuditLog{
			ActorID:     actingUserID,
			ActorName:   actor.Name,
			Action:      models.AuditActionDelegateTask,
			EntityType:  models.AuditEntityTask,
			EntityID:    fmt.Sprintf("%d", taskID),
			GroupID:     &task.GroupID,
			Description: fmt.Sprintf("%s delegated task %d to user %d", actor.Name, taskID, targetUserID),
			Metadata:    &metadataStr,
		})
	})
	if err != nil {
		return nil, err
	}

	// Best-effort, after commit: the transition stands even if this is lost.
	s.notifier.Emit(ctx, &models.Notification{
		UserID:           targetUserID,
		Type:             models.NotificationTaskDelegated,
		EncryptedTitle:   "Task Delegated",
		EncryptedMessage: fmt.Sprintf("%s delegated a task to you", actor.Name),
		RelatedTaskID:    &taskID,
		RelatedGroupID:   &task.GroupID,
		RelatedUserID:    &actingUserID,
	})

	return task, nil
}

// Chain returns the task's delegation history in order. The chain is
// append-only, so this doubles as the delegation audit trail for the UI.
func (s *DelegationService) Chain(ctx context.Context, taskID, actingUserID int) ([]models.ChainEntry, error) {
	task, err := s.taskRepo.GetByID(ctx, database.DB, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.groupRepo.GetMember(ctx, database.DB, task.GroupID, actingUserID); err != nil {
		return nil, err
	}
	return s.taskRepo.ListChain(ctx, database.DB, taskID)
}
