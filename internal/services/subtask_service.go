package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/flvvius/cotask/internal/apperr"
	"github.com/flvvius/cotask/internal/database"
	"github.com/flvvius/cotask/internal/models"
	"github.com/flvvius/cotask/internal/repository"
)

// SubtaskService manages subtasks and the auto-completion engine.
//
// Completing the last incomplete subtask moves the parent task into the
// "Done" lane in the same transaction. The parent row lock makes concurrent
// completions of different subtasks serialize, so the sibling counters the
// engine reads are never stale. Un-completing a subtask never moves the
// parent back; regressing a task is always an explicit human action.
type SubtaskService struct {
	subtaskRepo *repository.SubtaskRepository
	taskRepo    *repository.TaskRepository
	groupRepo   *repository.GroupRepository
	statusRepo  *repository.StatusRepository
	userRepo    *repository.UserRepository
	auditRepo   *repository.AuditRepository
	notifier    *NotificationService
}

// NewSubtaskService creates a subtask service.
func NewSubtaskService(notifier *NotificationService) *SubtaskService {
	return &SubtaskService{
		subtaskRepo: repository.NewSubtaskRepository(),
		taskRepo:    repository.NewTaskRepository(),
		groupRepo:   repository.NewGroupRepository(),
		statusRepo:  repository.NewStatusRepository(),
		userRepo:    repository.NewUserRepository(),
		auditRepo:   repository.NewAuditRepository(),
		notifier:    notifier,
	}
}

// CreateSubtaskInput carries the client-encrypted payload for a new subtask.
type CreateSubtaskInput struct {
	ParentTaskID         int
	EncryptedTitle       string
	TitleNonce           string
	EncryptedDescription *string
	DescriptionNonce     *string
	AssignedTo           *int
}

// CreateSubtask adds a subtask under a task.
//
// Owners may break down any task in their group. Scrum masters may only
// break down a task that was delegated to them at some point, i.e. one where
// they appear in the delegation chain. Attendees may not create subtasks.
// The new subtask's order is the sibling count at insert time, taken under
// the parent row lock.
func (s *SubtaskService) CreateSubtask(ctx context.Context, actingUserID int, in CreateSubtaskInput) (*models.Subtask, error) {
	if in.EncryptedTitle == "" || in.TitleNonce == "" {
		return nil, apperr.New(apperr.KindInvalid, "encrypted title and nonce are required")
	}

	var subtask *models.Subtask
	err := withTx(ctx, func(tx pgx.Tx) error {
		task, err := s.taskRepo.GetByIDForUpdate(ctx, tx, in.ParentTaskID)
		if err != nil {
			return err
		}

		member, err := s.groupRepo.GetMember(ctx, tx, task.GroupID, actingUserID)
		if err != nil {
			return err
		}
		switch member.Role {
		case models.RoleAttendee:
			return apperr.New(apperr.KindPermissionDenied, "attendees cannot create subtasks")
		case models.RoleScrumMaster:
			chain, err := s.taskRepo.ListChain(ctx, tx, in.ParentTaskID)
			if err != nil {
				return err
			}
			inChain := false
			for _, e := range chain {
				if e.AssignedTo == actingUserID {
					inChain = true
					break
				}
			}
			if !inChain {
				return apperr.New(apperr.KindNotDelegated, "scrum masters can only break down tasks delegated to them")
			}
		}

		if in.AssignedTo != nil {
			if _, err := s.groupRepo.GetMember(ctx, tx, task.GroupID, *in.AssignedTo); err != nil {
				return err
			}
		}

		total, _, err := s.subtaskRepo.CountSiblings(ctx, tx, in.ParentTaskID)
		if err != nil {
			return err
		}

		subtask = &models.Subtask{
			ParentTaskID:         in.ParentTaskID,
			EncryptedTitle:       in.EncryptedTitle,
			TitleNonce:           in.TitleNonce,
			EncryptedDescription: in.EncryptedDescription,
			DescriptionNonce:     in.DescriptionNonce,
			Order:                total,
			AssignedTo:           in.AssignedTo,
		}
		if err := s.subtaskRepo.Create(ctx, tx, subtask); err != nil {
			return err
		}

		actor, err := s.userRepo.GetByID(ctx, tx, actingUserID)
		if err != nil {
			return err
		}
		return s.auditRepo.Log(ctx, tx, &models.AuditLog{
			ActorID:     actingUserID,
			ActorName:   actor.Name,
			Action:      models.AuditActionCreateSubtask,
			EntityType:  models.AuditEntitySubtask,
			EntityID:    fmt.Sprintf("%d", subtask.ID),
			GroupID:     &task.GroupID,
			Description: fmt.Sprintf("%s added a subtask to task %d", actor.Name, in.ParentTaskID),
		})
	})
	if err != nil {
		return nil, err
	}
	return subtask, nil
}

// List returns a task's subtasks in order. Members of its group only.
func (s *SubtaskService) List(ctx context.Context, parentTaskID, actingUserID int) ([]models.Subtask, error) {
	task, err := s.taskRepo.GetByID(ctx, database.DB, parentTaskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.groupRepo.GetMember(ctx, database.DB, task.GroupID, actingUserID); err != nil {
		return nil, err
	}
	return s.subtaskRepo.ListByParent(ctx, database.DB, parentTaskID)
}

// ToggleCompletion flips a subtask's completion state. Any group member may
// toggle any subtask.
//
// Completing the last incomplete sibling runs the auto-completion engine:
// the parent task moves to the "Done" lane, its completion flag is set, and
// the transition is audited as an automatic action. The whole sequence
// commits atomically with the toggle. Scrum masters of the group (except the
// actor) are notified of every completion after commit.
func (s *SubtaskService) ToggleCompletion(ctx context.Context, subtaskID, actingUserID int, completed bool) (*models.Subtask, error) {
	var (
		subtask       *models.Subtask
		task          *models.Task
		actor         *models.User
		changed       bool
		autoCompleted bool
		scrumMasters  []int
	)

	err := withTx(ctx, func(tx pgx.Tx) error {
		var err error
		subtask, err = s.subtaskRepo.GetByID(ctx, tx, subtaskID)
		if err != nil {
			return err
		}

		// Lock the parent before counting siblings, so two concurrent
		// last-subtask completions cannot both see "one incomplete left".
		task, err = s.taskRepo.GetByIDForUpdate(ctx, tx, subtask.ParentTaskID)
		if err != nil {
			return err
		}
		if _, err := s.groupRepo.GetMember(ctx, tx, task.GroupID, actingUserID); err != nil {
			return err
		}

		if subtask.IsCompleted == completed {
			// Idempotent no-op, nothing to audit.
			return nil
		}
		changed = true

		var completedBy *int
		if completed {
			completedBy = &actingUserID
		}
		if err := s.subtaskRepo.SetCompletion(ctx, tx, subtaskID, completed, completedBy); err != nil {
			return err
		}
		subtask.IsCompleted = completed
		subtask.CompletedBy = completedBy

		actor, err = s.userRepo.GetByID(ctx, tx, actingUserID)
		if err != nil {
			return err
		}

		action := models.AuditActionCompleteSubtask
		verb := "completed"
		if !completed {
			action = models.AuditActionReopenSubtask
			verb = "reopened"
		}
		err = s.auditRepo.Log(ctx, tx, &models.AuditLog{
			ActorID:     actingUserID,
			ActorName:   actor.Name,
			Action:      action,
			EntityType:  models.AuditEntitySubtask,
			EntityID:    fmt.Sprintf("%d", subtaskID),
			GroupID:     &task.GroupID,
			Description: fmt.Sprintf("%s %s a subtask of task %d", actor.Name, verb, task.ID),
		})
		if err != nil {
			return err
		}

		if completed {
			scrumMasters, err = s.groupRepo.ListMembersByRole(ctx, tx, task.GroupID, models.RoleScrumMaster)
			if err != nil {
				return err
			}

			_, incomplete, err := s.subtaskRepo.CountSiblings(ctx, tx, task.ID)
			if err != nil {
				return err
			}
			if incomplete == 0 && !task.IsCompleted {
				done, err := s.statusRepo.FindByName(ctx, tx, task.GroupID, models.DoneStatusName)
				if err != nil {
					return err
				}
				if err := s.taskRepo.MarkCompleted(ctx, tx, task.ID, done.ID); err != nil {
					return err
				}
				task.IsCompleted = true
				task.StatusID = done.ID
				autoCompleted = true

				err = s.auditRepo.Log(ctx, tx, &models.AuditLog{
					ActorID:     actingUserID,
					ActorName:   actor.Name,
					Action:      models.AuditActionAutoCompleteTask,
					EntityType:  models.AuditEntityTask,
					EntityID:    fmt.Sprintf("%d", task.ID),
					GroupID:     &task.GroupID,
					Description: fmt.Sprintf("task %d auto-completed after its last subtask was finished by %s", task.ID, actor.Name),
				})
				if err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed && completed {
		recipients := make([]int, 0, len(scrumMasters))
		for _, id := range scrumMasters {
			if id != actingUserID {
				recipients = append(recipients, id)
			}
		}
		s.notifier.EmitToMany(ctx, recipients, models.Notification{
			Type:             models.NotificationSubtaskCompleted,
			EncryptedTitle:   "Subtask Completed",
			EncryptedMessage: fmt.Sprintf("%s completed a subtask", actor.Name),
			RelatedTaskID:    &task.ID,
			RelatedGroupID:   &task.GroupID,
			RelatedUserID:    &actingUserID,
		})

		if autoCompleted && task.CurrentAssignee != nil && *task.CurrentAssignee != actingUserID {
			s.notifier.Emit(ctx, &models.Notification{
				UserID:           *task.CurrentAssignee,
				Type:             models.NotificationTaskCompleted,
				EncryptedTitle:   "Task Completed",
				EncryptedMessage: "All subtasks are done; the task moved to Done",
				RelatedTaskID:    &task.ID,
				RelatedGroupID:   &task.GroupID,
				RelatedUserID:    &actingUserID,
			})
		}
	}
	return subtask, nil
}

// DelegateSubtask points a subtask at a new assignee.
//
// Scrum masters only, and only toward attendees of the group. Subtask
// delegation is a simple pointer update with no chain and no limit.
func (s *SubtaskService) DelegateSubtask(ctx context.Context, subtaskID, actingUserID, targetUserID int) error {
	var (
		task  *models.Task
		actor *models.User
	)
	err := withTx(ctx, func(tx pgx.Tx) error {
		subtask, err := s.subtaskRepo.GetByID(ctx, tx, subtaskID)
		if err != nil {
			return err
		}
		task, err = s.taskRepo.GetByID(ctx, tx, subtask.ParentTaskID)
		if err != nil {
			return err
		}

		actingMember, err := s.groupRepo.GetMember(ctx, tx, task.GroupID, actingUserID)
		if err != nil {
			return err
		}
		if actingMember.Role != models.RoleScrumMaster {
			return apperr.New(apperr.KindPermissionDenied, "only scrum masters can delegate subtasks")
		}
		if subtask.AssignedTo != nil && *subtask.AssignedTo == targetUserID {
			return apperr.New(apperr.KindAlreadyAssigned, "subtask is already assigned to that user")
		}
		targetMember, err := s.groupRepo.GetMember(ctx, tx, task.GroupID, targetUserID)
		if err != nil {
			return err
		}
		if targetMember.Role != models.RoleAttendee {
			return apperr.New(apperr.KindInvalidTarget, "subtasks can only be delegated to attendees")
		}

		if err := s.subtaskRepo.SetAssignee(ctx, tx, subtaskID, targetUserID); err != nil {
			return err
		}

		actor, err = s.userRepo.GetByID(ctx, tx, actingUserID)
		if err != nil {
			return err
		}
		return s.auditRepo.Log(ctx, tx, &models.AuditLog{
			ActorID:     actingUserID,
			ActorName:   actor.Name,
			Action:      models.AuditActionDelegateSubtask,
			EntityType:  models.AuditEntitySubtask,
			EntityID:    fmt.Sprintf("%d", subtaskID),
			GroupID:     &task.GroupID,
			Description: fmt.Sprintf("%s delegated a subtask to user %d", actor.Name, targetUserID),
		})
	})
	if err != nil {
		return err
	}

	s.notifier.Emit(ctx, &models.Notification{
		UserID:           targetUserID,
		Type:             models.NotificationTaskAssigned,
		EncryptedTitle:   "Subtask Assigned",
		EncryptedMessage: fmt.Sprintf("%s assigned a subtask to you", actor.Name),
		RelatedTaskID:    &task.ID,
		RelatedGroupID:   &task.GroupID,
		RelatedUserID:    &actingUserID,
	})
	return nil
}
