package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/flvvius/cotask/internal/apperr"
	"github.com/flvvius/cotask/internal/database"
	"github.com/flvvius/cotask/internal/models"
	"github.com/flvvius/cotask/internal/repository"
)

// TaskService manages task creation, status movement, the legacy
// self-assignment roster and wrapped-key access grants.
//
// Delegation lives in DelegationService; this service never touches the
// chain beyond reading it for the Done gate and the status role check.
type TaskService struct {
	taskRepo    *repository.TaskRepository
	subtaskRepo *repository.SubtaskRepository
	groupRepo   *repository.GroupRepository
	statusRepo  *repository.StatusRepository
	userRepo    *repository.UserRepository
	keyRepo     *repository.KeyRepository
	auditRepo   *repository.AuditRepository
	notifier    *NotificationService
}

// NewTaskService creates a task service.
func NewTaskService(notifier *NotificationService) *TaskService {
	return &TaskService{
		taskRepo:    repository.NewTaskRepository(),
		subtaskRepo: repository.NewSubtaskRepository(),
		groupRepo:   repository.NewGroupRepository(),
		statusRepo:  repository.NewStatusRepository(),
		userRepo:    repository.NewUserRepository(),
		keyRepo:     repository.NewKeyRepository(),
		auditRepo:   repository.NewAuditRepository(),
		notifier:    notifier,
	}
}

// CreateTaskInput carries the client-encrypted payload for a new task.
// Title and description arrive as ciphertext; the server never sees plaintext.
type CreateTaskInput struct {
	GroupID              int
	EncryptedTitle       string
	TitleNonce           string
	EncryptedDescription *string
	DescriptionNonce     *string
	StatusID             int
	Priority             models.Priority
	Deadline             *time.Time
	AssigneeIDs          []int // initial legacy roster, at most MaxAssignments
}

// CreateTask creates a task in the group. Scrum master role or higher.
//
// The optional initial assignees populate the legacy roster only; the
// delegation chain always starts empty and CurrentAssignee nil. Each initial
// assignee other than the creator is notified after commit.
func (s *TaskService) CreateTask(ctx context.Context, creatorID int, in CreateTaskInput) (*models.Task, error) {
	if in.EncryptedTitle == "" || in.TitleNonce == "" {
		return nil, apperr.New(apperr.KindInvalid, "encrypted title and nonce are required")
	}
	if !in.Priority.Valid() {
		return nil, apperr.Newf(apperr.KindInvalid, "invalid priority %q", in.Priority)
	}
	if len(in.AssigneeIDs) > models.MaxAssignments {
		return nil, apperr.Newf(apperr.KindInvalid, "at most %d initial assignees", models.MaxAssignments)
	}

	var (
		task  *models.Task
		actor *models.User
	)
	err := withTx(ctx, func(tx pgx.Tx) error {
		member, err := s.groupRepo.GetMember(ctx, tx, in.GroupID, creatorID)
		if err != nil {
			return err
		}
		if !member.Role.AtLeast(models.RoleScrumMaster) {
			return apperr.New(apperr.KindPermissionDenied, "attendees cannot create tasks")
		}

		status, err := s.statusRepo.GetByID(ctx, tx, in.StatusID)
		if err != nil {
			return err
		}
		if status.GroupID != in.GroupID {
			return apperr.New(apperr.KindInvalid, "status belongs to another group")
		}

		task = &models.Task{
			GroupID:              in.GroupID,
			EncryptedTitle:       in.EncryptedTitle,
			TitleNonce:           in.TitleNonce,
			EncryptedDescription: in.EncryptedDescription,
			DescriptionNonce:     in.DescriptionNonce,
			StatusID:             in.StatusID,
			Priority:             in.Priority,
			Deadline:             in.Deadline,
			CreatorID:            creatorID,
		}
		if err := s.taskRepo.Create(ctx, tx, task); err != nil {
			return err
		}

		// First roster occupant is the task owner, the rest attendees.
		for i, userID := range in.AssigneeIDs {
			if _, err := s.groupRepo.GetMember(ctx, tx, in.GroupID, userID); err != nil {
				return err
			}
			taskRole := models.RoleAttendee
			if i == 0 {
				taskRole = models.RoleOwner
			}
			a := models.TaskAssignment{TaskID: task.ID, UserID: userID, TaskRole: taskRole}
			if err := s.taskRepo.AddAssignment(ctx, tx, a); err != nil {
				return err
			}
		}

		actor, err = s.userRepo.GetByID(ctx, tx, creatorID)
		if err != nil {
			return err
		}
		return s.auditRepo.Log(ctx, tx, &models.AuditLog{
			ActorID:     creatorID,
			ActorName:   actor.Name,
			Action:      models.AuditActionCreateTask,
			EntityType:  models.AuditEntityTask,
			EntityID:    fmt.Sprintf("%d", task.ID),
			GroupID:     &in.GroupID,
			Description: fmt.Sprintf("%s created a task", actor.Name),
		})
	})
	if err != nil {
		return nil, err
	}

	for _, userID := range in.AssigneeIDs {
		if userID == creatorID {
			continue
		}
		s.notifier.Emit(ctx, &models.Notification{
			UserID:           userID,
			Type:             models.NotificationTaskAssigned,
			EncryptedTitle:   "Task Assigned",
			EncryptedMessage: fmt.Sprintf("%s assigned a task to you", actor.Name),
			RelatedTaskID:    &task.ID,
			RelatedGroupID:   &task.GroupID,
			RelatedUserID:    &creatorID,
		})
	}
	return task, nil
}

// GetTask returns one task. Members of its group only.
func (s *TaskService) GetTask(ctx context.Context, taskID, actingUserID int) (*models.Task, error) {
	task, err := s.taskRepo.GetByID(ctx, database.DB, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.groupRepo.GetMember(ctx, database.DB, task.GroupID, actingUserID); err != nil {
		return nil, err
	}
	return task, nil
}

// ListByGroup returns the group's tasks with subtask counters. Members only.
func (s *TaskService) ListByGroup(ctx context.Context, groupID, actingUserID int) ([]models.TaskWithCounts, error) {
	if _, err := s.groupRepo.GetMember(ctx, database.DB, groupID, actingUserID); err != nil {
		return nil, err
	}
	return s.taskRepo.ListByGroup(ctx, database.DB, groupID)
}

// UpdateTaskInput carries a partial edit of a task's content fields.
// Nil fields are left untouched.
type UpdateTaskInput struct {
	EncryptedTitle       *string
	TitleNonce           *string
	EncryptedDescription *string
	DescriptionNonce     *string
	Priority             *models.Priority
	Deadline             *time.Time
}

// UpdateTask patches task content. Scrum masters and owners may edit any
// task in the group; an attendee may only edit a task they currently hold.
// Ciphertext fields must arrive with their nonce: one without the other
// would leave an undecryptable row.
func (s *TaskService) UpdateTask(ctx context.Context, taskID, actingUserID int, in UpdateTaskInput) (*models.Task, error) {
	if (in.EncryptedTitle == nil) != (in.TitleNonce == nil) {
		return nil, apperr.New(apperr.KindInvalid, "encrypted title and nonce must be updated together")
	}
	if (in.EncryptedDescription == nil) != (in.DescriptionNonce == nil) {
		return nil, apperr.New(apperr.KindInvalid, "encrypted description and nonce must be updated together")
	}
	if in.Priority != nil && !in.Priority.Valid() {
		return nil, apperr.Newf(apperr.KindInvalid, "invalid priority %q", *in.Priority)
	}

	var task *models.Task
	err := withTx(ctx, func(tx pgx.Tx) error {
		var err error
		task, err = s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
		if err != nil {
			return err
		}

		member, err := s.groupRepo.GetMember(ctx, tx, task.GroupID, actingUserID)
		if err != nil {
			return err
		}
		if member.Role == models.RoleAttendee {
			if task.CurrentAssignee == nil || *task.CurrentAssignee != actingUserID {
				return apperr.New(apperr.KindPermissionDenied, "attendees can only edit tasks assigned to them")
			}
		}

		err = s.taskRepo.UpdateFields(ctx, tx, taskID, in.EncryptedTitle, in.TitleNonce,
			in.EncryptedDescription, in.DescriptionNonce, in.Priority, in.Deadline)
		if err != nil {
			return err
		}

		task, err = s.taskRepo.GetByID(ctx, tx, taskID)
		if err != nil {
			return err
		}

		actor, err := s.userRepo.GetByID(ctx, tx, actingUserID)
		if err != nil {
			return err
		}
		return s.auditRepo.Log(ctx, tx, &models.AuditLog{
			ActorID:     actingUserID,
			ActorName:   actor.Name,
			Action:      models.AuditActionUpdateTask,
			EntityType:  models.AuditEntityTask,
			EntityID:    fmt.Sprintf("%d", taskID),
			GroupID:     &task.GroupID,
			Description: fmt.Sprintf("%s edited the task", actor.Name),
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// UpdateStatus moves a task to another lane of its group.
//
// Scrum masters and owners may move any task; an attendee may only move a
// task they currently hold per the delegation chain. Moving into the "Done"
// lane is refused while any subtask is incomplete, and on success marks the
// task completed.
func (s *TaskService) UpdateStatus(ctx context.Context, taskID, actingUserID, newStatusID int) (*models.Task, error) {
	var task *models.Task
	err := withTx(ctx, func(tx pgx.Tx) error {
		var err error
		task, err = s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
		if err != nil {
			return err
		}

		member, err := s.groupRepo.GetMember(ctx, tx, task.GroupID, actingUserID)
		if err != nil {
			return err
		}
		if member.Role == models.RoleAttendee {
			if task.CurrentAssignee == nil || *task.CurrentAssignee != actingUserID {
				return apperr.New(apperr.KindPermissionDenied, "attendees can only move tasks assigned to them")
			}
		}

		status, err := s.statusRepo.GetByID(ctx, tx, newStatusID)
		if err != nil {
			return err
		}
		if status.GroupID != task.GroupID {
			return apperr.New(apperr.KindInvalid, "status belongs to another group")
		}

		completing := status.Name == models.DoneStatusName
		if completing {
			_, incomplete, err := s.subtaskRepo.CountSiblings(ctx, tx, taskID)
			if err != nil {
				return err
			}
			if incomplete > 0 {
				return apperr.Newf(apperr.KindSubtasksIncomplete, "%d subtasks are still incomplete", incomplete)
			}
			if err := s.taskRepo.MarkCompleted(ctx, tx, taskID, newStatusID); err != nil {
				return err
			}
			task.IsCompleted = true
		} else {
			if err := s.taskRepo.UpdateStatus(ctx, tx, taskID, newStatusID); err != nil {
				return err
			}
		}
		task.StatusID = newStatusID

		actor, err := s.userRepo.GetByID(ctx, tx, actingUserID)
		if err != nil {
			return err
		}
		return s.auditRepo.Log(ctx, tx, &models.AuditLog{
			ActorID:     actingUserID,
			ActorName:   actor.Name,
			Action:      models.AuditActionUpdateTaskStatus,
			EntityType:  models.AuditEntityTask,
			EntityID:    fmt.Sprintf("%d", taskID),
			GroupID:     &task.GroupID,
			Description: fmt.Sprintf("%s moved the task to %q", actor.Name, status.Name),
		})
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// ToggleSelfAssignment adds or removes the caller on the legacy roster.
//
// Legacy surface: the roster holds at most MaxAssignments occupants and is
// independent of the delegation chain. The first occupant gets the owner
// task role, later ones attendee.
func (s *TaskService) ToggleSelfAssignment(ctx context.Context, taskID, actingUserID int) (assigned bool, err error) {
	err = withTx(ctx, func(tx pgx.Tx) error {
		task, err := s.taskRepo.GetByIDForUpdate(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if _, err := s.groupRepo.GetMember(ctx, tx, task.GroupID, actingUserID); err != nil {
			return err
		}

		roster, err := s.taskRepo.ListAssignments(ctx, tx, taskID)
		if err != nil {
			return err
		}

		onRoster := false
		for _, a := range roster {
			if a.UserID == actingUserID {
				onRoster = true
				break
			}
		}

		if onRoster {
			assigned = false
			if err := s.taskRepo.RemoveAssignment(ctx, tx, taskID, actingUserID); err != nil {
				return err
			}
		} else {
			if len(roster) >= models.MaxAssignments {
				return apperr.Newf(apperr.KindAlreadyAssigned, "task already has %d assignees", models.MaxAssignments)
			}
			taskRole := models.RoleAttendee
			if len(roster) == 0 {
				taskRole = models.RoleOwner
			}
			assigned = true
			err := s.taskRepo.AddAssignment(ctx, tx, models.TaskAssignment{
				TaskID:   taskID,
				UserID:   actingUserID,
				TaskRole: taskRole,
			})
			if err != nil {
				return err
			}
		}

		actor, err := s.userRepo.GetByID(ctx, tx, actingUserID)
		if err != nil {
			return err
		}
		verb := "joined"
		if !assigned {
			verb = "left"
		}
		return s.auditRepo.Log(ctx, tx, &models.AuditLog{
			ActorID:     actingUserID,
			ActorName:   actor.Name,
			Action:      models.AuditActionToggleSelfAssign,
			EntityType:  models.AuditEntityTask,
			EntityID:    fmt.Sprintf("%d", taskID),
			GroupID:     &task.GroupID,
			Description: fmt.Sprintf("%s %s the task roster", actor.Name, verb),
		})
	})
	return assigned, err
}

// GrantAccess stores the task's symmetric key wrapped for another member.
// The granter must already hold a wrapped key for the task; the server only
// relays ciphertext produced by the granter's client.
func (s *TaskService) GrantAccess(ctx context.Context, taskID, granterID, recipientID int, encryptedKey, keyNonce string) error {
	if encryptedKey == "" || keyNonce == "" {
		return apperr.New(apperr.KindInvalid, "wrapped key and nonce are required")
	}

	return withTx(ctx, func(tx pgx.Tx) error {
		task, err := s.taskRepo.GetByID(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if _, err := s.groupRepo.GetMember(ctx, tx, task.GroupID, granterID); err != nil {
			return err
		}
		if _, err := s.groupRepo.GetMember(ctx, tx, task.GroupID, recipientID); err != nil {
			return err
		}
		// The creator holds the key implicitly; everyone else must have been
		// granted a wrapped copy before they can wrap it onward.
		if granterID != task.CreatorID {
			if _, err := s.keyRepo.GetTaskKey(ctx, tx, taskID, granterID); err != nil {
				return err
			}
		}

		key := &models.UserTaskKey{
			TaskID:       taskID,
			UserID:       recipientID,
			EncryptedKey: encryptedKey,
			KeyNonce:     keyNonce,
			GrantedBy:    granterID,
		}
		if err := s.keyRepo.UpsertTaskKey(ctx, tx, key); err != nil {
			return err
		}

		actor, err := s.userRepo.GetByID(ctx, tx, granterID)
		if err != nil {
			return err
		}
		return s.auditRepo.Log(ctx, tx, &models.AuditLog{
			ActorID:     granterID,
			ActorName:   actor.Name,
			Action:      models.AuditActionGrantTaskAccess,
			EntityType:  models.AuditEntityTask,
			EntityID:    fmt.Sprintf("%d", taskID),
			GroupID:     &task.GroupID,
			Description: fmt.Sprintf("%s granted task access to user %d", actor.Name, recipientID),
		})
	})
}

// GetTaskKey returns the caller's wrapped key for the task, or NotFound.
func (s *TaskService) GetTaskKey(ctx context.Context, taskID, userID int) (*models.UserTaskKey, error) {
	return s.keyRepo.GetTaskKey(ctx, database.DB, taskID, userID)
}
