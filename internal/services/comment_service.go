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

// CommentService manages encrypted task comments.
//
// Any member of the task's group may comment; only the author may edit their
// own comment afterwards. Comments are never deleted: like the audit trail,
// the discussion under a task is part of its record.
type CommentService struct {
	commentRepo *repository.CommentRepository
	taskRepo    *repository.TaskRepository
	groupRepo   *repository.GroupRepository
	userRepo    *repository.UserRepository
	auditRepo   *repository.AuditRepository
}

// NewCommentService creates a comment service.
func NewCommentService() *CommentService {
	return &CommentService{
		commentRepo: repository.NewCommentRepository(),
		taskRepo:    repository.NewTaskRepository(),
		groupRepo:   repository.NewGroupRepository(),
		userRepo:    repository.NewUserRepository(),
		auditRepo:   repository.NewAuditRepository(),
	}
}

// Add appends a comment to a task. Members of the task's group only.
func (s *CommentService) Add(ctx context.Context, taskID, actingUserID int, encryptedContent, contentNonce string) (*models.Comment, error) {
	if encryptedContent == "" || contentNonce == "" {
		return nil, apperr.New(apperr.KindInvalid, "encrypted content and nonce are required")
	}

	var comment *models.Comment
	err := withTx(ctx, func(tx pgx.Tx) error {
		task, err := s.taskRepo.GetByID(ctx, tx, taskID)
		if err != nil {
			return err
		}
		if _, err := s.groupRepo.GetMember(ctx, tx, task.GroupID, actingUserID); err != nil {
			return err
		}

		comment = &models.Comment{
			TaskID:           taskID,
			UserID:           actingUserID,
			EncryptedContent: encryptedContent,
			ContentNonce:     contentNonce,
		}
		if err := s.commentRepo.Create(ctx, tx, comment); err != nil {
			return err
		}

		actor, err := s.userRepo.GetByID(ctx, tx, actingUserID)
		if err != nil {
			return err
		}
		return s.auditRepo.Log(ctx, tx, &models.AuditLog{
			ActorID:     actingUserID,
			ActorName:   actor.Name,
			Action:      models.AuditActionAddComment,
			EntityType:  models.AuditEntityComment,
			EntityID:    fmt.Sprintf("%d", comment.ID),
			GroupID:     &task.GroupID,
			Description: fmt.Sprintf("%s commented on task %d", actor.Name, taskID),
		})
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// List returns a task's comments, oldest first. Members of its group only.
func (s *CommentService) List(ctx context.Context, taskID, actingUserID int) ([]models.Comment, error) {
	task, err := s.taskRepo.GetByID(ctx, database.DB, taskID)
	if err != nil {
		return nil, err
	}
	if _, err := s.groupRepo.GetMember(ctx, database.DB, task.GroupID, actingUserID); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByTask(ctx, database.DB, taskID)
}

// Edit replaces a comment's ciphertext. Author only; the edited flag is set
// permanently so readers know the content changed.
func (s *CommentService) Edit(ctx context.Context, commentID, actingUserID int, encryptedContent, contentNonce string) (*models.Comment, error) {
	if encryptedContent == "" || contentNonce == "" {
		return nil, apperr.New(apperr.KindInvalid, "encrypted content and nonce are required")
	}

	var comment *models.Comment
	err := withTx(ctx, func(tx pgx.Tx) error {
		var err error
		comment, err = s.commentRepo.GetByID(ctx, tx, commentID)
		if err != nil {
			return err
		}
		if comment.UserID != actingUserID {
			return apperr.New(apperr.KindPermissionDenied, "only the author can edit a comment")
		}

		task, err := s.taskRepo.GetByID(ctx, tx, comment.TaskID)
		if err != nil {
			return err
		}

		if err := s.commentRepo.UpdateContent(ctx, tx, commentID, encryptedContent, contentNonce); err != nil {
			return err
		}
		comment.EncryptedContent = encryptedContent
		comment.ContentNonce = contentNonce
		comment.IsEdited = true

		actor, err := s.userRepo.GetByID(ctx, tx, actingUserID)
		if err != nil {
			return err
		}
		return s.auditRepo.Log(ctx, tx, &models.AuditLog{
			ActorID:     actingUserID,
			ActorName:   actor.Name,
			Action:      models.AuditActionEditComment,
			EntityType:  models.AuditEntityComment,
			EntityID:    fmt.Sprintf("%d", commentID),
			GroupID:     &task.GroupID,
			Description: fmt.Sprintf("%s edited a comment on task %d", actor.Name, comment.TaskID),
		})
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}
