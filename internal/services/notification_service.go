package services

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/flvvius/cotask/internal/database"
	"github.com/flvvius/cotask/internal/models"
	"github.com/flvvius/cotask/internal/repository"
	"github.com/flvvius/cotask/internal/security"
)

// NotificationService is the notification emitter plus the recipient-facing
// inbox operations.
//
// Emission is best-effort by design: a failed insert is logged and swallowed,
// never propagated, and never rolls back the state transition that triggered
// it. Loss of a notification is acceptable; loss of state consistency is not.
type NotificationService struct {
	notificationRepo *repository.NotificationRepository
	auditRepo        *repository.AuditRepository
	userRepo         *repository.UserRepository
	logger           *security.Logger
}

// NewNotificationService creates a notification service.
// The logger receives emission failures; it may be nil in tests.
func NewNotificationService(logger *security.Logger) *NotificationService {
	return &NotificationService{
		notificationRepo: repository.NewNotificationRepository(),
		auditRepo:        repository.NewAuditRepository(),
		userRepo:         repository.NewUserRepository(),
		logger:           logger,
	}
}

// Emit inserts one unread notification, best-effort.
// Title and message arrive from the caller exactly as they should be stored;
// clients that require E2E confidentiality for notification bodies submit
// ciphertext through their own flows.
func (s *NotificationService) Emit(ctx context.Context, n *models.Notification) {
	if err := s.notificationRepo.Create(ctx, database.DB, n); err != nil {
		if s.logger != nil {
			s.logger.Warn(fmt.Sprintf("notification emit failed (type=%s recipient=%d): %v", n.Type, n.UserID, err))
		}
	}
}

// EmitToMany fans one notification out to several recipients, best-effort
// per recipient: one failed insert does not stop the rest.
func (s *NotificationService) EmitToMany(ctx context.Context, recipientIDs []int, template models.Notification) {
	for _, recipientID := range recipientIDs {
		n := template
		n.UserID = recipientID
		s.Emit(ctx, &n)
	}
}

// List returns the user's notifications, newest first.
func (s *NotificationService) List(ctx context.Context, userID int, onlyUnread bool) ([]models.Notification, error) {
	return s.notificationRepo.ListByUser(ctx, database.DB, userID, onlyUnread)
}

// UnreadCount returns the user's unread notification count.
func (s *NotificationService) UnreadCount(ctx context.Context, userID int) (int, error) {
	return s.notificationRepo.UnreadCount(ctx, database.DB, userID)
}

// MarkRead flips one notification's read flag for its recipient.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID int) error {
	return s.notificationRepo.MarkRead(ctx, database.DB, notificationID, userID)
}

// MarkAllRead marks every unread notification of the user as read and writes
// one summarizing audit entry for the bulk action (not one per item).
func (s *NotificationService) MarkAllRead(ctx context.Context, userID int) (int, error) {
	var count int
	err := withTx(ctx, func(tx pgx.Tx) error {
		user, err := s.userRepo.GetByID(ctx, tx, userID)
		if err != nil {
			return err
		}

		count, err = s.notificationRepo.MarkAllRead(ctx, tx, userID)
		if err != nil {
			return err
		}
		if count == 0 {
			// Nothing changed; no audit entry for a no-op.
			return nil
		}

		return s.auditRepo.Log(ctx, tx, &models.AuditLog{
			ActorID:     userID,
			ActorName:   user.Name,
			Action:      models.AuditActionMarkAllRead,
			EntityType:  models.AuditEntityNotification,
			EntityID:    fmt.Sprintf("user:%d", userID),
			Description: fmt.Sprintf("%s marked %d notifications as read", user.Name, count),
		})
	})
	return count, err
}

// Delete removes one notification for its recipient.
func (s *NotificationService) Delete(ctx context.Context, userID, notificationID int) error {
	return s.notificationRepo.Delete(ctx, database.DB, notificationID, userID)
}
