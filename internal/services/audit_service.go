package services

import (
	"context"

	"github.com/flvvius/cotask/internal/apperr"
	"github.com/flvvius/cotask/internal/database"
	"github.com/flvvius/cotask/internal/models"
	"github.com/flvvius/cotask/internal/repository"
)

// defaultAuditLimit caps audit listings when the caller asks for everything.
const defaultAuditLimit = 100

// AuditService exposes the read side of the audit trail.
// Writes happen inside the mutating services' transactions; this service only
// gates who may look at the record.
type AuditService struct {
	auditRepo *repository.AuditRepository
	groupRepo *repository.GroupRepository
}

// NewAuditService creates an audit service.
func NewAuditService() *AuditService {
	return &AuditService{
		auditRepo: repository.NewAuditRepository(),
		groupRepo: repository.NewGroupRepository(),
	}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > defaultAuditLimit {
		return defaultAuditLimit
	}
	return limit
}

// ListByGroup returns a group's newest audit entries. Group owners only.
func (s *AuditService) ListByGroup(ctx context.Context, groupID, actingUserID, limit int) ([]models.AuditLog, error) {
	member, err := s.groupRepo.GetMember(ctx, database.DB, groupID, actingUserID)
	if err != nil {
		return nil, err
	}
	if member.Role != models.RoleOwner {
		return nil, apperr.New(apperr.KindPermissionDenied, "only owners can view the audit trail")
	}
	return s.auditRepo.ListByGroup(ctx, database.DB, groupID, clampLimit(limit))
}

// ListAll returns the newest audit entries across all groups. Available to
// users who own at least one group.
func (s *AuditService) ListAll(ctx context.Context, actingUserID, limit int) ([]models.AuditLog, error) {
	isOwner, err := s.groupRepo.IsOwnerAnywhere(ctx, database.DB, actingUserID)
	if err != nil {
		return nil, err
	}
	if !isOwner {
		return nil, apperr.New(apperr.KindPermissionDenied, "only owners can view the audit trail")
	}
	return s.auditRepo.ListAll(ctx, database.DB, clampLimit(limit))
}

// ListMine returns the caller's own newest audit entries.
func (s *AuditService) ListMine(ctx context.Context, actingUserID, limit int) ([]models.AuditLog, error) {
	return s.auditRepo.ListByActor(ctx, database.DB, actingUserID, clampLimit(limit))
}
