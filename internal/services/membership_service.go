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

// MembershipService manages groups, memberships and per-group roles.
//
// It is the sole enforcer of the membership invariants: every member holds
// exactly one role per group, and a group never loses its last owner. The
// owner count is re-checked inside the same transaction as the removal or
// demotion, so concurrent operations cannot race past the guard.
type MembershipService struct {
	groupRepo  *repository.GroupRepository
	userRepo   *repository.UserRepository
	statusRepo *repository.StatusRepository
	auditRepo  *repository.AuditRepository
	notifier   *NotificationService
}

// NewMembershipService creates a membership service.
func NewMembershipService(notifier *NotificationService) *MembershipService {
	return &MembershipService{
		groupRepo:  repository.NewGroupRepository(),
		userRepo:   repository.NewUserRepository(),
		statusRepo: repository.NewStatusRepository(),
		auditRepo:  repository.NewAuditRepository(),
		notifier:   notifier,
	}
}

// GetRole returns the caller's role in the group, or NotMember.
func (s *MembershipService) GetRole(ctx context.Context, groupID, userID int) (models.Role, error) {
	member, err := s.groupRepo.GetMember(ctx, database.DB, groupID, userID)
	if err != nil {
		return "", err
	}
	return member.Role, nil
}

// RequireRole returns the caller's role if it is at least minRole.
// NotMember for non-members, PermissionDenied for members below the bar.
func (s *MembershipService) RequireRole(ctx context.Context, q database.Querier, groupID, userID int, minRole models.Role) (models.Role, error) {
	member, err := s.groupRepo.GetMember(ctx, q, groupID, userID)
	if err != nil {
		return "", err
	}
	if !member.Role.AtLeast(minRole) {
		return "", apperr.Newf(apperr.KindPermissionDenied, "requires %s role or higher", minRole)
	}
	return member.Role, nil
}

// CreateGroup creates a group with the creator as its first owner and the
// default status lanes seeded.
//
// Only users whose profile carries the owner default role may create groups;
// inside the new group the creator is owner regardless of their role
// anywhere else.
func (s *MembershipService) CreateGroup(ctx context.Context, creatorID int, name string, description, color *string) (*models.Group, error) {
	if name == "" {
		return nil, apperr.New(apperr.KindInvalid, "group name is required")
	}

	var group *models.Group
	err := withTx(ctx, func(tx pgx.Tx) error {
		creator, err := s.userRepo.GetByID(ctx, tx, creatorID)
		if err != nil {
			return err
		}
		if creator.DefaultRole == nil || *creator.DefaultRole != models.RoleOwner {
			return apperr.New(apperr.KindPermissionDenied, "only users with the owner default role can create groups")
		}

		group = &models.Group{
			Name:        name,
			Description: description,
			Color:       color,
			CreatorID:   creatorID,
		}
		if err := s.groupRepo.Create(ctx, tx, group); err != nil {
			return err
		}

		member := &models.GroupMember{
			GroupID: group.ID,
			UserID:  creatorID,
			Role:    models.RoleOwner,
		}
		if err := s.groupRepo.AddMember(ctx, tx, member); err != nil {
			return err
		}

		if err := s.statusRepo.SeedDefaults(ctx, tx, group.ID); err != nil {
			return err
		}

		return s.auditRepo.Log(ctx, tx, &models.AuditLog{
			ActorID:     creatorID,
			ActorName:   creator.Name,
			Action:      models.AuditActionCreateGroup,
			EntityType:  models.AuditEntityGroup,
			EntityID:    fmt.Sprintf("%d", group.ID),
			EntityName:  &group.Name,
			GroupID:     &group.ID,
			Description: fmt.Sprintf("%s created group %q", creator.Name, group.Name),
		})
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// UpdateGroup patches a group's name, description or color. Owner only.
func (s *MembershipService) UpdateGroup(ctx context.Context, groupID, actingUserID int, name, description, color *string) (*models.Group, error) {
	var group *models.Group
	err := withTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.RequireRole(ctx, tx, groupID, actingUserID, models.RoleOwner); err != nil {
			return err
		}
		if err := s.groupRepo.Update(ctx, tx, groupID, name, description, color); err != nil {
			return err
		}
		var err error
		group, err = s.groupRepo.GetByID(ctx, tx, groupID)
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
			Action:      models.AuditActionUpdateGroup,
			EntityType:  models.AuditEntityGroup,
			EntityID:    fmt.Sprintf("%d", groupID),
			EntityName:  &group.Name,
			GroupID:     &groupID,
			Description: fmt.Sprintf("%s updated group %q", actor.Name, group.Name),
		})
	})
	if err != nil {
		return nil, err
	}
	return group, nil
}

// ListGroups returns all groups the user belongs to, with role and task stats.
func (s *MembershipService) ListGroups(ctx context.Context, userID int) ([]models.GroupWithStats, error) {
	return s.groupRepo.ListByUser(ctx, database.DB, userID)
}

// ListMembers returns the group's members with public profiles. Members only.
func (s *MembershipService) ListMembers(ctx context.Context, groupID, actingUserID int) ([]models.GroupMemberInfo, error) {
	if _, err := s.groupRepo.GetMember(ctx, database.DB, groupID, actingUserID); err != nil {
		return nil, err
	}
	return s.groupRepo.ListMembers(ctx, database.DB, groupID)
}

// AddMember adds a user to the group with the given role. Owners and scrum
// masters may add members. The new member gets a group invite notification
// after commit.
func (s *MembershipService) AddMember(ctx context.Context, groupID, actingUserID, newUserID int, role models.Role) error {
	if !role.Valid() {
		return apperr.Newf(apperr.KindInvalid, "invalid role %q", role)
	}

	var (
		actor *models.User
		group *models.Group
	)
	err := withTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.RequireRole(ctx, tx, groupID, actingUserID, models.RoleScrumMaster); err != nil {
			return err
		}

		var err error
		group, err = s.groupRepo.GetByID(ctx, tx, groupID)
		if err != nil {
			return err
		}

		newUser, err := s.userRepo.GetByID(ctx, tx, newUserID)
		if err != nil {
			return err
		}

		member := &models.GroupMember{GroupID: groupID, UserID: newUserID, Role: role}
		if err := s.groupRepo.AddMember(ctx, tx, member); err != nil {
			return err
		}

		actor, err = s.userRepo.GetByID(ctx, tx, actingUserID)
		if err != nil {
			return err
		}
		return s.auditRepo.Log(ctx, tx, &models.AuditLog{
			ActorID:     actingUserID,
			ActorName:   actor.Name,
			Action:      models.AuditActionAddMember,
			EntityType:  models.AuditEntityGroupMember,
			EntityID:    fmt.Sprintf("%d:%d", groupID, newUserID),
			EntityName:  &newUser.Name,
			GroupID:     &groupID,
			Description: fmt.Sprintf("%s added %s to group %q as %s", actor.Name, newUser.Name, group.Name, role),
		})
	})
	if err != nil {
		return err
	}

	s.notifier.Emit(ctx, &models.Notification{
		UserID:           newUserID,
		Type:             models.NotificationGroupInvite,
		EncryptedTitle:   "Added to Group",
		EncryptedMessage: fmt.Sprintf("%s added you to %q", actor.Name, group.Name),
		RelatedGroupID:   &groupID,
		RelatedUserID:    &actingUserID,
	})
	return nil
}

// AddMemberByEmail resolves the email to a user and adds them to the group.
func (s *MembershipService) AddMemberByEmail(ctx context.Context, groupID, actingUserID int, email string, role models.Role) error {
	user, err := s.userRepo.FindByEmail(ctx, database.DB, email)
	if err != nil {
		return err
	}
	return s.AddMember(ctx, groupID, actingUserID, user.ID, role)
}

// RemoveMember removes a member from the group.
//
// Owners can remove anyone but the last owner. Scrum masters can remove
// attendees only. Members can remove themselves (leave), again subject to
// the last-owner guard.
func (s *MembershipService) RemoveMember(ctx context.Context, groupID, actingUserID, targetUserID int) error {
	return withTx(ctx, func(tx pgx.Tx) error {
		actingMember, err := s.groupRepo.GetMember(ctx, tx, groupID, actingUserID)
		if err != nil {
			return err
		}
		targetMember, err := s.groupRepo.GetMember(ctx, tx, groupID, targetUserID)
		if err != nil {
			return err
		}

		if actingUserID != targetUserID {
			switch actingMember.Role {
			case models.RoleOwner:
				// allowed, subject to the last-owner guard below
			case models.RoleScrumMaster:
				if targetMember.Role != models.RoleAttendee {
					return apperr.New(apperr.KindPermissionDenied, "scrum masters can only remove attendees")
				}
			default:
				return apperr.New(apperr.KindPermissionDenied, "attendees cannot remove other members")
			}
		}

		// The guard applies no matter who initiates the removal.
		if targetMember.Role == models.RoleOwner {
			owners, err := s.groupRepo.CountOwners(ctx, tx, groupID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return apperr.New(apperr.KindLastOwnerRemoval, "cannot remove the last owner of a group")
			}
		}

		if err := s.groupRepo.RemoveMember(ctx, tx, groupID, targetUserID); err != nil {
			return err
		}

		actor, err := s.userRepo.GetByID(ctx, tx, actingUserID)
		if err != nil {
			return err
		}
		target, err := s.userRepo.GetByID(ctx, tx, targetUserID)
		if err != nil {
			return err
		}
		return s.auditRepo.Log(ctx, tx, &models.AuditLog{
			ActorID:     actingUserID,
			ActorName:   actor.Name,
			Action:      models.AuditActionRemoveMember,
			EntityType:  models.AuditEntityGroupMember,
			EntityID:    fmt.Sprintf("%d:%d", groupID, targetUserID),
			EntityName:  &target.Name,
			GroupID:     &groupID,
			Description: fmt.Sprintf("%s removed %s from the group", actor.Name, target.Name),
		})
	})
}

// SetRole changes a member's role. Owner only.
//
// Demoting the last owner is rejected regardless of who asks, including the
// owner demoting themselves.
func (s *MembershipService) SetRole(ctx context.Context, groupID, actingUserID, targetUserID int, newRole models.Role) error {
	if !newRole.Valid() {
		return apperr.Newf(apperr.KindInvalid, "invalid role %q", newRole)
	}

	return withTx(ctx, func(tx pgx.Tx) error {
		if _, err := s.RequireRole(ctx, tx, groupID, actingUserID, models.RoleOwner); err != nil {
			return err
		}
		targetMember, err := s.groupRepo.GetMember(ctx, tx, groupID, targetUserID)
		if err != nil {
			return err
		}
		if targetMember.Role == newRole {
			return nil
		}

		if targetMember.Role == models.RoleOwner && newRole != models.RoleOwner {
			owners, err := s.groupRepo.CountOwners(ctx, tx, groupID)
			if err != nil {
				return err
			}
			if owners <= 1 {
				return apperr.New(apperr.KindLastOwnerDemotion, "cannot demote the last owner of a group")
			}
		}

		if err := s.groupRepo.UpdateMemberRole(ctx, tx, groupID, targetUserID, newRole); err != nil {
			return err
		}

		actor, err := s.userRepo.GetByID(ctx, tx, actingUserID)
		if err != nil {
			return err
		}
		target, err := s.userRepo.GetByID(ctx, tx, targetUserID)
		if err != nil {
			return err
		}
		metadata := fmt.Sprintf(`{"from":%q,"to":%q}`, targetMember.Role, newRole)
		return s.auditRepo.Log(ctx, tx, &models.AuditLog{
			ActorID:     actingUserID,
			ActorName:   actor.Name,
			Action:      models.AuditActionChangeRole,
			EntityType:  models.AuditEntityGroupMember,
			EntityID:    fmt.Sprintf("%d:%d", groupID, targetUserID),
			EntityName:  &target.Name,
			GroupID:     &groupID,
			Description: fmt.Sprintf("%s changed %s's role from %s to %s", actor.Name, target.Name, targetMember.Role, newRole),
			Metadata:    &metadata,
		})
	})
}

// GetGroup returns one group. Members only.
func (s *MembershipService) GetGroup(ctx context.Context, groupID, actingUserID int) (*models.Group, error) {
	if _, err := s.groupRepo.GetMember(ctx, database.DB, groupID, actingUserID); err != nil {
		return nil, err
	}
	return s.groupRepo.GetByID(ctx, database.DB, groupID)
}

// ListStatuses returns the group's status lanes in order. Members only.
func (s *MembershipService) ListStatuses(ctx context.Context, groupID, actingUserID int) ([]models.TaskStatus, error) {
	if _, err := s.groupRepo.GetMember(ctx, database.DB, groupID, actingUserID); err != nil {
		return nil, err
	}
	return s.statusRepo.ListByGroup(ctx, database.DB, groupID)
}
