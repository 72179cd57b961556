// Package handlers implements the HTTP handlers for the CoTask JSON API.
// This file handles groups, memberships and per-group roles.
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/flvvius/cotask/internal/middleware"
	"github.com/flvvius/cotask/internal/models"
	"github.com/flvvius/cotask/internal/services"
)

// GroupHandler handles group and membership HTTP requests.
type GroupHandler struct {
	membershipService *services.MembershipService
	securityMW        *middleware.SecurityMiddleware
}

// NewGroupHandler creates a new instance of GroupHandler.
func NewGroupHandler(membershipService *services.MembershipService, securityMW *middleware.SecurityMiddleware) *GroupHandler {
	return &GroupHandler{
		membershipService: membershipService,
		securityMW:        securityMW,
	}
}

type groupRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
}

// Create creates a new group owned by the caller.
//
// Route: POST /api/groups
func (h *GroupHandler) Create(c *fiber.Ctx) error {
	var req groupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	name := ""
	if req.Name != nil {
		name = *req.Name
	}
	v := h.securityMW.Validation()
	if err := v.ValidateGroupName(name); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.Color != nil {
		if err := v.ValidateHexColor(*req.Color); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	group, err := h.membershipService.CreateGroup(c.Context(), currentUserID(c), name, req.Description, req.Color)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(group)
}

// List returns all groups the caller belongs to.
//
// Route: GET /api/groups
func (h *GroupHandler) List(c *fiber.Ctx) error {
	groups, err := h.membershipService.ListGroups(c.Context(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(groups)
}

// Get returns one group.
//
// Route: GET /api/groups/:groupID
func (h *GroupHandler) Get(c *fiber.Ctx) error {
	groupID, err := pathInt(c, "groupID")
	if err != nil {
		return respondError(c, err)
	}
	group, err := h.membershipService.GetGroup(c.Context(), groupID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(group)
}

// Update patches a group's editable fields.
//
// Route: PATCH /api/groups/:groupID
func (h *GroupHandler) Update(c *fiber.Ctx) error {
	groupID, err := pathInt(c, "groupID")
	if err != nil {
		return respondError(c, err)
	}

	var req groupRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	group, err := h.membershipService.UpdateGroup(c.Context(), groupID, currentUserID(c), req.Name, req.Description, req.Color)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(group)
}

// Members returns the group's member list with public profiles.
//
// Route: GET /api/groups/:groupID/members
func (h *GroupHandler) Members(c *fiber.Ctx) error {
	groupID, err := pathInt(c, "groupID")
	if err != nil {
		return respondError(c, err)
	}
	members, err := h.membershipService.ListMembers(c.Context(), groupID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(members)
}

type addMemberRequest struct {
	UserID *int   `json:"userId"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// AddMember adds a user to the group, by id or email.
//
// Route: POST /api/groups/:groupID/members
func (h *GroupHandler) AddMember(c *fiber.Ctx) error {
	groupID, err := pathInt(c, "groupID")
	if err != nil {
		return respondError(c, err)
	}

	var req addMemberRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	role := models.Role(req.Role)
	if role == "" {
		role = models.RoleAttendee
	}

	if req.UserID != nil {
		err = h.membershipService.AddMember(c.Context(), groupID, currentUserID(c), *req.UserID, role)
	} else {
		err = h.membershipService.AddMemberByEmail(c.Context(), groupID, currentUserID(c), req.Email, role)
	}
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
}

// RemoveMember removes a member from the group.
//
// Route: DELETE /api/groups/:groupID/members/:userID
func (h *GroupHandler) RemoveMember(c *fiber.Ctx) error {
	groupID, err := pathInt(c, "groupID")
	if err != nil {
		return respondError(c, err)
	}
	userID, err := pathInt(c, "userID")
	if err != nil {
		return respondError(c, err)
	}

	if err := h.membershipService.RemoveMember(c.Context(), groupID, currentUserID(c), userID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// SetRole changes a member's role in the group.
//
// Route: PUT /api/groups/:groupID/members/:userID/role
func (h *GroupHandler) SetRole(c *fiber.Ctx) error {
	groupID, err := pathInt(c, "groupID")
	if err != nil {
		return respondError(c, err)
	}
	userID, err := pathInt(c, "userID")
	if err != nil {
		return respondError(c, err)
	}

	var req setRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.membershipService.SetRole(c.Context(), groupID, currentUserID(c), userID, models.Role(req.Role)); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// Statuses returns the group's task status lanes in order.
//
// Route: GET /api/groups/:groupID/statuses
func (h *GroupHandler) Statuses(c *fiber.Ctx) error {
	groupID, err := pathInt(c, "groupID")
	if err != nil {
		return respondError(c, err)
	}
	statuses, err := h.membershipService.ListStatuses(c.Context(), groupID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(statuses)
}
