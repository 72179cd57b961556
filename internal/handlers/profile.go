// Package handlers implements the HTTP handlers for the CoTask JSON API.
// This file handles profile editing and public key publication.
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/flvvius/cotask/internal/models"
	"github.com/flvvius/cotask/internal/security"
	"github.com/flvvius/cotask/internal/services"
)

// ProfileHandler handles profile HTTP requests.
type ProfileHandler struct {
	identityService *services.IdentityService
	securityLogger  *security.Logger
}

// NewProfileHandler creates a new instance of ProfileHandler.
func NewProfileHandler(identityService *services.IdentityService, securityLogger *security.Logger) *ProfileHandler {
	return &ProfileHandler{
		identityService: identityService,
		securityLogger:  securityLogger,
	}
}

type updateProfileRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Contact     *string `json:"contact"`
	DefaultRole *string `json:"defaultRole"`
}

// Update patches the caller's profile fields.
//
// Route: PATCH /api/profile
func (h *ProfileHandler) Update(c *fiber.Ctx) error {
	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	var defaultRole *models.Role
	if req.DefaultRole != nil {
		role := models.Role(*req.DefaultRole)
		defaultRole = &role
	}

	user, err := h.identityService.UpdateProfile(c.Context(), currentUserID(c), req.Name, req.Description, req.Contact, defaultRole)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(publicUser(user))
}

type publishKeyRequest struct {
	PublicKey string `json:"publicKey"`
}

// PublishKey stores the caller's box public key.
//
// Route: PUT /api/profile/public-key
func (h *ProfileHandler) PublishKey(c *fiber.Ctx) error {
	var req publishKeyRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.identityService.PublishPublicKey(c.Context(), currentUserID(c), req.PublicKey); err != nil {
		return respondError(c, err)
	}

	actorID := currentUserID(c)
	h.securityLogger.SecurityEvent(security.EventPublicKeyChange, &actorID, "", c.IP(), c.Get("User-Agent"), nil)

	return c.JSON(fiber.Map{"ok": true})
}

// ListUsers returns public profiles for the member picker.
//
// Route: GET /api/users
func (h *ProfileHandler) ListUsers(c *fiber.Ctx) error {
	profiles, err := h.identityService.ListProfiles(c.Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(profiles)
}
