// Package handlers implements the HTTP handlers for the CoTask JSON API.
// This file handles the owner-only audit trail views.
package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/flvvius/cotask/internal/services"
)

// AuditHandler handles audit trail HTTP requests.
type AuditHandler struct {
	auditService *services.AuditService
}

// NewAuditHandler creates a new instance of AuditHandler.
func NewAuditHandler(auditService *services.AuditService) *AuditHandler {
	return &AuditHandler{
		auditService: auditService,
	}
}

func queryLimit(c *fiber.Ctx) int {
	limit, _ := strconv.Atoi(c.Query("limit"))
	return limit
}

// ListByGroup returns a group's newest audit entries. Group owners only.
//
// Route: GET /api/groups/:groupID/audit
func (h *AuditHandler) ListByGroup(c *fiber.Ctx) error {
	groupID, err := pathInt(c, "groupID")
	if err != nil {
		return respondError(c, err)
	}
	entries, err := h.auditService.ListByGroup(c.Context(), groupID, currentUserID(c), queryLimit(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(entries)
}

// ListAll returns the newest audit entries across all groups.
// Available to users who own at least one group.
//
// Route: GET /api/audit
func (h *AuditHandler) ListAll(c *fiber.Ctx) error {
	entries, err := h.auditService.ListAll(c.Context(), currentUserID(c), queryLimit(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(entries)
}

// ListMine returns the caller's own newest audit entries.
//
// Route: GET /api/audit/mine
func (h *AuditHandler) ListMine(c *fiber.Ctx) error {
	entries, err := h.auditService.ListMine(c.Context(), currentUserID(c), queryLimit(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(entries)
}
