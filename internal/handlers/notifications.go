// Package handlers implements the HTTP handlers for the CoTask JSON API.
// This file handles the notification inbox.
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/flvvius/cotask/internal/services"
)

// NotificationHandler handles notification inbox HTTP requests.
type NotificationHandler struct {
	notificationService *services.NotificationService
}

// NewNotificationHandler creates a new instance of NotificationHandler.
func NewNotificationHandler(notificationService *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// List returns the caller's notifications, newest first.
// Pass ?unread=true to filter to unread only.
//
// Route: GET /api/notifications
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	onlyUnread := c.Query("unread") == "true"
	notifications, err := h.notificationService.List(c.Context(), currentUserID(c), onlyUnread)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(notifications)
}

// UnreadCount returns the caller's unread notification count.
//
// Route: GET /api/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	count, err := h.notificationService.UnreadCount(c.Context(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"count": count})
}

// MarkRead marks one notification as read.
//
// Route: PUT /api/notifications/:notificationID/read
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	notificationID, err := pathInt(c, "notificationID")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.notificationService.MarkRead(c.Context(), currentUserID(c), notificationID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}

// MarkAllRead marks all of the caller's notifications as read.
//
// Route: PUT /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	count, err := h.notificationService.MarkAllRead(c.Context(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"marked": count})
}

// Delete removes one notification from the caller's inbox.
//
// Route: DELETE /api/notifications/:notificationID
func (h *NotificationHandler) Delete(c *fiber.Ctx) error {
	notificationID, err := pathInt(c, "notificationID")
	if err != nil {
		return respondError(c, err)
	}
	if err := h.notificationService.Delete(c.Context(), currentUserID(c), notificationID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}
