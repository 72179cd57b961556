// Package handlers implements the HTTP handlers for the CoTask JSON API.
// This file handles subtasks and their completion toggles.
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/flvvius/cotask/internal/middleware"
	"github.com/flvvius/cotask/internal/security"
	"github.com/flvvius/cotask/internal/services"
)

// SubtaskHandler handles subtask HTTP requests.
type SubtaskHandler struct {
	subtaskService *services.SubtaskService
	securityMW     *middleware.SecurityMiddleware
	securityLogger *security.Logger
}

// NewSubtaskHandler creates a new instance of SubtaskHandler.
func NewSubtaskHandler(subtaskService *services.SubtaskService, securityMW *middleware.SecurityMiddleware, securityLogger *security.Logger) *SubtaskHandler {
	return &SubtaskHandler{
		subtaskService: subtaskService,
		securityMW:     securityMW,
		securityLogger: securityLogger,
	}
}

type createSubtaskRequest struct {
	EncryptedTitle       string  `json:"encryptedTitle"`
	TitleNonce           string  `json:"titleNonce"`
	EncryptedDescription *string `json:"encryptedDescription"`
	DescriptionNonce     *string `json:"descriptionNonce"`
	AssignedTo           *int    `json:"assignedTo"`
}

// Create adds a subtask under a task.
//
// Route: POST /api/tasks/:taskID/subtasks
func (h *SubtaskHandler) Create(c *fiber.Ctx) error {
	taskID, err := pathInt(c, "taskID")
	if err != nil {
		return respondError(c, err)
	}

	var req createSubtaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	v := h.securityMW.Validation()
	if err := v.ValidateCiphertext("encryptedTitle", req.EncryptedTitle); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	subtask, err := h.subtaskService.CreateSubtask(c.Context(), currentUserID(c), services.CreateSubtaskInput{
		ParentTaskID:         taskID,
		EncryptedTitle:       req.EncryptedTitle,
		TitleNonce:           req.TitleNonce,
		EncryptedDescription: req.EncryptedDescription,
		DescriptionNonce:     req.DescriptionNonce,
		AssignedTo:           req.AssignedTo,
	})
	if err != nil {
		return respondError(c, err)
	}

	actorID := currentUserID(c)
	h.securityLogger.SecurityEvent(security.EventSubtaskCreate, &actorID, "", c.IP(), c.Get("User-Agent"),
		map[string]interface{}{"subtask_id": subtask.ID, "task_id": taskID})

	return c.Status(fiber.StatusCreated).JSON(subtask)
}

// List returns a task's subtasks in order.
//
// Route: GET /api/tasks/:taskID/subtasks
func (h *SubtaskHandler) List(c *fiber.Ctx) error {
	taskID, err := pathInt(c, "taskID")
	if err != nil {
		return respondError(c, err)
	}
	subtasks, err := h.subtaskService.List(c.Context(), taskID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(subtasks)
}

type toggleCompletionRequest struct {
	Completed bool `json:"completed"`
}

// ToggleCompletion flips a subtask's completion state, possibly
// auto-completing the parent task.
//
// Route: PUT /api/subtasks/:subtaskID/completion
func (h *SubtaskHandler) ToggleCompletion(c *fiber.Ctx) error {
	subtaskID, err := pathInt(c, "subtaskID")
	if err != nil {
		return respondError(c, err)
	}

	var req toggleCompletionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	subtask, err := h.subtaskService.ToggleCompletion(c.Context(), subtaskID, currentUserID(c), req.Completed)
	if err != nil {
		return respondError(c, err)
	}

	if req.Completed {
		actorID := currentUserID(c)
		h.securityLogger.SecurityEvent(security.EventSubtaskComplete, &actorID, "", c.IP(), c.Get("User-Agent"),
			map[string]interface{}{"subtask_id": subtaskID})
	}

	return c.JSON(subtask)
}

type delegateSubtaskRequest struct {
	TargetUserID int `json:"targetUserId"`
}

// Delegate points a subtask at a new assignee.
//
// Route: POST /api/subtasks/:subtaskID/delegate
func (h *SubtaskHandler) Delegate(c *fiber.Ctx) error {
	subtaskID, err := pathInt(c, "subtaskID")
	if err != nil {
		return respondError(c, err)
	}

	var req delegateSubtaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if err := h.subtaskService.DelegateSubtask(c.Context(), subtaskID, currentUserID(c), req.TargetUserID); err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"ok": true})
}
