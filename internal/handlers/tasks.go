// Package handlers implements the HTTP handlers for the CoTask JSON API.
// This file handles tasks: creation, listing, delegation, status movement,
// the legacy self-assignment toggle and wrapped-key access grants.
package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/flvvius/cotask/internal/middleware"
	"github.com/flvvius/cotask/internal/models"
	"github.com/flvvius/cotask/internal/security"
	"github.com/flvvius/cotask/internal/services"
)

// TaskHandler handles task HTTP requests.
type TaskHandler struct {
	taskService       *services.TaskService
	delegationService *services.DelegationService
	securityMW        *middleware.SecurityMiddleware
	securityLogger    *security.Logger
}

// NewTaskHandler creates a new instance of TaskHandler.
func NewTaskHandler(taskService *services.TaskService, delegationService *services.DelegationService,
	securityMW *middleware.SecurityMiddleware, securityLogger *security.Logger) *TaskHandler {
	return &TaskHandler{
		taskService:       taskService,
		delegationService: delegationService,
		securityMW:        securityMW,
		securityLogger:    securityLogger,
	}
}

type createTaskRequest struct {
	GroupID              int     `json:"groupId"`
	EncryptedTitle       string  `json:"encryptedTitle"`
	TitleNonce           string  `json:"titleNonce"`
	EncryptedDescription *string `json:"encryptedDescription"`
	DescriptionNonce     *string `json:"descriptionNonce"`
	StatusID             int     `json:"statusId"`
	Priority             string  `json:"priority"`
	Deadline             *string `json:"deadline"`
	AssigneeIDs          []int   `json:"assigneeIds"`
}

// Create creates a task from client-encrypted content.
//
// Route: POST /api/tasks
func (h *TaskHandler) Create(c *fiber.Ctx) error {
	var req createTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	v := h.securityMW.Validation()
	if err := v.ValidateCiphertext("encryptedTitle", req.EncryptedTitle); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if req.EncryptedDescription != nil {
		if err := v.ValidateCiphertext("encryptedDescription", *req.EncryptedDescription); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	var deadline *time.Time
	if req.Deadline != nil && *req.Deadline != "" {
		if err := v.ValidateDeadline(*req.Deadline); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		t, _ := time.Parse(time.RFC3339, *req.Deadline)
		deadline = &t
	}

	priority := models.Priority(req.Priority)
	if req.Priority == "" {
		priority = models.PriorityMedium
	}

	task, err := h.taskService.CreateTask(c.Context(), currentUserID(c), services.CreateTaskInput{
		GroupID:              req.GroupID,
		EncryptedTitle:       req.EncryptedTitle,
		TitleNonce:           req.TitleNonce,
		EncryptedDescription: req.EncryptedDescription,
		DescriptionNonce:     req.DescriptionNonce,
		StatusID:             req.StatusID,
		Priority:             priority,
		Deadline:             deadline,
		AssigneeIDs:          req.AssigneeIDs,
	})
	if err != nil {
		return respondError(c, err)
	}

	actorID := currentUserID(c)
	h.securityLogger.SecurityEvent(security.EventTaskCreate, &actorID, "", c.IP(), c.Get("User-Agent"),
		map[string]interface{}{"task_id": task.ID, "group_id": task.GroupID})

	return c.Status(fiber.StatusCreated).JSON(task)
}

// ListByGroup returns a group's tasks with subtask counters.
//
// Route: GET /api/groups/:groupID/tasks
func (h *TaskHandler) ListByGroup(c *fiber.Ctx) error {
	groupID, err := pathInt(c, "groupID")
	if err != nil {
		return respondError(c, err)
	}
	tasks, err := h.taskService.ListByGroup(c.Context(), groupID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(tasks)
}

// Get returns one task.
//
// Route: GET /api/tasks/:taskID
func (h *TaskHandler) Get(c *fiber.Ctx) error {
	taskID, err := pathInt(c, "taskID")
	if err != nil {
		return respondError(c, err)
	}
	task, err := h.taskService.GetTask(c.Context(), taskID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(task)
}

type updateTaskRequest struct {
	EncryptedTitle       *string `json:"encryptedTitle"`
	TitleNonce           *string `json:"titleNonce"`
	EncryptedDescription *string `json:"encryptedDescription"`
	DescriptionNonce     *string `json:"descriptionNonce"`
	Priority             *string `json:"priority"`
	Deadline             *string `json:"deadline"`
}

// Update patches a task's content fields.
//
// Route: PUT /api/tasks/:taskID
func (h *TaskHandler) Update(c *fiber.Ctx) error {
	taskID, err := pathInt(c, "taskID")
	if err != nil {
		return respondError(c, err)
	}

	var req updateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	v := h.securityMW.Validation()
	if req.EncryptedTitle != nil {
		if err := v.ValidateCiphertext("encryptedTitle", *req.EncryptedTitle); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}
	if req.EncryptedDescription != nil {
		if err := v.ValidateCiphertext("encryptedDescription", *req.EncryptedDescription); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
	}

	in := services.UpdateTaskInput{
		EncryptedTitle:       req.EncryptedTitle,
		TitleNonce:           req.TitleNonce,
		EncryptedDescription: req.EncryptedDescription,
		DescriptionNonce:     req.DescriptionNonce,
	}
	if req.Priority != nil {
		p := models.Priority(*req.Priority)
		in.Priority = &p
	}
	if req.Deadline != nil && *req.Deadline != "" {
		if err := v.ValidateDeadline(*req.Deadline); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		t, _ := time.Parse(time.RFC3339, *req.Deadline)
		in.Deadline = &t
	}

	task, err := h.taskService.UpdateTask(c.Context(), taskID, currentUserID(c), in)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(task)
}

type delegateRequest struct {
	TargetUserID int `json:"targetUserId"`
}

// Delegate hands the task to another member per the delegation rules.
//
// Route: POST /api/tasks/:taskID/delegate
func (h *TaskHandler) Delegate(c *fiber.Ctx) error {
	taskID, err := pathInt(c, "taskID")
	if err != nil {
		return respondError(c, err)
	}

	var req delegateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	task, err := h.delegationService.Delegate(c.Context(), taskID, currentUserID(c), req.TargetUserID)
	if err != nil {
		return respondError(c, err)
	}

	actorID := currentUserID(c)
	h.securityLogger.SecurityEvent(security.EventTaskDelegate, &actorID, "", c.IP(), c.Get("User-Agent"),
		map[string]interface{}{"task_id": taskID, "target_user_id": req.TargetUserID})

	return c.JSON(task)
}

// Chain returns the task's delegation history.
//
// Route: GET /api/tasks/:taskID/chain
func (h *TaskHandler) Chain(c *fiber.Ctx) error {
	taskID, err := pathInt(c, "taskID")
	if err != nil {
		return respondError(c, err)
	}
	chain, err := h.delegationService.Chain(c.Context(), taskID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(chain)
}

type updateStatusRequest struct {
	StatusID int `json:"statusId"`
}

// UpdateStatus moves a task to another lane.
//
// Route: PUT /api/tasks/:taskID/status
func (h *TaskHandler) UpdateStatus(c *fiber.Ctx) error {
	taskID, err := pathInt(c, "taskID")
	if err != nil {
		return respondError(c, err)
	}

	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	task, err := h.taskService.UpdateStatus(c.Context(), taskID, currentUserID(c), req.StatusID)
	if err != nil {
		return respondError(c, err)
	}

	actorID := currentUserID(c)
	h.securityLogger.SecurityEvent(security.EventTaskStatusMove, &actorID, "", c.IP(), c.Get("User-Agent"),
		map[string]interface{}{"task_id": taskID, "status_id": req.StatusID})

	return c.JSON(task)
}

// ToggleSelf adds or removes the caller on the legacy assignment roster.
//
// Route: POST /api/tasks/:taskID/toggle-self
func (h *TaskHandler) ToggleSelf(c *fiber.Ctx) error {
	taskID, err := pathInt(c, "taskID")
	if err != nil {
		return respondError(c, err)
	}
	assigned, err := h.taskService.ToggleSelfAssignment(c.Context(), taskID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"assigned": assigned})
}

type grantAccessRequest struct {
	RecipientID  int    `json:"recipientId"`
	EncryptedKey string `json:"encryptedKey"`
	KeyNonce     string `json:"keyNonce"`
}

// GrantAccess stores the task key wrapped for another member.
//
// Route: POST /api/tasks/:taskID/access
func (h *TaskHandler) GrantAccess(c *fiber.Ctx) error {
	taskID, err := pathInt(c, "taskID")
	if err != nil {
		return respondError(c, err)
	}

	var req grantAccessRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	err = h.taskService.GrantAccess(c.Context(), taskID, currentUserID(c), req.RecipientID, req.EncryptedKey, req.KeyNonce)
	if err != nil {
		return respondError(c, err)
	}

	actorID := currentUserID(c)
	h.securityLogger.SecurityEvent(security.EventKeyGrant, &actorID, "", c.IP(), c.Get("User-Agent"),
		map[string]interface{}{"task_id": taskID, "recipient_id": req.RecipientID})

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"ok": true})
}

// GetKey returns the caller's wrapped key for the task.
//
// Route: GET /api/tasks/:taskID/key
func (h *TaskHandler) GetKey(c *fiber.Ctx) error {
	taskID, err := pathInt(c, "taskID")
	if err != nil {
		return respondError(c, err)
	}
	key, err := h.taskService.GetTaskKey(c.Context(), taskID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(key)
}
