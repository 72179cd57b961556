// Package handlers implements the HTTP handlers for the CoTask JSON API.
// This file handles encrypted task comments.
package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/flvvius/cotask/internal/middleware"
	"github.com/flvvius/cotask/internal/services"
)

// CommentHandler handles comment HTTP requests.
type CommentHandler struct {
	commentService *services.CommentService
	securityMW     *middleware.SecurityMiddleware
}

// NewCommentHandler creates a new instance of CommentHandler.
func NewCommentHandler(commentService *services.CommentService, securityMW *middleware.SecurityMiddleware) *CommentHandler {
	return &CommentHandler{
		commentService: commentService,
		securityMW:     securityMW,
	}
}

type commentRequest struct {
	EncryptedContent string `json:"encryptedContent"`
	ContentNonce     string `json:"contentNonce"`
}

// Add appends a comment to a task.
//
// Route: POST /api/tasks/:taskID/comments
func (h *CommentHandler) Add(c *fiber.Ctx) error {
	taskID, err := pathInt(c, "taskID")
	if err != nil {
		return respondError(c, err)
	}

	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.securityMW.Validation().ValidateCiphertext("encryptedContent", req.EncryptedContent); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	comment, err := h.commentService.Add(c.Context(), taskID, currentUserID(c), req.EncryptedContent, req.ContentNonce)
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// List returns a task's comments, oldest first.
//
// Route: GET /api/tasks/:taskID/comments
func (h *CommentHandler) List(c *fiber.Ctx) error {
	taskID, err := pathInt(c, "taskID")
	if err != nil {
		return respondError(c, err)
	}
	comments, err := h.commentService.List(c.Context(), taskID, currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comments)
}

// Edit replaces a comment's ciphertext. Author only.
//
// Route: PUT /api/comments/:commentID
func (h *CommentHandler) Edit(c *fiber.Ctx) error {
	commentID, err := pathInt(c, "commentID")
	if err != nil {
		return respondError(c, err)
	}

	var req commentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if err := h.securityMW.Validation().ValidateCiphertext("encryptedContent", req.EncryptedContent); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	comment, err := h.commentService.Edit(c.Context(), commentID, currentUserID(c), req.EncryptedContent, req.ContentNonce)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(comment)
}
