// Package handlers implements the HTTP handlers for the CoTask JSON API.
// This file handles registration, login, logout and session lifecycle.
package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"

	"github.com/flvvius/cotask/internal/middleware"
	"github.com/flvvius/cotask/internal/models"
	"github.com/flvvius/cotask/internal/security"
	"github.com/flvvius/cotask/internal/services"
)

// AuthHandler handles authentication-related HTTP requests.
type AuthHandler struct {
	store           *session.Store
	identityService *services.IdentityService
	securityMW      *middleware.SecurityMiddleware
	securityLogger  *security.Logger
}

// NewAuthHandler creates a new instance of AuthHandler.
func NewAuthHandler(store *session.Store, securityMW *middleware.SecurityMiddleware, securityLogger *security.Logger) *AuthHandler {
	return &AuthHandler{
		store:           store,
		identityService: services.NewIdentityService(),
		securityMW:      securityMW,
		securityLogger:  securityLogger,
	}
}

type registerRequest struct {
	Email       string  `json:"email"`
	Name        string  `json:"name"`
	Password    string  `json:"password"`
	DefaultRole *string `json:"defaultRole"`
}

// Register creates a new account with built-in credentials.
//
// Route: POST /api/auth/register
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	v := h.securityMW.Validation()
	if err := v.ValidateEmail(req.Email); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	if err := v.ValidatePassword(req.Password); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	var defaultRole *models.Role
	if req.DefaultRole != nil {
		role := models.Role(*req.DefaultRole)
		defaultRole = &role
	}

	user, err := h.identityService.Register(c.Context(), req.Email, req.Name, req.Password, defaultRole)
	if err != nil {
		return respondError(c, err)
	}

	h.securityLogger.SecurityEvent(security.EventUserCreate, &user.ID, user.Email, c.IP(), c.Get("User-Agent"), nil)

	return c.Status(fiber.StatusCreated).JSON(publicUser(user))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login authenticates credentials and creates a session.
//
// Route: POST /api/auth/login
// Side Effects: stores user_id, user_email and user_name in the session.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	// Brute force guard before touching credentials.
	if err := h.securityMW.LoginRateLimit(req.Email, c.IP()); err != nil {
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": err.Error()})
	}

	user, err := h.identityService.Authenticate(c.Context(), req.Email, req.Password)
	if err != nil {
		h.securityMW.RecordLoginFailure(req.Email, c.IP())
		return respondError(c, err)
	}

	sess, err := h.store.Get(c)
	if err != nil {
		return respondError(c, err)
	}
	sess.Set("user_id", user.ID)
	sess.Set("user_email", user.Email)
	sess.Set("user_name", user.Name)
	if err := sess.Save(); err != nil {
		return respondError(c, err)
	}

	h.securityMW.RecordLoginSuccess(user.Email, c.IP(), user.ID)

	return c.JSON(publicUser(user))
}

// Logout destroys the current session.
//
// Route: POST /api/auth/logout
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	sess, err := h.store.Get(c)
	if err == nil {
		if id, ok := sess.Get("user_id").(int); ok {
			email, _ := sess.Get("user_email").(string)
			h.securityLogger.SecurityEvent(security.EventLogout, &id, email, c.IP(), c.Get("User-Agent"), nil)
		}
		_ = sess.Destroy()
	}
	return c.JSON(fiber.Map{"ok": true})
}

// Me returns the authenticated user's own record.
//
// Route: GET /api/auth/me
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	user, err := h.identityService.GetUser(c.Context(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(publicUser(user))
}

// publicUser shapes a user record for API responses, never exposing the
// password hash.
func publicUser(u *models.User) fiber.Map {
	return fiber.Map{
		"id":             u.ID,
		"email":          u.Email,
		"name":           u.Name,
		"profilePicture": u.ProfilePicture,
		"description":    u.Description,
		"contact":        u.Contact,
		"defaultRole":    u.DefaultRole,
		"publicKey":      u.PublicKey,
		"createdAt":      u.CreatedAt,
	}
}
