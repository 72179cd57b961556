// Package middleware provides HTTP middleware for authentication,
// authorization and request security.
package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
)

// AuthRequired ensures the request carries an authenticated session.
// Unauthenticated requests get a 401 JSON error.
//
// Context Locals Set:
//   - user_id: The authenticated user's ID (int)
//   - user_email: The user's email (string)
//   - user_name: The user's display name (string)
//
// Example:
//
//	api := app.Group("/api", middleware.AuthRequired(store))
func AuthRequired(store *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := store.Get(c)
		if err != nil {
			return unauthenticated(c)
		}

		userID := sess.Get("user_id")
		if userID == nil {
			return unauthenticated(c)
		}

		// Pass user information to downstream handlers.
		c.Locals("user_id", userID)
		c.Locals("user_email", sess.Get("user_email"))
		c.Locals("user_name", sess.Get("user_name"))

		return c.Next()
	}
}

func unauthenticated(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": "authentication required",
		"kind":  "not_authenticated",
	})
}

// UserID extracts the authenticated user's id from the context.
// Must be called after AuthRequired.
func UserID(c *fiber.Ctx) int {
	if id, ok := c.Locals("user_id").(int); ok {
		return id
	}
	return 0
}
