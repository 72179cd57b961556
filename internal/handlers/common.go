// Package handlers implements the HTTP handlers for the CoTask JSON API.
// Handlers parse and validate requests, call into the service layer and map
// service errors to HTTP responses; all business rules live in the services.
package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/flvvius/cotask/internal/apperr"
)

// respondError maps a service error onto a JSON error response.
// apperr kinds drive the status code; anything else is a 500 with a generic
// message so infrastructure details never leak to clients.
func respondError(c *fiber.Ctx, err error) error {
	status := apperr.HTTPStatus(err)
	message := err.Error()
	kind := apperr.KindOf(err)
	if kind == "" {
		message = "internal server error"
	}

	body := fiber.Map{"error": message}
	if kind != "" {
		body["kind"] = kind
	}
	return c.Status(status).JSON(body)
}

// pathInt parses an integer path parameter.
func pathInt(c *fiber.Ctx, name string) (int, error) {
	v, err := strconv.Atoi(c.Params(name))
	if err != nil {
		return 0, apperr.Newf(apperr.KindInvalid, "invalid %s", name)
	}
	return v, nil
}

// currentUserID extracts the authenticated user id set by the auth middleware.
func currentUserID(c *fiber.Ctx) int {
	if id, ok := c.Locals("user_id").(int); ok {
		return id
	}
	return 0
}
