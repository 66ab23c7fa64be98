// Package handlers exposes the study assistant over HTTP. Every route
// except registration and login runs behind the auth middleware, which
// resolves the tenant for the request.
package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/local-insights/backend/internal/session"
	"github.com/local-insights/backend/internal/storage/sqlite"
	"github.com/local-insights/backend/internal/tenant"
)

// fail maps domain errors onto HTTP statuses. Unrecognized errors are
// reported as internal without leaking their text.
func fail(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, tenant.ErrInvalidTenant):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": "Not authenticated",
		})
	case errors.Is(err, sqlite.ErrNotFound), errors.Is(err, session.ErrSessionNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Not found",
		})
	case errors.Is(err, session.ErrNoItems):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{
			"error": "Nothing to study right now",
		})
	case errors.Is(err, session.ErrNotRevealed),
		errors.Is(err, session.ErrNotStarted),
		errors.Is(err, session.ErrCompleted),
		errors.Is(err, session.ErrAlreadyStarted):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Internal server error",
		})
	}
}
