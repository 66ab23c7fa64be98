package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/local-insights/backend/internal/tenant"
)

const tenantLocalsKey = "tenant_id"

// Middleware returns a fiber handler that requires a valid bearer token
// and stashes the tenant id in the request locals.
func Middleware(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing bearer token",
			})
		}

		tenantID, err := svc.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired token",
			})
		}

		c.Locals(tenantLocalsKey, tenantID)
		return c.Next()
	}
}

// TenantFromContext reads the tenant id the middleware stored. The
// zero value means the request never passed the middleware; every store
// call downstream rejects it.
func TenantFromContext(c *fiber.Ctx) tenant.ID {
	if id, ok := c.Locals(tenantLocalsKey).(tenant.ID); ok {
		return id
	}
	return 0
}
