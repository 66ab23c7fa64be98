package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/local-insights/backend/internal/auth"
	"github.com/local-insights/backend/internal/storage/models"
	"github.com/local-insights/backend/internal/storage/sqlite"
)

// MemoryHandler exposes the per-user memory store: what the assistant has
// remembered, and the switches to correct or disable it.
type MemoryHandler struct {
	db *sqlite.Client
}

func NewMemoryHandler(db *sqlite.Client) *MemoryHandler {
	return &MemoryHandler{db: db}
}

// List returns the tenant's remembered items plus the profile summary and
// the enabled flag.
func (h *MemoryHandler) List(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	activeOnly := !c.QueryBool("include_inactive", false)
	items, err := h.db.ListMemory(c.Context(), tenantID, c.Query("category"), activeOnly)
	if err != nil {
		return fail(c, err)
	}

	enabled, err := h.db.IsMemoryEnabled(c.Context(), tenantID)
	if err != nil {
		return fail(c, err)
	}

	profile, err := h.db.GetProfileSummary(c.Context(), tenantID)
	if err != nil && !errors.Is(err, sqlite.ErrNotFound) {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"items":           items,
		"profile_summary": profile,
		"enabled":         enabled,
	})
}

// Upsert stores or updates one item directly, bypassing extraction.
func (h *MemoryHandler) Upsert(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	var req models.NewMemoryItem
	if err := c.BodyParser(&req); err != nil || req.Key == "" || req.Value == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Fields 'key' and 'value' are required",
		})
	}
	if req.Confidence == 0 {
		req.Confidence = 1.0
	}
	if req.Importance == 0 {
		req.Importance = 0.5
	}

	id, err := h.db.UpsertMemory(c.Context(), tenantID, req)
	if err != nil {
		return fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

// Delete forgets one item by key. Soft by default; ?hard=true removes the
// row entirely.
func (h *MemoryHandler) Delete(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	deleted, err := h.db.DeleteMemory(c.Context(), tenantID,
		c.Query("category"), c.Params("key"), c.QueryBool("hard", false))
	if err != nil {
		return fail(c, err)
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Memory item not found",
		})
	}

	return c.JSON(fiber.Map{"deleted": true})
}

// Clear forgets everything the assistant remembers about the tenant.
func (h *MemoryHandler) Clear(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	n, err := h.db.ClearMemory(c.Context(), tenantID, c.QueryBool("hard", false))
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{"cleared": n})
}

// UpdateSettings toggles the memory feature on or off.
func (h *MemoryHandler) UpdateSettings(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil || req.Enabled == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Field 'enabled' is required",
		})
	}

	if err := h.db.SetMemoryEnabled(c.Context(), tenantID, *req.Enabled); err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{"enabled": *req.Enabled})
}

// UpdateProfile replaces the tenant's profile summary.
func (h *MemoryHandler) UpdateProfile(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	var req struct {
		Summary string `json:"summary"`
	}
	if err := c.BodyParser(&req); err != nil || req.Summary == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Field 'summary' is required",
		})
	}

	if err := h.db.UpdateProfileSummary(c.Context(), tenantID, req.Summary); err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{"updated": true})
}
