package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/local-insights/backend/internal/auth"
	"github.com/local-insights/backend/internal/metrics"
	"github.com/local-insights/backend/internal/rag"
	"github.com/local-insights/backend/internal/storage/sqlite"
	"github.com/local-insights/backend/pkg/logger"
)

type ChatHandler struct {
	engine *rag.Engine
	db     *sqlite.Client
}

func NewChatHandler(engine *rag.Engine, db *sqlite.Client) *ChatHandler {
	return &ChatHandler{engine: engine, db: db}
}

// Ask answers one question in a conversation. Omitting conversation_id
// starts a new conversation.
func (h *ChatHandler) Ask(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	var req struct {
		ConversationID int64  `json:"conversation_id"`
		Question       string `json:"question"`
		DocumentID     int64  `json:"document_id"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Question == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Question is required",
		})
	}

	resp, err := h.engine.Ask(c.Context(), tenantID, rag.AskRequest{
		ConversationID: req.ConversationID,
		Question:       req.Question,
		DocumentID:     req.DocumentID,
	})
	if err != nil {
		logger.Error("Failed to answer question", zap.Error(err))
		metrics.QuestionsAsked.WithLabelValues("error").Inc()
		return fail(c, err)
	}

	metrics.QuestionsAsked.WithLabelValues("ok").Inc()
	metrics.RetrievalResults.Observe(float64(len(resp.Sources)))

	return c.JSON(resp)
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)
	limit := c.QueryInt("limit", 50)

	convs, err := h.db.ListConversations(c.Context(), tenantID, limit)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{"conversations": convs})
}

func (h *ChatHandler) GetConversation(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	convID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid conversation id",
		})
	}

	conv, err := h.db.GetConversation(c.Context(), tenantID, convID)
	if err != nil {
		return fail(c, err)
	}

	messages, err := h.db.GetMessages(c.Context(), tenantID, convID, c.QueryInt("limit", 200))
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"conversation": conv,
		"messages":     messages,
	})
}

func (h *ChatHandler) RenameConversation(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	convID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid conversation id",
		})
	}

	var req struct {
		Title string `json:"title"`
	}
	if err := c.BodyParser(&req); err != nil || req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Title is required",
		})
	}

	updated, err := h.db.UpdateConversationTitle(c.Context(), tenantID, convID, req.Title)
	if err != nil {
		return fail(c, err)
	}
	if !updated {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Not found",
		})
	}

	return c.JSON(fiber.Map{"updated": true})
}

func (h *ChatHandler) DeleteConversation(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	convID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid conversation id",
		})
	}

	deleted, err := h.db.DeleteConversation(c.Context(), tenantID, convID)
	if err != nil {
		return fail(c, err)
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Not found",
		})
	}

	return c.JSON(fiber.Map{"deleted": true})
}

func (h *ChatHandler) SearchMessages(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	term := c.Query("q")
	if term == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query parameter 'q' is required",
		})
	}

	messages, err := h.db.SearchMessages(c.Context(), tenantID, term, c.QueryInt("limit", 50))
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{"messages": messages})
}
