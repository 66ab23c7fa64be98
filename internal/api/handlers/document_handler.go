package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/local-insights/backend/internal/auth"
	"github.com/local-insights/backend/internal/ingestion"
	"github.com/local-insights/backend/internal/metrics"
	"github.com/local-insights/backend/internal/storage/sqlite"
	"github.com/local-insights/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
	db        *sqlite.Client
}

func NewDocumentHandler(processor *ingestion.Processor, db *sqlite.Client) *DocumentHandler {
	return &DocumentHandler{processor: processor, db: db}
}

// Upload accepts extracted document text. Binary extraction happens on
// the client side; the API sees {filename, content, doc_type}.
func (h *DocumentHandler) Upload(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	var req struct {
		Filename string `json:"filename"`
		Content  string `json:"content"`
		DocType  string `json:"doc_type"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Filename == "" || req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Filename and content are required",
		})
	}

	result, err := h.processor.UploadDocument(c.Context(), tenantID, req.Filename, req.Content, req.DocType)
	if err != nil {
		logger.Error("Failed to upload document", zap.Error(err))
		return fail(c, err)
	}

	if !result.Duplicate {
		metrics.DocumentsUploaded.Inc()
	}

	status := fiber.StatusCreated
	if result.Duplicate {
		status = fiber.StatusOK
	}

	return c.Status(status).JSON(result)
}

func (h *DocumentHandler) List(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)
	limit := c.QueryInt("limit", 100)

	docs, err := h.db.GetDocuments(c.Context(), tenantID, limit)
	if err != nil {
		return fail(c, err)
	}

	type docSummary struct {
		ID          int64  `json:"id"`
		Filename    string `json:"filename"`
		DocType     string `json:"doc_type"`
		UploadDate  string `json:"upload_date"`
		IsProcessed bool   `json:"is_processed"`
	}

	out := make([]docSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, docSummary{
			ID:          d.ID,
			Filename:    d.Filename,
			DocType:     d.DocType,
			UploadDate:  d.UploadDate.Format("2006-01-02 15:04:05"),
			IsProcessed: d.IsProcessed,
		})
	}

	return c.JSON(fiber.Map{"documents": out})
}

func (h *DocumentHandler) Get(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	docID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document id",
		})
	}

	doc, err := h.db.GetDocument(c.Context(), tenantID, docID)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(doc)
}

func (h *DocumentHandler) Delete(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	docID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document id",
		})
	}

	deleted, err := h.processor.DeleteDocument(c.Context(), tenantID, docID)
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

// GenerateMaterial runs the summary/flashcard/quiz pipeline for one
// document. Partial failures are reported per item, not as a request
// failure.
func (h *DocumentHandler) GenerateMaterial(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	docID, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid document id",
		})
	}

	var req struct {
		Summary        *bool `json:"summary"`
		FlashcardCount *int  `json:"flashcard_count"`
		QuizCount      *int  `json:"quiz_count"`
	}
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	opts := ingestion.MaterialOptions{
		Summary:        true,
		FlashcardCount: 10,
		QuizCount:      10,
	}
	if req.Summary != nil {
		opts.Summary = *req.Summary
	}
	if req.FlashcardCount != nil {
		opts.FlashcardCount = *req.FlashcardCount
	}
	if req.QuizCount != nil {
		opts.QuizCount = *req.QuizCount
	}

	result, err := h.processor.GenerateStudyMaterial(c.Context(), tenantID, docID, opts)
	if err != nil {
		logger.Error("Failed to generate study material", zap.Error(err))
		return fail(c, err)
	}

	if result.Summary != "" {
		metrics.MaterialsGenerated.WithLabelValues("summary", "ok").Inc()
	}
	metrics.MaterialsGenerated.WithLabelValues("flashcard", "ok").Add(float64(result.Flashcards))
	metrics.MaterialsGenerated.WithLabelValues("quiz", "ok").Add(float64(result.QuizQuestions))
	for range result.FailedItems {
		metrics.MaterialsGenerated.WithLabelValues("any", "failed").Inc()
	}

	return c.JSON(result)
}

func (h *DocumentHandler) Summaries(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)
	docID, _ := strconv.ParseInt(c.Query("document_id", "0"), 10, 64)
	limit := c.QueryInt("limit", 50)

	summaries, err := h.db.GetSummaries(c.Context(), tenantID, docID, limit)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{"summaries": summaries})
}
