package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/local-insights/backend/internal/auth"
	"github.com/local-insights/backend/internal/cache/redis"
	"github.com/local-insights/backend/internal/metrics"
	"github.com/local-insights/backend/internal/session"
	"github.com/local-insights/backend/internal/storage/models"
	"github.com/local-insights/backend/internal/storage/sqlite"
	"github.com/local-insights/backend/internal/tenant"
	"github.com/local-insights/backend/pkg/logger"
)

const statsCacheTTL = 30 * time.Second

type StudyHandler struct {
	db       *sqlite.Client
	sessions *session.Manager
	cache    *redis.Client
}

func NewStudyHandler(db *sqlite.Client, sessions *session.Manager, cache *redis.Client) *StudyHandler {
	return &StudyHandler{db: db, sessions: sessions, cache: cache}
}

// DueFlashcards lists the cards due for review right now, without
// starting a session.
func (h *StudyHandler) DueFlashcards(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)
	limit := c.QueryInt("limit", 20)

	cards, err := h.db.GetFlashcardsForReview(c.Context(), tenantID, limit)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"flashcards": flashcardViews(cards, false),
		"count":      len(cards),
	})
}

func (h *StudyHandler) ListFlashcards(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)
	docID, _ := strconv.ParseInt(c.Query("document_id", "0"), 10, 64)
	limit := c.QueryInt("limit", 100)

	cards, err := h.db.GetFlashcards(c.Context(), tenantID, docID, limit)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{"flashcards": flashcardViews(cards, true)})
}

func (h *StudyHandler) ListQuizQuestions(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)
	docID, _ := strconv.ParseInt(c.Query("document_id", "0"), 10, 64)
	limit := c.QueryInt("limit", 100)

	questions, err := h.db.GetQuizQuestions(c.Context(), tenantID, docID, limit)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{"questions": questions})
}

func (h *StudyHandler) StartFlashcardSession(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	var req struct {
		Count int `json:"count"`
	}
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Count <= 0 {
		req.Count = 20
	}

	id, s, err := h.sessions.StartFlashcards(c.Context(), tenantID, req.Count)
	if err != nil {
		return fail(c, err)
	}

	metrics.SessionsStarted.WithLabelValues("flashcard").Inc()

	card, _, _ := s.Current()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": id,
		"progress":   s.Progress(),
		"card":       flashcardView(card, false),
	})
}

func (h *StudyHandler) CurrentFlashcard(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	s, err := h.sessions.Flashcards(tenantID, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	card, revealed, err := s.Current()
	if err != nil {
		if err == session.ErrCompleted {
			return c.JSON(fiber.Map{"progress": s.Progress()})
		}
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"progress": s.Progress(),
		"card":     flashcardView(card, revealed),
		"revealed": revealed,
	})
}

func (h *StudyHandler) RevealFlashcard(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	s, err := h.sessions.Flashcards(tenantID, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	if err := s.Reveal(); err != nil {
		return fail(c, err)
	}

	card, _, err := s.Current()
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"progress": s.Progress(),
		"card":     flashcardView(card, true),
		"revealed": true,
	})
}

func (h *StudyHandler) AnswerFlashcard(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	var req struct {
		Correct *bool `json:"correct"`
	}
	if err := c.BodyParser(&req); err != nil || req.Correct == nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Field 'correct' is required",
		})
	}

	s, err := h.sessions.Flashcards(tenantID, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	if err := s.Answer(c.Context(), *req.Correct); err != nil {
		logger.Error("Failed to record flashcard answer", zap.Error(err))
		return fail(c, err)
	}

	h.invalidateStats(c, tenantID)
	metrics.ReviewsRecorded.WithLabelValues("flashcard", resultLabel(*req.Correct)).Inc()

	resp := fiber.Map{"progress": s.Progress()}
	if card, revealed, err := s.Current(); err == nil {
		resp["card"] = flashcardView(card, revealed)
	}

	return c.JSON(resp)
}

func (h *StudyHandler) StartQuizSession(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	var req struct {
		DocumentID int64 `json:"document_id"`
		Count      int   `json:"count"`
	}
	if err := c.BodyParser(&req); err != nil && len(c.Body()) > 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Count <= 0 {
		req.Count = 10
	}

	id, s, err := h.sessions.StartQuiz(c.Context(), tenantID, req.DocumentID, req.Count)
	if err != nil {
		return fail(c, err)
	}

	metrics.SessionsStarted.WithLabelValues("quiz").Inc()

	q, _ := s.Current()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"session_id": id,
		"progress":   s.Progress(),
		"question":   questionView(q),
	})
}

func (h *StudyHandler) CurrentQuizQuestion(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	s, err := h.sessions.Quiz(tenantID, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	q, err := s.Current()
	if err != nil {
		if err == session.ErrCompleted {
			return c.JSON(fiber.Map{"progress": s.Progress()})
		}
		return fail(c, err)
	}

	return c.JSON(fiber.Map{
		"progress": s.Progress(),
		"question": questionView(q),
	})
}

func (h *StudyHandler) AnswerQuizQuestion(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	var req struct {
		Answer string `json:"answer"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	s, err := h.sessions.Quiz(tenantID, c.Params("id"))
	if err != nil {
		return fail(c, err)
	}

	outcome, err := s.Answer(c.Context(), req.Answer)
	if err != nil {
		logger.Error("Failed to record quiz answer", zap.Error(err))
		return fail(c, err)
	}

	h.invalidateStats(c, tenantID)
	metrics.ReviewsRecorded.WithLabelValues("quiz", resultLabel(outcome.Correct)).Inc()

	resp := fiber.Map{
		"outcome":  outcome,
		"progress": s.Progress(),
	}
	if q, err := s.Current(); err == nil {
		resp["question"] = questionView(q)
	}

	return c.JSON(resp)
}

func (h *StudyHandler) EndSession(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)
	h.sessions.End(tenantID, c.Params("id"))
	return c.JSON(fiber.Map{"ended": true})
}

func (h *StudyHandler) Stats(c *fiber.Ctx) error {
	tenantID := auth.TenantFromContext(c)

	if h.cache != nil {
		if stats, ok, err := h.cache.GetStats(c.Context(), tenantID); err == nil && ok {
			metrics.CacheHits.WithLabelValues("stats").Inc()
			return c.JSON(stats)
		}
		metrics.CacheMisses.WithLabelValues("stats").Inc()
	}

	stats, err := h.db.GetLearningStats(c.Context(), tenantID)
	if err != nil {
		return fail(c, err)
	}

	if h.cache != nil {
		if err := h.cache.SetStats(c.Context(), tenantID, stats, statsCacheTTL); err != nil {
			logger.Warn("Failed to cache stats", zap.Error(err))
		}
	}

	return c.JSON(stats)
}

func (h *StudyHandler) invalidateStats(c *fiber.Ctx, tenantID tenant.ID) {
	if h.cache == nil {
		return
	}
	if err := h.cache.InvalidateStats(c.Context(), tenantID); err != nil {
		logger.Warn("Failed to invalidate stats cache", zap.Error(err))
	}
}

func resultLabel(correct bool) string {
	if correct {
		return models.ResultCorrect
	}
	return models.ResultIncorrect
}

type flashcardJSON struct {
	ID            int64  `json:"id"`
	DocumentID    *int64 `json:"document_id,omitempty"`
	Question      string `json:"question"`
	Answer        string `json:"answer,omitempty"`
	Difficulty    string `json:"difficulty"`
	TimesReviewed int    `json:"times_reviewed"`
	TimesCorrect  int    `json:"times_correct"`
}

// flashcardView hides the answer side unless revealed.
func flashcardView(card *models.Flashcard, revealed bool) *flashcardJSON {
	if card == nil {
		return nil
	}
	v := &flashcardJSON{
		ID:            card.ID,
		DocumentID:    card.DocumentID,
		Question:      card.Question,
		Difficulty:    card.Difficulty,
		TimesReviewed: card.TimesReviewed,
		TimesCorrect:  card.TimesCorrect,
	}
	if revealed {
		v.Answer = card.Answer
	}
	return v
}

func flashcardViews(cards []models.Flashcard, withAnswers bool) []*flashcardJSON {
	out := make([]*flashcardJSON, 0, len(cards))
	for i := range cards {
		out = append(out, flashcardView(&cards[i], withAnswers))
	}
	return out
}

type questionJSON struct {
	ID           int64    `json:"id"`
	QuestionType string   `json:"question_type"`
	QuestionText string   `json:"question_text"`
	Options      []string `json:"options,omitempty"`
}

// questionView strips the correct answer and explanation; those come
// back in the answer outcome.
func questionView(q *models.QuizQuestion) *questionJSON {
	if q == nil {
		return nil
	}
	return &questionJSON{
		ID:           q.ID,
		QuestionType: q.QuestionType,
		QuestionText: q.QuestionText,
		Options:      q.Options,
	}
}
