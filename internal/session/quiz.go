package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/local-insights/backend/internal/storage/models"
	"github.com/local-insights/backend/internal/tenant"
	"github.com/local-insights/backend/pkg/logger"
)

// QuizStore is the slice of the material store a quiz session needs.
type QuizStore interface {
	GetRandomQuiz(ctx context.Context, tenantID tenant.ID, documentID int64, count int) ([]models.QuizQuestion, error)
	LogQuizResult(ctx context.Context, tenantID tenant.ID, quizQuestionID int64, correct bool) (int64, error)
}

// AnswerOutcome is returned after grading one quiz question.
type AnswerOutcome struct {
	Correct       bool   `json:"correct"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation,omitempty"`
}

// QuizSession walks a random sample of quiz questions. Answering is a
// single step per question: the selected option is graded, the result
// is logged, and the cursor advances. Not safe for concurrent use.
type QuizSession struct {
	store    QuizStore
	tenantID tenant.ID

	state     State
	questions []models.QuizQuestion
	index     int
	score     int
}

func NewQuizSession(store QuizStore, tenantID tenant.ID) *QuizSession {
	return &QuizSession{
		store:    store,
		tenantID: tenantID,
		state:    NotStarted,
	}
}

// Start samples up to count questions, optionally restricted to one
// document (documentID 0 means all). Returns ErrNoItems when the tenant
// has no questions to sample.
func (s *QuizSession) Start(ctx context.Context, documentID int64, count int) error {
	if s.state != NotStarted {
		return ErrAlreadyStarted
	}

	questions, err := s.store.GetRandomQuiz(ctx, s.tenantID, documentID, count)
	if err != nil {
		return fmt.Errorf("failed to fetch quiz questions: %w", err)
	}
	if len(questions) == 0 {
		return ErrNoItems
	}

	s.questions = questions
	s.index = 0
	s.score = 0
	s.state = InProgress

	logger.GetLogger().Info("Quiz session started",
		zap.Int64("user_id", int64(s.tenantID)),
		zap.Int64("document_id", documentID),
		zap.Int("questions", len(questions)))

	return nil
}

// Current returns the question under the cursor.
func (s *QuizSession) Current() (*models.QuizQuestion, error) {
	switch s.state {
	case NotStarted:
		return nil, ErrNotStarted
	case Completed:
		return nil, ErrCompleted
	}
	return &s.questions[s.index], nil
}

// Answer grades the selected option against the stored correct answer
// (exact match), logs the outcome, and advances. The explanation in the
// returned outcome is informational only.
func (s *QuizSession) Answer(ctx context.Context, selected string) (*AnswerOutcome, error) {
	switch s.state {
	case NotStarted:
		return nil, ErrNotStarted
	case Completed:
		return nil, ErrCompleted
	}

	q := s.questions[s.index]
	correct := selected == q.CorrectAnswer

	if _, err := s.store.LogQuizResult(ctx, s.tenantID, q.ID, correct); err != nil {
		return nil, fmt.Errorf("failed to log quiz result: %w", err)
	}

	if correct {
		s.score++
	}
	s.index++
	if s.index >= len(s.questions) {
		s.state = Completed
	}

	return &AnswerOutcome{
		Correct:       correct,
		CorrectAnswer: q.CorrectAnswer,
		Explanation:   q.Explanation,
	}, nil
}

func (s *QuizSession) Progress() Progress {
	return Progress{
		State: s.state,
		Index: s.index,
		Total: len(s.questions),
		Score: s.score,
	}
}
