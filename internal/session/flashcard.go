package session

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/local-insights/backend/internal/storage/models"
	"github.com/local-insights/backend/internal/tenant"
	"github.com/local-insights/backend/pkg/logger"
)

// FlashcardStore is the slice of the material store a flashcard session
// needs: a due set to walk and a place to record each outcome.
type FlashcardStore interface {
	GetFlashcardsForReview(ctx context.Context, tenantID tenant.ID, limit int) ([]models.Flashcard, error)
	UpdateFlashcardReview(ctx context.Context, tenantID tenant.ID, flashcardID int64, correct bool) error
}

// FlashcardSession walks a due set of flashcards one card at a time.
// Each card is shown question-first; the caller reveals the answer and
// then records whether it was recalled correctly, which feeds the
// scheduler via the store. Not safe for concurrent use.
type FlashcardSession struct {
	store    FlashcardStore
	tenantID tenant.ID

	state    State
	cards    []models.Flashcard
	index    int
	score    int
	revealed bool
}

func NewFlashcardSession(store FlashcardStore, tenantID tenant.ID) *FlashcardSession {
	return &FlashcardSession{
		store:    store,
		tenantID: tenantID,
		state:    NotStarted,
	}
}

// Start fetches up to count due cards and binds them to the session.
// Returns ErrNoItems when nothing is due.
func (s *FlashcardSession) Start(ctx context.Context, count int) error {
	if s.state != NotStarted {
		return ErrAlreadyStarted
	}

	cards, err := s.store.GetFlashcardsForReview(ctx, s.tenantID, count)
	if err != nil {
		return fmt.Errorf("failed to fetch due flashcards: %w", err)
	}
	if len(cards) == 0 {
		return ErrNoItems
	}

	s.cards = cards
	s.index = 0
	s.score = 0
	s.revealed = false
	s.state = InProgress

	logger.GetLogger().Info("Flashcard session started",
		zap.Int64("user_id", int64(s.tenantID)),
		zap.Int("cards", len(cards)))

	return nil
}

// Current returns the card under review and whether its answer side is
// showing.
func (s *FlashcardSession) Current() (*models.Flashcard, bool, error) {
	switch s.state {
	case NotStarted:
		return nil, false, ErrNotStarted
	case Completed:
		return nil, false, ErrCompleted
	}
	return &s.cards[s.index], s.revealed, nil
}

// Reveal shows the answer side of the current card.
func (s *FlashcardSession) Reveal() error {
	switch s.state {
	case NotStarted:
		return ErrNotStarted
	case Completed:
		return ErrCompleted
	}
	s.revealed = true
	return nil
}

// Answer records the outcome for the current card, persists the
// scheduler update, and advances. Calling it before Reveal is a usage
// error.
func (s *FlashcardSession) Answer(ctx context.Context, correct bool) error {
	switch s.state {
	case NotStarted:
		return ErrNotStarted
	case Completed:
		return ErrCompleted
	}
	if !s.revealed {
		return ErrNotRevealed
	}

	card := s.cards[s.index]
	if err := s.store.UpdateFlashcardReview(ctx, s.tenantID, card.ID, correct); err != nil {
		return fmt.Errorf("failed to record review outcome: %w", err)
	}

	if correct {
		s.score++
	}
	s.index++
	s.revealed = false
	if s.index >= len(s.cards) {
		s.state = Completed
	}

	return nil
}

func (s *FlashcardSession) Progress() Progress {
	return Progress{
		State: s.state,
		Index: s.index,
		Total: len(s.cards),
		Score: s.score,
	}
}
