package session

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/local-insights/backend/internal/tenant"
)

// ErrSessionNotFound covers both an unknown session id and one owned by
// a different tenant.
var ErrSessionNotFound = errors.New("session not found")

// Store is the material-store surface the manager hands to the sessions
// it creates.
type Store interface {
	FlashcardStore
	QuizStore
}

// Manager owns the live study sessions, keyed by opaque id. Each session
// is bound to the tenant that started it; lookups by another tenant
// behave as if the id does not exist.
type Manager struct {
	store Store

	mu         sync.Mutex
	flashcards map[string]*FlashcardSession
	quizzes    map[string]*QuizSession
	owners     map[string]tenant.ID
}

func NewManager(store Store) *Manager {
	return &Manager{
		store:      store,
		flashcards: make(map[string]*FlashcardSession),
		quizzes:    make(map[string]*QuizSession),
		owners:     make(map[string]tenant.ID),
	}
}

// StartFlashcards creates and starts a flashcard session over the
// tenant's due set, returning its id.
func (m *Manager) StartFlashcards(ctx context.Context, tenantID tenant.ID, count int) (string, *FlashcardSession, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return "", nil, err
	}

	s := NewFlashcardSession(m.store, tenantID)
	if err := s.Start(ctx, count); err != nil {
		return "", nil, err
	}

	id := uuid.New().String()
	m.mu.Lock()
	m.flashcards[id] = s
	m.owners[id] = tenantID
	m.mu.Unlock()

	return id, s, nil
}

// StartQuiz creates and starts a quiz session, returning its id.
func (m *Manager) StartQuiz(ctx context.Context, tenantID tenant.ID, documentID int64, count int) (string, *QuizSession, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return "", nil, err
	}

	s := NewQuizSession(m.store, tenantID)
	if err := s.Start(ctx, documentID, count); err != nil {
		return "", nil, err
	}

	id := uuid.New().String()
	m.mu.Lock()
	m.quizzes[id] = s
	m.owners[id] = tenantID
	m.mu.Unlock()

	return id, s, nil
}

func (m *Manager) Flashcards(tenantID tenant.ID, id string) (*FlashcardSession, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.flashcards[id]
	if !ok || m.owners[id] != tenantID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) Quiz(tenantID tenant.ID, id string) (*QuizSession, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.quizzes[id]
	if !ok || m.owners[id] != tenantID {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// End discards a session. Ending an unknown id is a no-op.
func (m *Manager) End(tenantID tenant.ID, id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.owners[id] != tenantID {
		return
	}
	delete(m.flashcards, id)
	delete(m.quizzes, id)
	delete(m.owners, id)
}
