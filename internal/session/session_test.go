package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local-insights/backend/internal/storage/models"
	"github.com/local-insights/backend/internal/tenant"
)

// fakeStore records every store call so tests can assert both results
// and the absence of storage traffic.
type fakeStore struct {
	cards     []models.Flashcard
	questions []models.QuizQuestion

	calls   []string
	reviews []reviewCall
	results []resultCall
}

type reviewCall struct {
	tenantID    tenant.ID
	flashcardID int64
	correct     bool
}

type resultCall struct {
	tenantID       tenant.ID
	quizQuestionID int64
	correct        bool
}

func (f *fakeStore) GetFlashcardsForReview(_ context.Context, tenantID tenant.ID, limit int) ([]models.Flashcard, error) {
	f.calls = append(f.calls, "GetFlashcardsForReview")
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}
	if limit > 0 && len(f.cards) > limit {
		return f.cards[:limit], nil
	}
	return f.cards, nil
}

func (f *fakeStore) UpdateFlashcardReview(_ context.Context, tenantID tenant.ID, flashcardID int64, correct bool) error {
	f.calls = append(f.calls, "UpdateFlashcardReview")
	f.reviews = append(f.reviews, reviewCall{tenantID, flashcardID, correct})
	return nil
}

func (f *fakeStore) GetRandomQuiz(_ context.Context, tenantID tenant.ID, documentID int64, count int) ([]models.QuizQuestion, error) {
	f.calls = append(f.calls, "GetRandomQuiz")
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}
	if count > 0 && len(f.questions) > count {
		return f.questions[:count], nil
	}
	return f.questions, nil
}

func (f *fakeStore) LogQuizResult(_ context.Context, tenantID tenant.ID, quizQuestionID int64, correct bool) (int64, error) {
	f.calls = append(f.calls, "LogQuizResult")
	f.results = append(f.results, resultCall{tenantID, quizQuestionID, correct})
	return int64(len(f.results)), nil
}

func someCards(n int) []models.Flashcard {
	cards := make([]models.Flashcard, n)
	for i := range cards {
		cards[i] = models.Flashcard{
			ID:       int64(i + 1),
			Question: fmt.Sprintf("Q%d", i+1),
			Answer:   fmt.Sprintf("A%d", i+1),
		}
	}
	return cards
}

func someQuestions(n int) []models.QuizQuestion {
	questions := make([]models.QuizQuestion, n)
	for i := range questions {
		questions[i] = models.QuizQuestion{
			ID:            int64(i + 1),
			QuestionText:  fmt.Sprintf("Q%d", i+1),
			CorrectAnswer: "right",
			Explanation:   "because",
		}
	}
	return questions
}

func TestFlashcardSessionEmptyDueSet(t *testing.T) {
	store := &fakeStore{}
	s := NewFlashcardSession(store, 1)

	err := s.Start(context.Background(), 10)
	assert.ErrorIs(t, err, ErrNoItems)
	assert.Equal(t, NotStarted, s.Progress().State)
}

func TestFlashcardSessionBeforeStart(t *testing.T) {
	s := NewFlashcardSession(&fakeStore{cards: someCards(1)}, 1)

	_, _, err := s.Current()
	assert.ErrorIs(t, err, ErrNotStarted)
	assert.ErrorIs(t, s.Reveal(), ErrNotStarted)
	assert.ErrorIs(t, s.Answer(context.Background(), true), ErrNotStarted)
}

func TestFlashcardSessionAnswerRequiresReveal(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{cards: someCards(2)}
	s := NewFlashcardSession(store, 1)
	require.NoError(t, s.Start(ctx, 10))

	err := s.Answer(ctx, true)
	assert.ErrorIs(t, err, ErrNotRevealed)
	assert.Empty(t, store.reviews, "nothing persisted on a usage error")

	require.NoError(t, s.Reveal())
	require.NoError(t, s.Answer(ctx, true))

	// Reveal does not carry over to the next card.
	err = s.Answer(ctx, true)
	assert.ErrorIs(t, err, ErrNotRevealed)
}

func TestFlashcardSessionWalkAndScore(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{cards: someCards(3)}
	s := NewFlashcardSession(store, 7)
	require.NoError(t, s.Start(ctx, 10))

	outcomes := []bool{true, false, true}
	for i, correct := range outcomes {
		card, revealed, err := s.Current()
		require.NoError(t, err)
		assert.False(t, revealed)
		assert.Equal(t, fmt.Sprintf("Q%d", i+1), card.Question)

		require.NoError(t, s.Reveal())
		_, revealed, err = s.Current()
		require.NoError(t, err)
		assert.True(t, revealed)

		require.NoError(t, s.Answer(ctx, correct))
	}

	p := s.Progress()
	assert.Equal(t, Completed, p.State)
	assert.Equal(t, 3, p.Index)
	assert.Equal(t, 3, p.Total)
	assert.Equal(t, 2, p.Score)

	// Every outcome went to the store under the session's tenant.
	require.Len(t, store.reviews, 3)
	for i, r := range store.reviews {
		assert.Equal(t, tenant.ID(7), r.tenantID)
		assert.Equal(t, int64(i+1), r.flashcardID)
		assert.Equal(t, outcomes[i], r.correct)
	}
}

func TestFlashcardSessionCompletedIsTerminal(t *testing.T) {
	ctx := context.Background()
	s := NewFlashcardSession(&fakeStore{cards: someCards(1)}, 1)
	require.NoError(t, s.Start(ctx, 10))
	require.NoError(t, s.Reveal())
	require.NoError(t, s.Answer(ctx, true))

	_, _, err := s.Current()
	assert.ErrorIs(t, err, ErrCompleted)
	assert.ErrorIs(t, s.Reveal(), ErrCompleted)
	assert.ErrorIs(t, s.Answer(ctx, true), ErrCompleted)
	assert.ErrorIs(t, s.Start(ctx, 10), ErrAlreadyStarted)
}

func TestFlashcardSessionRespectsCount(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{cards: someCards(20)}
	s := NewFlashcardSession(store, 1)
	require.NoError(t, s.Start(ctx, 5))
	assert.Equal(t, 5, s.Progress().Total)
}

func TestQuizSessionExactMatchGrading(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{questions: []models.QuizQuestion{
		{ID: 1, QuestionText: "Q", CorrectAnswer: "Paris", Explanation: "capital"},
		{ID: 2, QuestionText: "Q", CorrectAnswer: "true"},
		{ID: 3, QuestionText: "Q", CorrectAnswer: "42"},
	}}
	s := NewQuizSession(store, 3)
	require.NoError(t, s.Start(ctx, 0, 10))

	out, err := s.Answer(ctx, "Paris")
	require.NoError(t, err)
	assert.True(t, out.Correct)
	assert.Equal(t, "Paris", out.CorrectAnswer)
	assert.Equal(t, "capital", out.Explanation)

	// Grading is literal: case and whitespace matter.
	out, err = s.Answer(ctx, "True")
	require.NoError(t, err)
	assert.False(t, out.Correct)
	assert.Equal(t, "true", out.CorrectAnswer)

	out, err = s.Answer(ctx, " 42")
	require.NoError(t, err)
	assert.False(t, out.Correct)

	p := s.Progress()
	assert.Equal(t, Completed, p.State)
	assert.Equal(t, 1, p.Score)

	require.Len(t, store.results, 3)
	assert.True(t, store.results[0].correct)
	assert.False(t, store.results[1].correct)
	assert.False(t, store.results[2].correct)
}

func TestQuizSessionEmpty(t *testing.T) {
	s := NewQuizSession(&fakeStore{}, 1)
	err := s.Start(context.Background(), 0, 10)
	assert.ErrorIs(t, err, ErrNoItems)
}

func TestQuizSessionLifecycleErrors(t *testing.T) {
	ctx := context.Background()
	s := NewQuizSession(&fakeStore{questions: someQuestions(1)}, 1)

	_, err := s.Current()
	assert.ErrorIs(t, err, ErrNotStarted)
	_, err = s.Answer(ctx, "x")
	assert.ErrorIs(t, err, ErrNotStarted)

	require.NoError(t, s.Start(ctx, 0, 10))
	_, err = s.Answer(ctx, "right")
	require.NoError(t, err)

	_, err = s.Current()
	assert.ErrorIs(t, err, ErrCompleted)
	_, err = s.Answer(ctx, "right")
	assert.ErrorIs(t, err, ErrCompleted)
}

func TestManagerRejectsInvalidTenantWithoutStoreCalls(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{cards: someCards(3), questions: someQuestions(3)}
	m := NewManager(store)

	for _, id := range []tenant.ID{0, -5} {
		_, _, err := m.StartFlashcards(ctx, id, 10)
		assert.ErrorIs(t, err, tenant.ErrInvalidTenant)

		_, _, err = m.StartQuiz(ctx, id, 0, 10)
		assert.ErrorIs(t, err, tenant.ErrInvalidTenant)

		_, err = m.Flashcards(id, "whatever")
		assert.ErrorIs(t, err, tenant.ErrInvalidTenant)
	}

	assert.Empty(t, store.calls, "invalid tenant never reaches the store")
}

func TestManagerSessionLookup(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{cards: someCards(3)}
	m := NewManager(store)

	id, started, err := m.StartFlashcards(ctx, 1, 10)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	got, err := m.Flashcards(1, id)
	require.NoError(t, err)
	assert.Same(t, started, got)

	_, err = m.Flashcards(1, "no-such-id")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManagerCrossTenantLookupIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{cards: someCards(3), questions: someQuestions(3)}
	m := NewManager(store)

	fcID, _, err := m.StartFlashcards(ctx, 1, 10)
	require.NoError(t, err)
	quizID, _, err := m.StartQuiz(ctx, 1, 0, 10)
	require.NoError(t, err)

	_, err = m.Flashcards(2, fcID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = m.Quiz(2, quizID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Another tenant cannot end the session either.
	m.End(2, fcID)
	_, err = m.Flashcards(1, fcID)
	assert.NoError(t, err)

	m.End(1, fcID)
	_, err = m.Flashcards(1, fcID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStateStrings(t *testing.T) {
	assert.Equal(t, "not_started", NotStarted.String())
	assert.Equal(t, "in_progress", InProgress.String())
	assert.Equal(t, "completed", Completed.String())
}
