package scheduler

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local-insights/backend/internal/storage/models"
)

func TestNextIntervalIncorrectAlwaysOneDay(t *testing.T) {
	// Even a card with a perfect record drops to 1 day on a miss.
	assert.Equal(t, 1*day, NextInterval(10, 9, false))
	assert.Equal(t, 1*day, NextInterval(1, 0, false))
	assert.Equal(t, 1*day, NextInterval(100, 100, false))
}

func TestNextIntervalTiers(t *testing.T) {
	tests := []struct {
		name     string
		reviewed int
		correct  int
		want     time.Duration
	}{
		{"rate 1.0", 10, 10, 30 * day},
		{"rate 0.8 boundary", 10, 8, 30 * day},
		{"rate 0.7", 10, 7, 14 * day},
		{"rate 0.6 boundary", 10, 6, 14 * day},
		{"rate 0.5", 10, 5, 7 * day},
		{"rate 0.4 boundary", 10, 4, 7 * day},
		{"rate 0.3", 10, 3, 3 * day},
		{"rate 0 first correct counted", 10, 1, 3 * day},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextInterval(tt.reviewed, tt.correct, true))
		})
	}
}

func TestNextIntervalMonotonic(t *testing.T) {
	// Interval never decreases as the success rate climbs.
	const reviewed = 100
	prev := time.Duration(0)
	for correct := 0; correct <= reviewed; correct++ {
		got := NextInterval(reviewed, correct, true)
		require.GreaterOrEqual(t, got, prev,
			"interval shrank at %d/%d", correct, reviewed)
		prev = got
	}
}

func TestApplyCorrect(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	card := &models.Flashcard{TimesReviewed: 9, TimesCorrect: 7}

	Apply(card, true, now)

	assert.Equal(t, 10, card.TimesReviewed)
	assert.Equal(t, 8, card.TimesCorrect)
	require.NotNil(t, card.LastReviewed)
	require.NotNil(t, card.NextReview)
	assert.Equal(t, now, *card.LastReviewed)
	assert.Equal(t, now.Add(30*day), *card.NextReview)
}

func TestApplyIncorrect(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	card := &models.Flashcard{TimesReviewed: 9, TimesCorrect: 7}

	Apply(card, false, now)

	assert.Equal(t, 10, card.TimesReviewed)
	assert.Equal(t, 7, card.TimesCorrect)
	assert.Equal(t, now.Add(1*day), *card.NextReview)
}

func TestApplyPreservesCounterInvariant(t *testing.T) {
	// times_correct <= times_reviewed holds through any outcome sequence.
	card := &models.Flashcard{}
	now := time.Now()
	rnd := rand.New(rand.NewSource(7))

	for i := 0; i < 500; i++ {
		Apply(card, rnd.Intn(2) == 0, now)
		require.LessOrEqual(t, card.TimesCorrect, card.TimesReviewed)
		now = now.Add(time.Hour)
	}
}

func TestIsDue(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, IsDue(&models.Flashcard{}, now), "never-scheduled card is due")
	assert.True(t, IsDue(&models.Flashcard{NextReview: &past}, now))
	assert.True(t, IsDue(&models.Flashcard{NextReview: &now}, now), "exactly-now is due")
	assert.False(t, IsDue(&models.Flashcard{NextReview: &future}, now))
}

func TestOrderDueSetLeastReviewedFirst(t *testing.T) {
	cards := []models.Flashcard{
		{ID: 1, TimesReviewed: 5},
		{ID: 2, TimesReviewed: 0},
		{ID: 3, TimesReviewed: 2},
		{ID: 4, TimesReviewed: 0},
		{ID: 5, TimesReviewed: 2},
	}

	OrderDueSet(cards, rand.New(rand.NewSource(1)))

	reviewed := make([]int, len(cards))
	for i, c := range cards {
		reviewed[i] = c.TimesReviewed
	}
	assert.Equal(t, []int{0, 0, 2, 2, 5}, reviewed)
}

func TestOrderDueSetShufflesTies(t *testing.T) {
	// With all counts equal the order is the shuffle order, which a fixed
	// seed makes deterministic.
	make5 := func() []models.Flashcard {
		return []models.Flashcard{{ID: 1}, {ID: 2}, {ID: 3}, {ID: 4}, {ID: 5}}
	}

	a := make5()
	b := make5()
	OrderDueSet(a, rand.New(rand.NewSource(42)))
	OrderDueSet(b, rand.New(rand.NewSource(42)))

	assert.Equal(t, ids(a), ids(b), "same seed gives same order")

	seen := map[[5]int64]bool{}
	for seed := int64(0); seed < 10; seed++ {
		c := make5()
		OrderDueSet(c, rand.New(rand.NewSource(seed)))
		var key [5]int64
		copy(key[:], ids(c))
		seen[key] = true
	}
	assert.Greater(t, len(seen), 1, "different seeds produce different orders")
}

func ids(cards []models.Flashcard) []int64 {
	out := make([]int64, len(cards))
	for i, c := range cards {
		out[i] = c.ID
	}
	return out
}
