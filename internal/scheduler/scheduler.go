// Package scheduler implements the spaced-repetition policy for flashcard
// review. The interval is a step function of the card's cumulative success
// rate and the latest outcome only; there is no ease factor and no interval
// history. One incorrect answer resets the card to a 1-day interval no matter
// how long its previous cadence was.
package scheduler

import (
	"math/rand"
	"sort"
	"time"

	"github.com/local-insights/backend/internal/storage/models"
)

const day = 24 * time.Hour

// NextInterval returns the delay until the next review given the post-outcome
// counters. timesReviewed must already include the outcome being recorded, so
// it is always >= 1 here.
func NextInterval(timesReviewed, timesCorrect int, correct bool) time.Duration {
	if !correct {
		return 1 * day
	}

	successRate := float64(timesCorrect) / float64(timesReviewed)
	switch {
	case successRate >= 0.8:
		return 30 * day
	case successRate >= 0.6:
		return 14 * day
	case successRate >= 0.4:
		return 7 * day
	default:
		return 3 * day
	}
}

// Apply records one outcome on the card: counters, last_reviewed and
// next_review. The caller persists the result together with the matching
// history event in a single transaction.
func Apply(card *models.Flashcard, correct bool, now time.Time) {
	card.TimesReviewed++
	if correct {
		card.TimesCorrect++
	}

	next := now.Add(NextInterval(card.TimesReviewed, card.TimesCorrect, correct))
	card.LastReviewed = &now
	card.NextReview = &next
}

// IsDue reports whether a card is eligible for review: never scheduled, or
// its scheduled time has passed.
func IsDue(card *models.Flashcard, now time.Time) bool {
	return card.NextReview == nil || !card.NextReview.After(now)
}

// OrderDueSet sorts a due set ascending by times_reviewed so under-reviewed
// cards surface first, shuffling ties with the supplied random source. The
// source is injected so tests can fix the seed.
func OrderDueSet(cards []models.Flashcard, rnd *rand.Rand) {
	rnd.Shuffle(len(cards), func(i, j int) {
		cards[i], cards[j] = cards[j], cards[i]
	})
	sort.SliceStable(cards, func(i, j int) bool {
		return cards[i].TimesReviewed < cards[j].TimesReviewed
	})
}
