package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/local-insights/backend/internal/storage/models"
	"github.com/local-insights/backend/internal/tenant"
)

// GetLearningStats derives the tenant's counters from the append-only history
// log plus entity counts. A tenant with no history has a well-defined 0%
// success rate, not an error.
func (c *Client) GetLearningStats(ctx context.Context, tenantID tenant.ID) (*models.LearningStats, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	stats := &models.LearningStats{}
	uid := int64(tenantID)

	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE user_id = ?`, uid).Scan(&stats.TotalDocuments)
	if err != nil {
		return nil, fmt.Errorf("failed to count documents: %w", err)
	}

	err = c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM flashcards WHERE user_id = ?`, uid).Scan(&stats.TotalFlashcards)
	if err != nil {
		return nil, fmt.Errorf("failed to count flashcards: %w", err)
	}

	err = c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM quiz_questions WHERE user_id = ?`, uid).Scan(&stats.TotalQuestions)
	if err != nil {
		return nil, fmt.Errorf("failed to count quiz questions: %w", err)
	}

	// "Today" is the storage clock's local date; one implicit timezone for
	// the whole deployment.
	dayStart, dayEnd := dayBounds(c.now())
	err = c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM learning_history
		 WHERE user_id = ? AND flashcard_id IS NOT NULL AND review_date >= ? AND review_date < ?`,
		uid, dayStart, dayEnd,
	).Scan(&stats.CardsReviewedToday)
	if err != nil {
		return nil, fmt.Errorf("failed to count reviews today: %w", err)
	}

	var total, correct sql.NullInt64
	err = c.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(CASE WHEN result = 'correct' THEN 1 END)
		 FROM learning_history WHERE user_id = ?`,
		uid,
	).Scan(&total, &correct)
	if err != nil {
		return nil, fmt.Errorf("failed to compute success rate: %w", err)
	}

	if total.Int64 > 0 {
		rate := float64(correct.Int64) * 100.0 / float64(total.Int64)
		stats.SuccessRate = math.Round(rate*10) / 10
	}

	return stats, nil
}

func dayBounds(now time.Time) (int64, int64) {
	year, month, day := now.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, now.Location())
	return start.Unix(), start.AddDate(0, 0, 1).Unix()
}
