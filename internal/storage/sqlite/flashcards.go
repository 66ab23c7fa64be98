package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/local-insights/backend/internal/scheduler"
	"github.com/local-insights/backend/internal/storage/models"
	"github.com/local-insights/backend/internal/tenant"
	"github.com/local-insights/backend/pkg/logger"
)

func (c *Client) CreateFlashcard(ctx context.Context, tenantID tenant.ID, documentID *int64, question, answer, difficulty string) (int64, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return 0, err
	}

	query := `INSERT INTO flashcards (user_id, document_id, question, answer, difficulty, created_at) VALUES (?, ?, ?, ?, ?, ?)`

	res, err := c.db.ExecContext(ctx, query, int64(tenantID), docIDArg(documentID), question, answer, difficulty, c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to create flashcard: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read flashcard id: %w", err)
	}

	return id, nil
}

// CreateFlashcardsBulk inserts all cards in one transaction. On any failure
// the transaction rolls back and no rows are written.
func (c *Client) CreateFlashcardsBulk(ctx context.Context, tenantID tenant.ID, documentID *int64, cards []models.NewFlashcard) (int, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return 0, err
	}
	if len(cards) == 0 {
		return 0, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO flashcards (user_id, document_id, question, answer, difficulty, created_at) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := c.now().Unix()
	for _, card := range cards {
		difficulty := card.Difficulty
		if difficulty == "" {
			difficulty = "medium"
		}
		_, err := stmt.ExecContext(ctx, int64(tenantID), docIDArg(documentID), card.Question, card.Answer, difficulty, now)
		if err != nil {
			return 0, fmt.Errorf("failed to insert flashcard: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit flashcards: %w", err)
	}

	logger.Info("Flashcards inserted",
		zap.Int("count", len(cards)),
		zap.Int64("user_id", int64(tenantID)),
	)

	return len(cards), nil
}

// GetFlashcards lists the tenant's cards, optionally filtered to one document
// (documentID > 0), newest first.
func (c *Client) GetFlashcards(ctx context.Context, tenantID tenant.ID, documentID int64, limit int) ([]models.Flashcard, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, document_id, question, answer, difficulty,
		       times_reviewed, times_correct, last_reviewed, next_review, created_at
		FROM flashcards
		WHERE user_id = ?
	`
	args := []interface{}{int64(tenantID)}

	if documentID > 0 {
		query += ` AND document_id = ?`
		args = append(args, documentID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list flashcards: %w", err)
	}
	defer rows.Close()

	return scanFlashcards(rows)
}

// GetFlashcardsForReview returns the due set: cards never scheduled or whose
// next_review has passed, under-reviewed cards first. Ties on times_reviewed
// break randomly via the client's injectable random source.
func (c *Client) GetFlashcardsForReview(ctx context.Context, tenantID tenant.ID, limit int) ([]models.Flashcard, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, document_id, question, answer, difficulty,
		       times_reviewed, times_correct, last_reviewed, next_review, created_at
		FROM flashcards
		WHERE user_id = ? AND (next_review IS NULL OR next_review <= ?)
	`

	rows, err := c.db.QueryContext(ctx, query, int64(tenantID), c.now().Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query due flashcards: %w", err)
	}
	defer rows.Close()

	cards, err := scanFlashcards(rows)
	if err != nil {
		return nil, err
	}

	scheduler.OrderDueSet(cards, c.rnd)
	if limit > 0 && len(cards) > limit {
		cards = cards[:limit]
	}

	return cards, nil
}

func (c *Client) GetFlashcard(ctx context.Context, tenantID tenant.ID, flashcardID int64) (*models.Flashcard, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, document_id, question, answer, difficulty,
		       times_reviewed, times_correct, last_reviewed, next_review, created_at
		FROM flashcards
		WHERE id = ? AND user_id = ?
	`

	rows, err := c.db.QueryContext(ctx, query, flashcardID, int64(tenantID))
	if err != nil {
		return nil, fmt.Errorf("failed to get flashcard: %w", err)
	}
	defer rows.Close()

	cards, err := scanFlashcards(rows)
	if err != nil {
		return nil, err
	}
	if len(cards) == 0 {
		return nil, ErrNotFound
	}

	return &cards[0], nil
}

// UpdateFlashcardReview applies one review outcome: counters and next_review
// on the card, plus the history event, in a single transaction so a crash
// cannot leave the two inconsistent.
func (c *Client) UpdateFlashcardReview(ctx context.Context, tenantID tenant.ID, flashcardID int64, correct bool) error {
	if err := tenant.Validate(tenantID); err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var card models.Flashcard
	err = tx.QueryRowContext(ctx,
		`SELECT times_reviewed, times_correct FROM flashcards WHERE id = ? AND user_id = ?`,
		flashcardID, int64(tenantID),
	).Scan(&card.TimesReviewed, &card.TimesCorrect)
	if err == sql.ErrNoRows {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load flashcard counters: %w", err)
	}

	now := c.now()
	scheduler.Apply(&card, correct, now)

	_, err = tx.ExecContext(ctx,
		`UPDATE flashcards
		 SET times_reviewed = ?, times_correct = ?, last_reviewed = ?, next_review = ?
		 WHERE id = ? AND user_id = ?`,
		card.TimesReviewed, card.TimesCorrect, now.Unix(), card.NextReview.Unix(),
		flashcardID, int64(tenantID),
	)
	if err != nil {
		return fmt.Errorf("failed to update flashcard review: %w", err)
	}

	result := models.ResultIncorrect
	if correct {
		result = models.ResultCorrect
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO learning_history (user_id, flashcard_id, result, review_date) VALUES (?, ?, ?, ?)`,
		int64(tenantID), flashcardID, result, now.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to append history event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit review: %w", err)
	}

	logger.Debug("Flashcard review recorded",
		zap.Int64("flashcard_id", flashcardID),
		zap.Int64("user_id", int64(tenantID)),
		zap.String("result", result),
		zap.Time("next_review", *card.NextReview),
	)

	return nil
}

func scanFlashcards(rows *sql.Rows) ([]models.Flashcard, error) {
	var cards []models.Flashcard
	for rows.Next() {
		var f models.Flashcard
		var createdAt int64
		var docID, lastReviewed, nextReview sql.NullInt64

		err := rows.Scan(&f.ID, &f.UserID, &docID, &f.Question, &f.Answer, &f.Difficulty,
			&f.TimesReviewed, &f.TimesCorrect, &lastReviewed, &nextReview, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		f.DocumentID = nullableInt64(docID)
		f.LastReviewed = nullableTime(lastReviewed)
		f.NextReview = nullableTime(nextReview)
		f.CreatedAt = timeFromUnix(createdAt)
		cards = append(cards, f)
	}

	return cards, rows.Err()
}

func docIDArg(documentID *int64) interface{} {
	if documentID == nil {
		return nil
	}
	return *documentID
}
