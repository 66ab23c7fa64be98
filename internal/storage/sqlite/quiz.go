package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/local-insights/backend/internal/storage/models"
	"github.com/local-insights/backend/internal/tenant"
	"github.com/local-insights/backend/pkg/logger"
)

func (c *Client) CreateQuizQuestion(ctx context.Context, tenantID tenant.ID, documentID *int64, q models.NewQuizQuestion) (int64, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return 0, err
	}

	query := `
		INSERT INTO quiz_questions (user_id, document_id, question_type, question_text, options, correct_answer, explanation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	res, err := c.db.ExecContext(ctx, query,
		int64(tenantID), docIDArg(documentID), questionType(q.QuestionType), q.QuestionText,
		joinOptions(q.Options), q.CorrectAnswer, q.Explanation, c.now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create quiz question: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read quiz question id: %w", err)
	}

	return id, nil
}

// CreateQuizQuestionsBulk inserts all questions in one transaction; any
// failure rolls back the whole batch.
func (c *Client) CreateQuizQuestionsBulk(ctx context.Context, tenantID tenant.ID, documentID *int64, questions []models.NewQuizQuestion) (int, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return 0, err
	}
	if len(questions) == 0 {
		return 0, nil
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO quiz_questions (user_id, document_id, question_type, question_text, options, correct_answer, explanation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := c.now().Unix()
	for _, q := range questions {
		_, err := stmt.ExecContext(ctx,
			int64(tenantID), docIDArg(documentID), questionType(q.QuestionType), q.QuestionText,
			joinOptions(q.Options), q.CorrectAnswer, q.Explanation, now,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert quiz question: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit quiz questions: %w", err)
	}

	logger.Info("Quiz questions inserted",
		zap.Int("count", len(questions)),
		zap.Int64("user_id", int64(tenantID)),
	)

	return len(questions), nil
}

// GetQuizQuestions lists the tenant's questions, optionally filtered to one
// document (documentID > 0), newest first.
func (c *Client) GetQuizQuestions(ctx context.Context, tenantID tenant.ID, documentID int64, limit int) ([]models.QuizQuestion, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, document_id, question_type, question_text, options, correct_answer, explanation, created_at
		FROM quiz_questions
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
		return nil, fmt.Errorf("failed to list quiz questions: %w", err)
	}
	defer rows.Close()

	return scanQuizQuestions(rows)
}

// GetRandomQuiz returns a uniform random sample of up to count questions,
// optionally restricted to one document. Quiz questions carry no review
// scheduling; sampling is the whole selection policy.
func (c *Client) GetRandomQuiz(ctx context.Context, tenantID tenant.ID, documentID int64, count int) ([]models.QuizQuestion, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, document_id, question_type, question_text, options, correct_answer, explanation, created_at
		FROM quiz_questions
		WHERE user_id = ?
	`
	args := []interface{}{int64(tenantID)}

	if documentID > 0 {
		query += ` AND document_id = ?`
		args = append(args, documentID)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query quiz questions: %w", err)
	}
	defer rows.Close()

	questions, err := scanQuizQuestions(rows)
	if err != nil {
		return nil, err
	}

	c.rnd.Shuffle(len(questions), func(i, j int) {
		questions[i], questions[j] = questions[j], questions[i]
	})
	if count > 0 && len(questions) > count {
		questions = questions[:count]
	}

	return questions, nil
}

// LogQuizResult appends a history event for one quiz answer.
func (c *Client) LogQuizResult(ctx context.Context, tenantID tenant.ID, quizQuestionID int64, correct bool) (int64, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return 0, err
	}

	result := models.ResultIncorrect
	if correct {
		result = models.ResultCorrect
	}

	res, err := c.db.ExecContext(ctx,
		`INSERT INTO learning_history (user_id, quiz_question_id, result, review_date) VALUES (?, ?, ?, ?)`,
		int64(tenantID), quizQuestionID, result, c.now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to log quiz result: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read history id: %w", err)
	}

	return id, nil
}

func scanQuizQuestions(rows *sql.Rows) ([]models.QuizQuestion, error) {
	var questions []models.QuizQuestion
	for rows.Next() {
		var q models.QuizQuestion
		var createdAt int64
		var docID sql.NullInt64
		var options sql.NullString

		err := rows.Scan(&q.ID, &q.UserID, &docID, &q.QuestionType, &q.QuestionText,
			&options, &q.CorrectAnswer, &q.Explanation, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		q.DocumentID = nullableInt64(docID)
		q.Options = splitOptions(options.String)
		q.CreatedAt = timeFromUnix(createdAt)
		questions = append(questions, q)
	}

	return questions, rows.Err()
}

func questionType(t string) string {
	if t == "" {
		return models.QuestionMultipleChoice
	}
	return t
}

func joinOptions(options []string) string {
	return strings.Join(options, models.OptionsDelimiter)
}

func splitOptions(serialized string) []string {
	if serialized == "" {
		return nil
	}
	return strings.Split(serialized, models.OptionsDelimiter)
}
