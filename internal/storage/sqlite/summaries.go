package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/local-insights/backend/internal/storage/models"
	"github.com/local-insights/backend/internal/tenant"
)

func (c *Client) CreateSummary(ctx context.Context, tenantID tenant.ID, documentID int64, summaryText string) (int64, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return 0, err
	}

	query := `INSERT INTO summaries (user_id, document_id, summary_text, created_at) VALUES (?, ?, ?, ?)`

	res, err := c.db.ExecContext(ctx, query, int64(tenantID), documentID, summaryText, c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to create summary: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read summary id: %w", err)
	}

	return id, nil
}

// GetSummaries lists the tenant's summaries, newest first, optionally filtered
// to one document (documentID > 0).
func (c *Client) GetSummaries(ctx context.Context, tenantID tenant.ID, documentID int64, limit int) ([]models.Summary, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT s.id, s.user_id, s.document_id, d.filename, s.summary_text, s.created_at
		FROM summaries s
		JOIN documents d ON s.document_id = d.id
		WHERE s.user_id = ?
	`
	args := []interface{}{int64(tenantID)}

	if documentID > 0 {
		query += ` AND s.document_id = ?`
		args = append(args, documentID)
	}
	query += ` ORDER BY s.created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list summaries: %w", err)
	}
	defer rows.Close()

	var summaries []models.Summary
	for rows.Next() {
		var s models.Summary
		var createdAt int64
		var docID sql.NullInt64

		err := rows.Scan(&s.ID, &s.UserID, &docID, &s.Filename, &s.SummaryText, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		s.DocumentID = docID.Int64
		s.CreatedAt = timeFromUnix(createdAt)
		summaries = append(summaries, s)
	}

	return summaries, rows.Err()
}
