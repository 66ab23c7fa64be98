package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/local-insights/backend/internal/storage/models"
	"github.com/local-insights/backend/internal/tenant"
	"github.com/local-insights/backend/pkg/logger"
)

func (c *Client) CreateDocument(ctx context.Context, tenantID tenant.ID, filename, content, docType, checksum string) (int64, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return 0, err
	}

	query := `INSERT INTO documents (user_id, filename, content, doc_type, checksum, upload_date, is_processed) VALUES (?, ?, ?, ?, ?, ?, 0)`

	res, err := c.db.ExecContext(ctx, query, int64(tenantID), filename, content, docType, checksum, c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to create document: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read document id: %w", err)
	}

	logger.Info("Document created",
		zap.Int64("document_id", id),
		zap.Int64("user_id", int64(tenantID)),
		zap.String("filename", filename),
	)

	return id, nil
}

func (c *Client) GetDocuments(ctx context.Context, tenantID tenant.ID, limit int) ([]models.Document, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, filename, doc_type, checksum, upload_date, is_processed
		FROM documents
		WHERE user_id = ?
		ORDER BY upload_date DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, int64(tenantID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []models.Document
	for rows.Next() {
		var d models.Document
		var uploadDate int64
		var isProcessed int
		var checksum sql.NullString

		err := rows.Scan(&d.ID, &d.UserID, &d.Filename, &d.DocType, &checksum, &uploadDate, &isProcessed)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		d.Checksum = checksum.String
		d.UploadDate = timeFromUnix(uploadDate)
		d.IsProcessed = isProcessed != 0
		docs = append(docs, d)
	}

	return docs, rows.Err()
}

// GetDocument resolves an id under the tenant filter. A document owned by
// another tenant yields ErrNotFound, the same as a missing row.
func (c *Client) GetDocument(ctx context.Context, tenantID tenant.ID, documentID int64) (*models.Document, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, filename, content, doc_type, checksum, upload_date, is_processed
		FROM documents
		WHERE id = ? AND user_id = ?
	`

	var d models.Document
	var uploadDate int64
	var isProcessed int
	var content, checksum sql.NullString

	err := c.db.QueryRowContext(ctx, query, documentID, int64(tenantID)).Scan(
		&d.ID, &d.UserID, &d.Filename, &content, &d.DocType, &checksum, &uploadDate, &isProcessed,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	d.Content = content.String
	d.Checksum = checksum.String
	d.UploadDate = timeFromUnix(uploadDate)
	d.IsProcessed = isProcessed != 0

	return &d, nil
}

// FindDocumentByChecksum supports duplicate-upload detection. Returns
// ErrNotFound when the tenant has no document with this checksum.
func (c *Client) FindDocumentByChecksum(ctx context.Context, tenantID tenant.ID, checksum string) (*models.Document, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT id FROM documents WHERE user_id = ? AND checksum = ? LIMIT 1`

	var id int64
	err := c.db.QueryRowContext(ctx, query, int64(tenantID), checksum).Scan(&id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document by checksum: %w", err)
	}

	return c.GetDocument(ctx, tenantID, id)
}

func (c *Client) MarkDocumentProcessed(ctx context.Context, tenantID tenant.ID, documentID int64) (bool, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return false, err
	}

	query := `UPDATE documents SET is_processed = 1 WHERE id = ? AND user_id = ?`

	res, err := c.db.ExecContext(ctx, query, documentID, int64(tenantID))
	if err != nil {
		return false, fmt.Errorf("failed to mark document processed: %w", err)
	}

	n, _ := res.RowsAffected()
	return n > 0, nil
}

// DeleteDocument removes the document and cascades to its summaries,
// flashcards and quiz questions at the storage level.
func (c *Client) DeleteDocument(ctx context.Context, tenantID tenant.ID, documentID int64) (bool, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return false, err
	}

	res, err := c.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ? AND user_id = ?`, documentID, int64(tenantID))
	if err != nil {
		return false, fmt.Errorf("failed to delete document: %w", err)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		logger.Info("Document deleted",
			zap.Int64("document_id", documentID),
			zap.Int64("user_id", int64(tenantID)),
		)
	}
	return n > 0, nil
}
