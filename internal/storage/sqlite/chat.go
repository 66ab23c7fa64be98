package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/local-insights/backend/internal/storage/models"
	"github.com/local-insights/backend/internal/tenant"
)

func (c *Client) CreateConversation(ctx context.Context, tenantID tenant.ID, title, modelName string) (int64, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return 0, err
	}

	if title == "" {
		title = "New conversation"
	}

	now := c.now().Unix()
	res, err := c.db.ExecContext(ctx,
		`INSERT INTO conversations (user_id, title, model_name, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		int64(tenantID), title, modelName, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create conversation: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read conversation id: %w", err)
	}

	return id, nil
}

func (c *Client) ListConversations(ctx context.Context, tenantID tenant.ID, limit int) ([]models.Conversation, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, title, model_name, created_at, updated_at
		FROM conversations
		WHERE user_id = ?
		ORDER BY updated_at DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, int64(tenantID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	var convs []models.Conversation
	for rows.Next() {
		var conv models.Conversation
		var createdAt, updatedAt int64
		var modelName sql.NullString

		err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &modelName, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		conv.ModelName = modelName.String
		conv.CreatedAt = timeFromUnix(createdAt)
		conv.UpdatedAt = timeFromUnix(updatedAt)
		convs = append(convs, conv)
	}

	return convs, rows.Err()
}

func (c *Client) GetConversation(ctx context.Context, tenantID tenant.ID, conversationID int64) (*models.Conversation, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT id, user_id, title, model_name, created_at, updated_at FROM conversations WHERE id = ? AND user_id = ?`

	var conv models.Conversation
	var createdAt, updatedAt int64
	var modelName sql.NullString

	err := c.db.QueryRowContext(ctx, query, conversationID, int64(tenantID)).Scan(
		&conv.ID, &conv.UserID, &conv.Title, &modelName, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	conv.ModelName = modelName.String
	conv.CreatedAt = timeFromUnix(createdAt)
	conv.UpdatedAt = timeFromUnix(updatedAt)

	return &conv, nil
}

func (c *Client) UpdateConversationTitle(ctx context.Context, tenantID tenant.ID, conversationID int64, title string) (bool, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return false, err
	}

	res, err := c.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		title, c.now().Unix(), conversationID, int64(tenantID),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update conversation: %w", err)
	}

	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (c *Client) DeleteConversation(ctx context.Context, tenantID tenant.ID, conversationID int64) (bool, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return false, err
	}

	res, err := c.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE id = ? AND user_id = ?`,
		conversationID, int64(tenantID),
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete conversation: %w", err)
	}

	n, _ := res.RowsAffected()
	return n > 0, nil
}

// CreateMessage appends a turn to a conversation the tenant owns and bumps
// the conversation's updated_at. A conversation id belonging to another
// tenant yields ErrNotFound.
func (c *Client) CreateMessage(ctx context.Context, tenantID tenant.ID, conversationID int64, role, content string) (int64, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return 0, err
	}

	if _, err := c.GetConversation(ctx, tenantID, conversationID); err != nil {
		return 0, err
	}

	now := c.now().Unix()

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, user_id, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		conversationID, int64(tenantID), role, content, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create message: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE conversations SET updated_at = ? WHERE id = ?`,
		now, conversationID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit message: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read message id: %w", err)
	}

	return id, nil
}

func (c *Client) GetMessages(ctx context.Context, tenantID tenant.ID, conversationID int64, limit int) ([]models.Message, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, conversation_id, user_id, role, content, created_at
		FROM messages
		WHERE conversation_id = ? AND user_id = ?
		ORDER BY created_at ASC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, conversationID, int64(tenantID), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

// GetRecentMessages returns the last n turns of a conversation in
// chronological order, for building model context windows.
func (c *Client) GetRecentMessages(ctx context.Context, tenantID tenant.ID, conversationID int64, n int) ([]models.Message, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, conversation_id, user_id, role, content, created_at
		FROM (
			SELECT id, conversation_id, user_id, role, content, created_at
			FROM messages
			WHERE conversation_id = ? AND user_id = ?
			ORDER BY created_at DESC, id DESC
			LIMIT ?
		)
		ORDER BY created_at ASC, id ASC
	`

	rows, err := c.db.QueryContext(ctx, query, conversationID, int64(tenantID), n)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (c *Client) SearchMessages(ctx context.Context, tenantID tenant.ID, term string, limit int) ([]models.Message, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, conversation_id, user_id, role, content, created_at
		FROM messages
		WHERE user_id = ? AND content LIKE ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, int64(tenantID), "%"+term+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search messages: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func scanMessages(rows *sql.Rows) ([]models.Message, error) {
	var msgs []models.Message
	for rows.Next() {
		var m models.Message
		var createdAt int64

		err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Role, &m.Content, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		m.CreatedAt = timeFromUnix(createdAt)
		msgs = append(msgs, m)
	}

	return msgs, rows.Err()
}
