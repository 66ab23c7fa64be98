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

// UpsertMemory inserts or updates the item keyed by (category, key). An
// update reactivates a soft-deleted item.
func (c *Client) UpsertMemory(ctx context.Context, tenantID tenant.ID, item models.NewMemoryItem) (int64, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return 0, err
	}
	if item.Category == "" {
		item.Category = models.MemoryCategoryGeneral
	}
	if item.Key == "" {
		return 0, fmt.Errorf("memory key is required")
	}

	now := c.now().Unix()

	var existingID int64
	err := c.db.QueryRowContext(ctx,
		`SELECT id FROM memory_items WHERE user_id = ? AND category = ? AND key = ?`,
		int64(tenantID), item.Category, item.Key,
	).Scan(&existingID)

	if err == nil {
		_, err = c.db.ExecContext(ctx,
			`UPDATE memory_items
			 SET value = ?, confidence = ?, importance = ?, source_message_id = ?,
			     is_active = 1, updated_at = ?
			 WHERE id = ?`,
			item.Value, item.Confidence, item.Importance, docIDArg(item.SourceMessageID), now, existingID,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to update memory item: %w", err)
		}
		return existingID, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("failed to look up memory item: %w", err)
	}

	res, err := c.db.ExecContext(ctx,
		`INSERT INTO memory_items
		 (user_id, category, key, value, confidence, importance, source_message_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(tenantID), item.Category, item.Key, item.Value,
		item.Confidence, item.Importance, docIDArg(item.SourceMessageID), now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert memory item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read memory item id: %w", err)
	}

	logger.Debug("Memory item stored",
		zap.Int64("user_id", int64(tenantID)),
		zap.String("category", item.Category),
		zap.String("key", item.Key),
	)

	return id, nil
}

// ListMemory returns the tenant's memory, most important first. An empty
// category means all categories; activeOnly excludes soft-deleted items.
func (c *Client) ListMemory(ctx context.Context, tenantID tenant.ID, category string, activeOnly bool) ([]models.MemoryItem, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, category, key, value, confidence, importance,
		       source_message_id, is_active, created_at, updated_at
		FROM memory_items
		WHERE user_id = ?
	`
	args := []interface{}{int64(tenantID)}

	if activeOnly {
		query += ` AND is_active = 1`
	}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}
	query += ` ORDER BY importance DESC, updated_at DESC`

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list memory items: %w", err)
	}
	defer rows.Close()

	return scanMemoryItems(rows)
}

// GetMemory returns the active item with the given key. An empty category
// matches any category.
func (c *Client) GetMemory(ctx context.Context, tenantID tenant.ID, category, key string) (*models.MemoryItem, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	query := `
		SELECT id, user_id, category, key, value, confidence, importance,
		       source_message_id, is_active, created_at, updated_at
		FROM memory_items
		WHERE user_id = ? AND key = ? AND is_active = 1
	`
	args := []interface{}{int64(tenantID), key}

	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get memory item: %w", err)
	}
	defer rows.Close()

	items, err := scanMemoryItems(rows)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNotFound
	}

	return &items[0], nil
}

// DeleteMemory removes the item with the given key: soft delete by default,
// hard delete removes the row. An empty category matches any category.
func (c *Client) DeleteMemory(ctx context.Context, tenantID tenant.ID, category, key string, hard bool) (bool, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return false, err
	}

	var query string
	args := []interface{}{}
	if hard {
		query = `DELETE FROM memory_items WHERE user_id = ? AND key = ?`
		args = append(args, int64(tenantID), key)
	} else {
		query = `UPDATE memory_items SET is_active = 0, updated_at = ? WHERE user_id = ? AND key = ?`
		args = append(args, c.now().Unix(), int64(tenantID), key)
	}
	if category != "" {
		query += ` AND category = ?`
		args = append(args, category)
	}

	res, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to delete memory item: %w", err)
	}

	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ClearMemory deactivates (or with hard, removes) all of the tenant's memory
// items and returns how many were affected.
func (c *Client) ClearMemory(ctx context.Context, tenantID tenant.ID, hard bool) (int64, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return 0, err
	}

	var res sql.Result
	var err error
	if hard {
		res, err = c.db.ExecContext(ctx, `DELETE FROM memory_items WHERE user_id = ?`, int64(tenantID))
	} else {
		res, err = c.db.ExecContext(ctx,
			`UPDATE memory_items SET is_active = 0, updated_at = ? WHERE user_id = ? AND is_active = 1`,
			c.now().Unix(), int64(tenantID),
		)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to clear memory: %w", err)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		logger.Info("Memory cleared",
			zap.Int64("user_id", int64(tenantID)),
			zap.Int64("items", n),
			zap.Bool("hard", hard),
		)
	}
	return n, nil
}

// GetProfileSummary returns the tenant's profile summary, or ErrNotFound if
// none has been written yet.
func (c *Client) GetProfileSummary(ctx context.Context, tenantID tenant.ID) (string, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return "", err
	}

	var summary string
	err := c.db.QueryRowContext(ctx,
		`SELECT summary_text FROM user_profile_summary WHERE user_id = ?`,
		int64(tenantID),
	).Scan(&summary)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get profile summary: %w", err)
	}

	return summary, nil
}

// UpdateProfileSummary writes the tenant's profile summary (upsert).
func (c *Client) UpdateProfileSummary(ctx context.Context, tenantID tenant.ID, summary string) error {
	if err := tenant.Validate(tenantID); err != nil {
		return err
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO user_profile_summary (user_id, summary_text, last_updated)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET summary_text = excluded.summary_text, last_updated = excluded.last_updated`,
		int64(tenantID), summary, c.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to update profile summary: %w", err)
	}

	return nil
}

// IsMemoryEnabled reports whether the tenant has the memory feature on.
// Tenants without a preference row default to enabled.
func (c *Client) IsMemoryEnabled(ctx context.Context, tenantID tenant.ID) (bool, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return false, err
	}

	var enabled int
	err := c.db.QueryRowContext(ctx,
		`SELECT memory_enabled FROM user_preferences WHERE user_id = ?`,
		int64(tenantID),
	).Scan(&enabled)
	if err == sql.ErrNoRows {
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read memory preference: %w", err)
	}

	return enabled == 1, nil
}

// SetMemoryEnabled turns the memory feature on or off for the tenant.
func (c *Client) SetMemoryEnabled(ctx context.Context, tenantID tenant.ID, enabled bool) error {
	if err := tenant.Validate(tenantID); err != nil {
		return err
	}

	flag := 0
	if enabled {
		flag = 1
	}

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, memory_enabled, last_updated)
		 VALUES (?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET memory_enabled = excluded.memory_enabled, last_updated = excluded.last_updated`,
		int64(tenantID), flag, c.now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to set memory preference: %w", err)
	}

	logger.Info("Memory preference changed",
		zap.Int64("user_id", int64(tenantID)),
		zap.Bool("enabled", enabled),
	)

	return nil
}

// LogMemoryEvent appends one audit event. Content is expected to be already
// masked; raw extracted values never go through here.
func (c *Client) LogMemoryEvent(ctx context.Context, tenantID tenant.ID, eventType, content string) (int64, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return 0, err
	}

	res, err := c.db.ExecContext(ctx,
		`INSERT INTO memory_events (user_id, event_type, content, created_at) VALUES (?, ?, ?, ?)`,
		int64(tenantID), eventType, content, c.now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to log memory event: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read memory event id: %w", err)
	}

	return id, nil
}

func scanMemoryItems(rows *sql.Rows) ([]models.MemoryItem, error) {
	var items []models.MemoryItem
	for rows.Next() {
		var m models.MemoryItem
		var sourceID sql.NullInt64
		var isActive int
		var createdAt, updatedAt int64

		err := rows.Scan(&m.ID, &m.UserID, &m.Category, &m.Key, &m.Value,
			&m.Confidence, &m.Importance, &sourceID, &isActive, &createdAt, &updatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		m.SourceMessageID = nullableInt64(sourceID)
		m.IsActive = isActive == 1
		m.CreatedAt = timeFromUnix(createdAt)
		m.UpdatedAt = timeFromUnix(updatedAt)
		items = append(items, m)
	}

	return items, rows.Err()
}
