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

func (c *Client) CreateUser(ctx context.Context, email, passwordHash, salt, name string) (int64, error) {
	query := `INSERT INTO users (email, password_hash, salt, name, is_active, created_at) VALUES (?, ?, ?, ?, 1, ?)`

	res, err := c.db.ExecContext(ctx, query, email, passwordHash, salt, name, c.now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read user id: %w", err)
	}

	logger.Info("User created", zap.Int64("user_id", id))
	return id, nil
}

func (c *Client) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT id, email, password_hash, salt, name, is_active, created_at, last_login_at FROM users WHERE email = ?`
	return c.scanUser(c.db.QueryRowContext(ctx, query, email))
}

func (c *Client) GetUserByID(ctx context.Context, tenantID tenant.ID) (*models.User, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return nil, err
	}

	query := `SELECT id, email, password_hash, salt, name, is_active, created_at, last_login_at FROM users WHERE id = ?`
	return c.scanUser(c.db.QueryRowContext(ctx, query, int64(tenantID)))
}

func (c *Client) scanUser(row *sql.Row) (*models.User, error) {
	var u models.User
	var createdAt int64
	var lastLogin sql.NullInt64
	var isActive int

	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Salt, &u.Name, &isActive, &createdAt, &lastLogin)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u.IsActive = isActive != 0
	u.CreatedAt = timeFromUnix(createdAt)
	u.LastLoginAt = nullableTime(lastLogin)

	return &u, nil
}

func (c *Client) UpdateLastLogin(ctx context.Context, tenantID tenant.ID) error {
	if err := tenant.Validate(tenantID); err != nil {
		return err
	}

	query := `UPDATE users SET last_login_at = ? WHERE id = ?`
	_, err := c.db.ExecContext(ctx, query, c.now().Unix(), int64(tenantID))
	if err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

// DeleteUser removes the tenant and, via cascade, every entity it owns.
func (c *Client) DeleteUser(ctx context.Context, tenantID tenant.ID) (bool, error) {
	if err := tenant.Validate(tenantID); err != nil {
		return false, err
	}

	res, err := c.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, int64(tenantID))
	if err != nil {
		return false, fmt.Errorf("failed to delete user: %w", err)
	}

	n, _ := res.RowsAffected()
	if n > 0 {
		logger.Info("User deleted", zap.Int64("user_id", int64(tenantID)))
	}
	return n > 0, nil
}
