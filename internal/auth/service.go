// Package auth handles user registration, login, and the JWT tokens
// that carry the tenant identity through the API layer.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/pbkdf2"

	"github.com/local-insights/backend/internal/storage/models"
	"github.com/local-insights/backend/internal/storage/sqlite"
	"github.com/local-insights/backend/internal/tenant"
	"github.com/local-insights/backend/pkg/logger"
)

var (
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

const (
	saltBytes = 32
	keyBytes  = 32
)

type Service struct {
	db         *sqlite.Client
	jwtSecret  []byte
	tokenTTL   time.Duration
	iterations int
}

func NewService(db *sqlite.Client, jwtSecret string, tokenTTL time.Duration, iterations int) *Service {
	if iterations <= 0 {
		iterations = 100_000
	}
	return &Service{
		db:         db,
		jwtSecret:  []byte(jwtSecret),
		tokenTTL:   tokenTTL,
		iterations: iterations,
	}
}

// Register creates a user account. Emails are stored lowercased; a name
// is optional and falls back to the email's local part at login display
// time.
func (s *Service) Register(ctx context.Context, email, password, name string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if email == "" || !strings.Contains(email, "@") {
		return nil, fmt.Errorf("invalid email address")
	}
	if len(password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters")
	}

	if _, err := s.db.GetUserByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if err != sqlite.ErrNotFound {
		return nil, err
	}

	hash, salt, err := s.hashPassword(password, "")
	if err != nil {
		return nil, err
	}

	userID, err := s.db.CreateUser(ctx, email, hash, salt, name)
	if err != nil {
		return nil, err
	}

	logger.Info("User registered",
		zap.Int64("user_id", userID),
		zap.String("email", email))

	return s.db.GetUserByID(ctx, tenant.ID(userID))
}

// Login verifies credentials and issues a signed token. Unknown email
// and wrong password return the same error.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.db.GetUserByEmail(ctx, email)
	if err == sqlite.ErrNotFound {
		return "", nil, ErrInvalidCredentials
	}
	if err != nil {
		return "", nil, err
	}

	hash, _, err := s.hashPassword(password, user.Salt)
	if err != nil {
		return "", nil, err
	}
	if subtle.ConstantTimeCompare([]byte(hash), []byte(user.PasswordHash)) != 1 {
		return "", nil, ErrInvalidCredentials
	}

	if err := s.db.UpdateLastLogin(ctx, tenant.ID(user.ID)); err != nil {
		logger.Warn("Failed to update last login", zap.Error(err))
	}

	token, err := s.issueToken(user.ID)
	if err != nil {
		return "", nil, err
	}

	logger.Info("User logged in", zap.Int64("user_id", user.ID))

	return token, user, nil
}

// hashPassword derives a PBKDF2-SHA256 key. An empty salt generates a
// fresh one; the hex salt string's bytes are the KDF salt.
func (s *Service) hashPassword(password, salt string) (string, string, error) {
	if salt == "" {
		raw := make([]byte, saltBytes)
		if _, err := rand.Read(raw); err != nil {
			return "", "", fmt.Errorf("failed to generate salt: %w", err)
		}
		salt = hex.EncodeToString(raw)
	}

	key := pbkdf2.Key([]byte(password), []byte(salt), s.iterations, keyBytes, sha256.New)
	return hex.EncodeToString(key), salt, nil
}

func (s *Service) issueToken(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   fmt.Sprintf("%d", userID),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// ParseToken validates a token and returns the tenant it identifies.
func (s *Service) ParseToken(tokenString string) (tenant.ID, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return 0, ErrInvalidToken
	}

	var userID int64
	if _, err := fmt.Sscanf(claims.Subject, "%d", &userID); err != nil {
		return 0, ErrInvalidToken
	}

	tenantID := tenant.ID(userID)
	if err := tenant.Validate(tenantID); err != nil {
		return 0, ErrInvalidToken
	}

	return tenantID, nil
}
