package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local-insights/backend/internal/storage/sqlite"
	"github.com/local-insights/backend/internal/tenant"
)

// Low iteration count keeps the KDF fast in tests.
const testIterations = 1000

func newTestService(t *testing.T) *Service {
	t.Helper()

	db, err := sqlite.NewClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	return NewService(db, "test-secret", time.Hour, testIterations)
}

func TestRegisterAndLogin(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "Alice@Example.com", "correct horse", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email, "email stored lowercased")
	assert.NotEqual(t, "correct horse", user.PasswordHash)

	token, loggedIn, err := svc.Login(ctx, "alice@example.com", "correct horse")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.Equal(t, user.ID, loggedIn.ID)

	tenantID, err := svc.ParseToken(token)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID(user.ID), tenantID)
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "not-an-email", "longenough", "")
	assert.Error(t, err)

	_, err = svc.Register(ctx, "a@b.com", "short", "")
	assert.Error(t, err)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@example.com", "password1", "")
	require.NoError(t, err)

	// Case differences do not evade the check.
	_, err = svc.Register(ctx, "ALICE@example.com", "password2", "")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "alice@example.com", "password1", "")
	require.NoError(t, err)

	_, _, wrongPassword := svc.Login(ctx, "alice@example.com", "password2")
	_, _, unknownEmail := svc.Login(ctx, "nobody@example.com", "password1")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
}

func TestHashPasswordDeterministicGivenSalt(t *testing.T) {
	svc := newTestService(t)

	hash1, salt, err := svc.hashPassword("secret-password", "")
	require.NoError(t, err)
	require.Len(t, salt, 64, "32 random bytes hex-encoded")

	hash2, salt2, err := svc.hashPassword("secret-password", salt)
	require.NoError(t, err)
	assert.Equal(t, salt, salt2)
	assert.Equal(t, hash1, hash2)

	hash3, _, err := svc.hashPassword("other-password", salt)
	require.NoError(t, err)
	assert.NotEqual(t, hash1, hash3)

	// A fresh salt changes the hash for the same password.
	hash4, salt4, err := svc.hashPassword("secret-password", "")
	require.NoError(t, err)
	assert.NotEqual(t, salt, salt4)
	assert.NotEqual(t, hash1, hash4)
}

func TestParseTokenRejectsGarbage(t *testing.T) {
	svc := newTestService(t)

	for _, tok := range []string{"", "not.a.token", "aaaa.bbbb.cccc"} {
		_, err := svc.ParseToken(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	svc := newTestService(t)
	token, err := svc.issueToken(42)
	require.NoError(t, err)

	other := NewService(nil, "different-secret", time.Hour, testIterations)
	_, err = other.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseTokenRejectsExpired(t *testing.T) {
	db, err := sqlite.NewClient(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.InitSchema())

	svc := NewService(db, "test-secret", -time.Minute, testIterations)
	token, err := svc.issueToken(42)
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
