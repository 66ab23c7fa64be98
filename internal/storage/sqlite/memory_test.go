package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local-insights/backend/internal/storage/models"
	"github.com/local-insights/backend/internal/tenant"
)

func TestUpsertMemoryUpdatesExistingKey(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	alice := newTestUser(t, c, "alice@example.com")

	id1, err := c.UpsertMemory(ctx, alice, models.NewMemoryItem{
		Category:   models.MemoryCategoryPreferences,
		Key:        "study_time",
		Value:      "mornings",
		Confidence: 0.8,
		Importance: 0.6,
	})
	require.NoError(t, err)

	id2, err := c.UpsertMemory(ctx, alice, models.NewMemoryItem{
		Category:   models.MemoryCategoryPreferences,
		Key:        "study_time",
		Value:      "evenings",
		Confidence: 0.9,
		Importance: 0.7,
	})
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	item, err := c.GetMemory(ctx, alice, models.MemoryCategoryPreferences, "study_time")
	require.NoError(t, err)
	assert.Equal(t, "evenings", item.Value)
	assert.Equal(t, 0.9, item.Confidence)

	items, err := c.ListMemory(ctx, alice, "", true)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestUpsertMemoryReactivatesSoftDeleted(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	alice := newTestUser(t, c, "alice@example.com")

	_, err := c.UpsertMemory(ctx, alice, models.NewMemoryItem{
		Category: models.MemoryCategoryGoals,
		Key:      "exam",
		Value:    "pass biology final",
	})
	require.NoError(t, err)

	deleted, err := c.DeleteMemory(ctx, alice, models.MemoryCategoryGoals, "exam", false)
	require.NoError(t, err)
	assert.True(t, deleted)

	items, err := c.ListMemory(ctx, alice, "", true)
	require.NoError(t, err)
	assert.Empty(t, items)

	_, err = c.UpsertMemory(ctx, alice, models.NewMemoryItem{
		Category: models.MemoryCategoryGoals,
		Key:      "exam",
		Value:    "pass chemistry final",
	})
	require.NoError(t, err)

	item, err := c.GetMemory(ctx, alice, models.MemoryCategoryGoals, "exam")
	require.NoError(t, err)
	assert.True(t, item.IsActive)
	assert.Equal(t, "pass chemistry final", item.Value)
}

func TestUpsertMemoryDefaultsAndValidation(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	alice := newTestUser(t, c, "alice@example.com")

	_, err := c.UpsertMemory(ctx, alice, models.NewMemoryItem{Key: "", Value: "x"})
	assert.Error(t, err)

	_, err = c.UpsertMemory(ctx, alice, models.NewMemoryItem{Key: "style", Value: "visual learner"})
	require.NoError(t, err)

	item, err := c.GetMemory(ctx, alice, models.MemoryCategoryGeneral, "style")
	require.NoError(t, err)
	assert.Equal(t, models.MemoryCategoryGeneral, item.Category)
}

func TestMemoryTenantIsolation(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	alice := newTestUser(t, c, "alice@example.com")
	bob := newTestUser(t, c, "bob@example.com")

	_, err := c.UpsertMemory(ctx, alice, models.NewMemoryItem{
		Category: models.MemoryCategoryProfile,
		Key:      "field",
		Value:    "medicine",
	})
	require.NoError(t, err)

	_, err = c.GetMemory(ctx, bob, models.MemoryCategoryProfile, "field")
	assert.ErrorIs(t, err, ErrNotFound)

	deleted, err := c.DeleteMemory(ctx, bob, models.MemoryCategoryProfile, "field", false)
	require.NoError(t, err)
	assert.False(t, deleted)

	items, err := c.ListMemory(ctx, bob, "", true)
	require.NoError(t, err)
	assert.Empty(t, items)

	item, err := c.GetMemory(ctx, alice, models.MemoryCategoryProfile, "field")
	require.NoError(t, err)
	assert.Equal(t, "medicine", item.Value)
}

func TestListMemoryOrdersByImportance(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	alice := newTestUser(t, c, "alice@example.com")

	_, err := c.UpsertMemory(ctx, alice, models.NewMemoryItem{
		Category: models.MemoryCategoryGeneral, Key: "low", Value: "v", Importance: 0.2,
	})
	require.NoError(t, err)
	_, err = c.UpsertMemory(ctx, alice, models.NewMemoryItem{
		Category: models.MemoryCategoryGeneral, Key: "high", Value: "v", Importance: 0.9,
	})
	require.NoError(t, err)
	_, err = c.UpsertMemory(ctx, alice, models.NewMemoryItem{
		Category: models.MemoryCategoryGoals, Key: "mid", Value: "v", Importance: 0.5,
	})
	require.NoError(t, err)

	items, err := c.ListMemory(ctx, alice, "", true)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "high", items[0].Key)
	assert.Equal(t, "mid", items[1].Key)
	assert.Equal(t, "low", items[2].Key)

	goals, err := c.ListMemory(ctx, alice, models.MemoryCategoryGoals, true)
	require.NoError(t, err)
	require.Len(t, goals, 1)
	assert.Equal(t, "mid", goals[0].Key)
}

func TestDeleteMemoryHardVersusSoft(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	alice := newTestUser(t, c, "alice@example.com")

	_, err := c.UpsertMemory(ctx, alice, models.NewMemoryItem{
		Category: models.MemoryCategoryGeneral, Key: "soft", Value: "v",
	})
	require.NoError(t, err)
	_, err = c.UpsertMemory(ctx, alice, models.NewMemoryItem{
		Category: models.MemoryCategoryGeneral, Key: "hard", Value: "v",
	})
	require.NoError(t, err)

	deleted, err := c.DeleteMemory(ctx, alice, models.MemoryCategoryGeneral, "soft", false)
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = c.DeleteMemory(ctx, alice, models.MemoryCategoryGeneral, "hard", true)
	require.NoError(t, err)
	assert.True(t, deleted)

	all, err := c.ListMemory(ctx, alice, "", false)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "soft", all[0].Key)
	assert.False(t, all[0].IsActive)

	active, err := c.ListMemory(ctx, alice, "", true)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestClearMemory(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	alice := newTestUser(t, c, "alice@example.com")
	bob := newTestUser(t, c, "bob@example.com")

	for _, key := range []string{"a", "b", "c"} {
		_, err := c.UpsertMemory(ctx, alice, models.NewMemoryItem{
			Category: models.MemoryCategoryGeneral, Key: key, Value: "v",
		})
		require.NoError(t, err)
	}
	_, err := c.UpsertMemory(ctx, bob, models.NewMemoryItem{
		Category: models.MemoryCategoryGeneral, Key: "keep", Value: "v",
	})
	require.NoError(t, err)

	n, err := c.ClearMemory(ctx, alice, false)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	items, err := c.ListMemory(ctx, alice, "", true)
	require.NoError(t, err)
	assert.Empty(t, items)

	bobs, err := c.ListMemory(ctx, bob, "", true)
	require.NoError(t, err)
	assert.Len(t, bobs, 1)
}

func TestMemoryEnabledDefaultsTrue(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	alice := newTestUser(t, c, "alice@example.com")

	enabled, err := c.IsMemoryEnabled(ctx, alice)
	require.NoError(t, err)
	assert.True(t, enabled)

	require.NoError(t, c.SetMemoryEnabled(ctx, alice, false))

	enabled, err = c.IsMemoryEnabled(ctx, alice)
	require.NoError(t, err)
	assert.False(t, enabled)

	require.NoError(t, c.SetMemoryEnabled(ctx, alice, true))

	enabled, err = c.IsMemoryEnabled(ctx, alice)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestProfileSummaryUpsert(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	alice := newTestUser(t, c, "alice@example.com")

	_, err := c.GetProfileSummary(ctx, alice)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.UpdateProfileSummary(ctx, alice, "studies medicine"))
	require.NoError(t, c.UpdateProfileSummary(ctx, alice, "studies medicine, prefers mornings"))

	summary, err := c.GetProfileSummary(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "studies medicine, prefers mornings", summary)
}

func TestMemoryTenantGuard(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	for _, id := range []tenant.ID{0, -1} {
		_, err := c.UpsertMemory(ctx, id, models.NewMemoryItem{Key: "k", Value: "v"})
		assert.ErrorIs(t, err, tenant.ErrInvalidTenant)

		_, err = c.ListMemory(ctx, id, "", true)
		assert.ErrorIs(t, err, tenant.ErrInvalidTenant)

		_, err = c.IsMemoryEnabled(ctx, id)
		assert.ErrorIs(t, err, tenant.ErrInvalidTenant)
	}
}

func TestDeleteUserWipesMemory(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	alice := newTestUser(t, c, "alice@example.com")

	_, err := c.UpsertMemory(ctx, alice, models.NewMemoryItem{
		Category: models.MemoryCategoryGeneral, Key: "k", Value: "v",
	})
	require.NoError(t, err)
	require.NoError(t, c.UpdateProfileSummary(ctx, alice, "summary"))
	require.NoError(t, c.SetMemoryEnabled(ctx, alice, false))

	deleted, err := c.DeleteUser(ctx, alice)
	require.NoError(t, err)
	require.True(t, deleted)

	var count int
	row := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM memory_items WHERE user_id = ?", int64(alice))
	require.NoError(t, row.Scan(&count))
	assert.Zero(t, count)

	row = c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_profile_summary WHERE user_id = ?", int64(alice))
	require.NoError(t, row.Scan(&count))
	assert.Zero(t, count)
}
