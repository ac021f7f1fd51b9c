package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BradenHooton/reportauth/internal/models"
)

func TestActivityLogRepository_CreateAndQuery(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	logs := NewActivityLogRepository(db)
	user := createTestUser(t, db, "alice")

	_, err := logs.Create(ctx, models.NewActivityLogEntry(models.ActivityEvent{
		UserID:       &user.ID,
		Username:     "alice",
		ActivityType: models.ActivityLoginSuccess,
		Origin:       models.OriginMetadata{IPAddress: "10.0.0.1", UserAgent: "curl"},
		Success:      true,
	}))
	require.NoError(t, err)

	failed, err := logs.Create(ctx, models.NewActivityLogEntry(models.ActivityEvent{
		UserID:       &user.ID,
		Username:     "alice",
		ActivityType: models.ActivityLoginFailed,
		ErrorMessage: string(models.ReasonBadCredential),
	}))
	require.NoError(t, err)
	assert.Nil(t, failed.IPAddress)
	require.NotNil(t, failed.ErrorMessage)

	trail, err := logs.GetByUserID(ctx, user.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, models.ActivityLoginFailed, trail[0].ActivityType, "newest first")

	failures, err := logs.GetFailed(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, failures, 1)
	assert.Equal(t, failed.ID, failures[0].ID)

	byType, err := logs.GetByActivityType(ctx, models.ActivityLoginSuccess, 10, 0)
	require.NoError(t, err)
	assert.Len(t, byType, 1)

	count, err := logs.CountByUserID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestActivityLogRepository_UnknownUserKeepsUsername(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	logs := NewActivityLogRepository(db)

	ghost := int64(777)
	entry, err := logs.Create(ctx, models.NewActivityLogEntry(models.ActivityEvent{
		UserID:       &ghost,
		Username:     "ghost",
		ActivityType: models.ActivityLoginFailed,
	}))
	require.NoError(t, err)
	assert.Nil(t, entry.UserID)

	byName, err := logs.GetByUsername(ctx, "ghost", 10, 0)
	require.NoError(t, err)
	assert.Len(t, byName, 1)
}

func TestActivityLogRepository_UserRemovalNullsReference(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	logs := NewActivityLogRepository(db)
	user := createTestUser(t, db, "temp")

	_, err := logs.Create(ctx, models.NewActivityLogEntry(models.ActivityEvent{
		UserID: &user.ID, Username: "temp", ActivityType: models.ActivityUserCreated, Success: true,
	}))
	require.NoError(t, err)

	_, err = db.Pool.Exec(ctx, `DELETE FROM users WHERE user_id = $1`, user.ID)
	require.NoError(t, err)

	entries, err := logs.GetByUsername(ctx, "temp", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Nil(t, entries[0].UserID)
}
