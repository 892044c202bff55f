package repository

import (
	"testing"

	"mailtask-backend/internal/push/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.PushSubscription{}, &domain.FCMToken{}))
	return db
}

func TestSubscriptionSaveIsIdempotentByEndpoint(t *testing.T) {
	repo := NewSubscriptionRepository(newTestDB(t))

	sub := &domain.PushSubscription{
		TenantID: "tenant-a",
		UserID:   "user-1",
		Endpoint: "https://push.example/send/abc",
		P256dh:   "key-1",
		Auth:     "auth-1",
	}
	require.NoError(t, repo.Save(sub))

	// Re-registering the same endpoint updates keys instead of duplicating.
	again := &domain.PushSubscription{
		TenantID: "tenant-a",
		UserID:   "user-1",
		Endpoint: "https://push.example/send/abc",
		P256dh:   "key-rotated",
		Auth:     "auth-rotated",
	}
	require.NoError(t, repo.Save(again))

	subs, err := repo.GetByUserID("tenant-a", "user-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "key-rotated", subs[0].P256dh)
	assert.Equal(t, domain.SubscriptionID("https://push.example/send/abc"), subs[0].ID)
}

func TestSubscriptionDelete(t *testing.T) {
	repo := NewSubscriptionRepository(newTestDB(t))

	sub := &domain.PushSubscription{
		TenantID: "tenant-a",
		UserID:   "user-1",
		Endpoint: "https://push.example/send/abc",
		P256dh:   "key-1",
		Auth:     "auth-1",
	}
	require.NoError(t, repo.Save(sub))
	require.NoError(t, repo.Delete(sub.ID))

	subs, err := repo.GetByUserID("tenant-a", "user-1")
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestFCMTokenUpsertByToken(t *testing.T) {
	repo := NewFCMTokenRepository(newTestDB(t))

	require.NoError(t, repo.SaveToken("tenant-a", "user-1", "device-token", "chrome"))
	require.NoError(t, repo.SaveToken("tenant-a", "user-1", "device-token", "chrome-updated"))

	tokens, err := repo.GetTokensByUserID("tenant-a", "user-1")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, "chrome-updated", tokens[0].DeviceInfo)
}
