package repository

import (
	"time"

	"mailtask-backend/internal/push/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// subscriptionRepository implements SubscriptionRepository using GORM
type subscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new instance of subscriptionRepository
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &subscriptionRepository{db: db}
}

// Save is an atomic upsert: INSERT ... ON CONFLICT (id) DO UPDATE,
// keyed by the endpoint hash.
func (r *subscriptionRepository) Save(subscription *domain.PushSubscription) error {
	if subscription.ID == "" {
		subscription.ID = domain.SubscriptionID(subscription.Endpoint)
	}
	subscription.CreatedAt = time.Now()
	subscription.UpdatedAt = time.Now()

	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"tenant_id", "user_id", "p256dh", "auth", "expires_at", "updated_at"}),
	}).Create(subscription).Error
}

func (r *subscriptionRepository) GetByUserID(tenantID, userID string) ([]domain.PushSubscription, error) {
	var subscriptions []domain.PushSubscription
	err := r.db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).Find(&subscriptions).Error
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

func (r *subscriptionRepository) Delete(id string) error {
	return r.db.Where("id = ?", id).Delete(&domain.PushSubscription{}).Error
}

// fcmTokenRepository implements FCMTokenRepository interface
type fcmTokenRepository struct {
	db *gorm.DB
}

// NewFCMTokenRepository creates a new instance of fcmTokenRepository
func NewFCMTokenRepository(db *gorm.DB) FCMTokenRepository {
	return &fcmTokenRepository{db: db}
}

// SaveToken saves or updates an FCM token for a user (atomic upsert)
func (r *fcmTokenRepository) SaveToken(tenantID, userID, token, deviceInfo string) error {
	fcmToken := &domain.FCMToken{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		UserID:     userID,
		Token:      token,
		DeviceInfo: deviceInfo,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}

	// Atomic upsert: INSERT ... ON CONFLICT (token) DO UPDATE
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"tenant_id", "user_id", "device_info", "updated_at"}),
	}).Create(fcmToken).Error
}

// GetTokensByUserID returns all FCM tokens for a user
func (r *fcmTokenRepository) GetTokensByUserID(tenantID, userID string) ([]domain.FCMToken, error) {
	var tokens []domain.FCMToken
	err := r.db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).Find(&tokens).Error
	if err != nil {
		return nil, err
	}
	return tokens, nil
}

// DeleteToken removes a specific FCM token
func (r *fcmTokenRepository) DeleteToken(token string) error {
	return r.db.Where("token = ?", token).Delete(&domain.FCMToken{}).Error
}

// DeleteTokensByUserID removes all FCM tokens for a user
func (r *fcmTokenRepository) DeleteTokensByUserID(tenantID, userID string) error {
	return r.db.Where("tenant_id = ? AND user_id = ?", tenantID, userID).Delete(&domain.FCMToken{}).Error
}
