package repository

import (
	"mailtask-backend/internal/push/domain"
)

// SubscriptionRepository defines the interface for Web Push subscription storage.
type SubscriptionRepository interface {
	// Save upserts a subscription keyed by its endpoint hash.
	Save(subscription *domain.PushSubscription) error

	// GetByUserID returns every subscription registered for a user.
	// Always read fresh, never cached, so dispatch sees current state.
	GetByUserID(tenantID, userID string) ([]domain.PushSubscription, error)

	// Delete removes a subscription by its endpoint hash.
	Delete(id string) error
}

// FCMTokenRepository defines the interface for FCM token operations
type FCMTokenRepository interface {
	SaveToken(tenantID, userID, token, deviceInfo string) error
	GetTokensByUserID(tenantID, userID string) ([]domain.FCMToken, error)
	DeleteToken(token string) error
	DeleteTokensByUserID(tenantID, userID string) error
}
