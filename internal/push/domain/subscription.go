package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// PushSubscription is one Web Push delivery endpoint for a user.
// Its ID is a hash of the endpoint URL so re-registering the same
// browser subscription is an idempotent upsert.
type PushSubscription struct {
	ID       string `json:"id" gorm:"primaryKey"`
	TenantID string `json:"tenant_id" gorm:"index;not null"`
	UserID   string `json:"user_id" gorm:"index;not null"`

	Endpoint string `json:"-" gorm:"not null"`
	P256dh   string `json:"-" gorm:"not null"`
	Auth     string `json:"-" gorm:"not null"`

	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SubscriptionID derives the stable subscription identity from the
// endpoint URL.
func SubscriptionID(endpoint string) string {
	sum := sha256.Sum256([]byte(endpoint))
	return hex.EncodeToString(sum[:])
}

// FCMToken represents a Firebase Cloud Messaging device token for push notifications
type FCMToken struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	TenantID   string    `json:"tenant_id" gorm:"index"`
	UserID     string    `json:"user_id" gorm:"index;not null"`
	Token      string    `json:"-" gorm:"uniqueIndex;not null"` // Don't expose token in JSON
	DeviceInfo string    `json:"device_info"`                   // Browser/device metadata
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}
