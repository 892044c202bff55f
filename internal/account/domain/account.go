package domain

import (
	"strconv"
	"time"

	"mailtask-backend/internal/apperr"
)

// Provider identifies the mailbox backend an account is connected to.
type Provider string

const (
	ProviderGmail Provider = "gmail"
	ProviderIMAP  Provider = "imap"
)

// Status is the account lifecycle state.
type Status string

const (
	StatusActive   Status = "active"
	StatusDisabled Status = "disabled"
	StatusError    Status = "error"
)

// SyncState tracks whether a sync is currently claiming the account.
// Persisted so the claim holds across processes sharing one database.
type SyncState string

const (
	SyncStateIdle    SyncState = "idle"
	SyncStateSyncing SyncState = "syncing"
)

// Account is a connected mailbox. The cursor is the provider's opaque
// sync marker (Gmail history id, IMAP UID); it only moves forward via
// the repository's conditional advance.
type Account struct {
	ID       string   `json:"id" gorm:"primaryKey"`
	TenantID string   `json:"tenant_id" gorm:"index;not null"`
	UserID   string   `json:"user_id" gorm:"index;not null"`
	Provider Provider `json:"provider" gorm:"uniqueIndex:idx_provider_email;not null"`
	Email    string   `json:"email" gorm:"uniqueIndex:idx_provider_email;not null"`

	Cursor         string     `json:"cursor"`
	WatchExpiresAt *time.Time `json:"watch_expires_at,omitempty"`

	Status    Status    `json:"status" gorm:"default:active"`
	SyncState SyncState `json:"-" gorm:"default:idle"`

	// Vault-encrypted OAuth material. Never exposed in JSON.
	EncryptedAccessToken  string `json:"-"`
	EncryptedRefreshToken string `json:"-"`

	// IMAP accounts carry host/port next to the encrypted password.
	IMAPHost string `json:"imap_host,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ParseWatchExpiration normalizes a provider watch expiration, which
// arrives either as an epoch-milliseconds string or as RFC 3339.
func ParseWatchExpiration(raw string) (time.Time, error) {
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC(), nil
	}
	return time.Time{}, apperr.Wrapf(apperr.KindValidation, "unrecognized watch expiration %q", raw)
}
