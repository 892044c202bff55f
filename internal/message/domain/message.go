package domain

import (
	"time"

	accountdomain "mailtask-backend/internal/account/domain"
	"mailtask-backend/internal/classify"
)

// Direction tells whether the message entered or left the mailbox.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
	DirectionUnknown  Direction = "unknown"
)

// Message is one ingested mail. Identity is (tenant, provider,
// provider message id); the unique index makes re-ingestion a no-op.
// (task_id, received_at) is the secondary index powering the per-task
// timeline view.
type Message struct {
	ID       string                 `json:"id" gorm:"primaryKey"`
	TenantID string                 `json:"tenant_id" gorm:"uniqueIndex:idx_tenant_provider_msg;not null"`
	Provider accountdomain.Provider `json:"provider" gorm:"uniqueIndex:idx_tenant_provider_msg;not null"`
	// ProviderMessageID is the provider-issued message identifier.
	ProviderMessageID string `json:"provider_message_id" gorm:"uniqueIndex:idx_tenant_provider_msg;not null"`

	AccountID string `json:"account_id" gorm:"index"`

	Sender     string    `json:"sender"`
	Subject    string    `json:"subject"`
	Snippet    string    `json:"snippet"`
	ReceivedAt time.Time `json:"received_at" gorm:"index:idx_task_received,priority:2"`

	Category    classify.Category `json:"category"`
	NeedsAction bool              `json:"needs_action"`
	Direction   Direction         `json:"direction" gorm:"default:unknown"`

	// TaskID is set once when a task is derived from this message.
	TaskID  string `json:"task_id,omitempty" gorm:"index:idx_task_received,priority:1"`
	Summary string `json:"summary,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key identifies a message within a tenant.
type Key struct {
	Provider          accountdomain.Provider
	ProviderMessageID string
}
