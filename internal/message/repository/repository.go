package repository

import (
	"time"

	"mailtask-backend/internal/message/domain"
)

// MessageRepository defines the interface for message persistence.
type MessageRepository interface {
	// CreateIfAbsent inserts the message unless its (tenant, provider,
	// provider message id) identity already exists. Returns created=false
	// for the duplicate; the caller must not derive a task or notify again.
	CreateIfAbsent(message *domain.Message) (created bool, err error)

	// LinkToTask records the derived task reference on the message and
	// populates the (task_id, received_at) timeline index.
	LinkToTask(tenantID string, key domain.Key, taskID, summary string, direction domain.Direction, receivedAt time.Time) error

	// FindByKey returns the message or (nil, nil) when absent.
	FindByKey(tenantID string, key domain.Key) (*domain.Message, error)

	// ListByTask returns all messages linked to a task in receipt order.
	ListByTask(tenantID, taskID string) ([]*domain.Message, error)
}
