package repository

import (
	"errors"
	"time"

	"mailtask-backend/internal/message/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// messageRepository implements MessageRepository using GORM
type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new instance of messageRepository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

// CreateIfAbsent relies on the unique index instead of read-then-write:
// INSERT ... ON CONFLICT DO NOTHING, so concurrent calls with the same
// identity produce exactly one row and the loser sees created=false.
func (r *messageRepository) CreateIfAbsent(message *domain.Message) (bool, error) {
	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.Direction == "" {
		message.Direction = domain.DirectionUnknown
	}
	message.CreatedAt = time.Now()
	message.UpdatedAt = time.Now()

	result := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "tenant_id"},
			{Name: "provider"},
			{Name: "provider_message_id"},
		},
		DoNothing: true,
	}).Create(message)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *messageRepository) LinkToTask(tenantID string, key domain.Key, taskID, summary string, direction domain.Direction, receivedAt time.Time) error {
	return r.db.Model(&domain.Message{}).
		Where("tenant_id = ? AND provider = ? AND provider_message_id = ?", tenantID, key.Provider, key.ProviderMessageID).
		Updates(map[string]interface{}{
			"task_id":     taskID,
			"summary":     summary,
			"direction":   direction,
			"received_at": receivedAt,
			"updated_at":  time.Now(),
		}).Error
}

func (r *messageRepository) FindByKey(tenantID string, key domain.Key) (*domain.Message, error) {
	var message domain.Message
	err := r.db.Where("tenant_id = ? AND provider = ? AND provider_message_id = ?",
		tenantID, key.Provider, key.ProviderMessageID).First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &message, nil
}

func (r *messageRepository) ListByTask(tenantID, taskID string) ([]*domain.Message, error) {
	var messages []*domain.Message
	err := r.db.Where("tenant_id = ? AND task_id = ?", tenantID, taskID).
		Order("received_at ASC").Find(&messages).Error
	return messages, err
}
