package repository

import (
	"errors"
	"time"

	"mailtask-backend/internal/task/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// gormTaskRepository implements TaskRepository using GORM
type gormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository creates a new GORM-based TaskRepository
func NewGormTaskRepository(db *gorm.DB) TaskRepository {
	return &gormTaskRepository{db: db}
}

func (r *gormTaskRepository) Create(task *domain.Task) error {
	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.Status == "" {
		task.Status = domain.TaskStatusOpen
	}
	task.CreatedAt = time.Now()
	task.UpdatedAt = time.Now()
	return r.db.Create(task).Error
}

func (r *gormTaskRepository) FindByID(tenantID, id string) (*domain.Task, error) {
	var task domain.Task
	err := r.db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&task).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &task, nil
}

func (r *gormTaskRepository) FindByUserID(tenantID, userID string, status *domain.TaskStatus, limit, offset int) ([]*domain.Task, int64, error) {
	var tasks []*domain.Task
	var total int64

	query := r.db.Model(&domain.Task{}).Where("tenant_id = ? AND user_id = ?", tenantID, userID)

	if status != nil {
		query = query.Where("status = ?", *status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Due-dated tasks first, nearest deadline on top, then newest.
	err := query.Order("CASE WHEN due_date IS NULL THEN 1 ELSE 0 END, due_date ASC, created_at DESC").
		Limit(limit).Offset(offset).Find(&tasks).Error

	return tasks, total, err
}

func (r *gormTaskRepository) Update(task *domain.Task) error {
	task.UpdatedAt = time.Now()
	return r.db.Save(task).Error
}

func (r *gormTaskRepository) Delete(tenantID, id string) error {
	return r.db.Where("tenant_id = ?", tenantID).Delete(&domain.Task{}, "id = ?", id).Error
}
