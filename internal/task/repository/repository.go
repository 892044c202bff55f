package repository

import (
	"mailtask-backend/internal/task/domain"
)

// TaskRepository defines the interface for task data access
type TaskRepository interface {
	// Create creates a new task
	Create(task *domain.Task) error

	// FindByID finds a task by its ID within a tenant
	FindByID(tenantID, id string) (*domain.Task, error)

	// FindByUserID finds all tasks for a user with optional status filter
	FindByUserID(tenantID, userID string, status *domain.TaskStatus, limit, offset int) ([]*domain.Task, int64, error)

	// Update updates an existing task
	Update(task *domain.Task) error

	// Delete deletes a task by ID
	Delete(tenantID, id string) error
}
