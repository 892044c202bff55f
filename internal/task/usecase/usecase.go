package usecase

import (
	"mailtask-backend/internal/task/domain"
	messagedomain "mailtask-backend/internal/message/domain"
)

// TaskUpdateRequest carries optional field updates for a task
type TaskUpdateRequest struct {
	Title   *string `json:"title"`
	Summary *string `json:"summary"`
	Status  *string `json:"status"`
	DueDate *string `json:"due_date"`
}

// TaskUsecase defines the interface for task business logic
type TaskUsecase interface {
	// CreateFromDraft persists a task derived from an ingested message.
	CreateFromDraft(tenantID, userID string, draft domain.Draft) (*domain.Task, error)

	// GetTaskByID returns a task the user owns.
	GetTaskByID(tenantID, userID, taskID string) (*domain.Task, error)

	// GetUserTasks lists tasks with an optional status filter.
	GetUserTasks(tenantID, userID string, status *string, limit, offset int) ([]*domain.Task, int64, error)

	// GetTaskTimeline returns the messages linked to a task in receipt order.
	GetTaskTimeline(tenantID, userID, taskID string) ([]*messagedomain.Message, error)

	// UpdateTask applies a partial update to a task the user owns.
	UpdateTask(tenantID, userID, taskID string, updates TaskUpdateRequest) (*domain.Task, error)

	// DeleteTask removes a task the user owns.
	DeleteTask(tenantID, userID, taskID string) error
}
