package usecase

import (
	"errors"
	"time"

	messagedomain "mailtask-backend/internal/message/domain"
	messagerepo "mailtask-backend/internal/message/repository"
	"mailtask-backend/internal/task/domain"
	"mailtask-backend/internal/task/repository"

	"github.com/google/uuid"
)

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrUnauthorized = errors.New("unauthorized")
)

// taskUsecase implements TaskUsecase interface
type taskUsecase struct {
	taskRepo    repository.TaskRepository
	messageRepo messagerepo.MessageRepository
}

// NewTaskUsecase creates a new instance of taskUsecase
func NewTaskUsecase(taskRepo repository.TaskRepository, messageRepo messagerepo.MessageRepository) TaskUsecase {
	return &taskUsecase{
		taskRepo:    taskRepo,
		messageRepo: messageRepo,
	}
}

func (u *taskUsecase) CreateFromDraft(tenantID, userID string, draft domain.Draft) (*domain.Task, error) {
	task := &domain.Task{
		ID:         uuid.New().String(),
		TenantID:   tenantID,
		UserID:     userID,
		Title:      draft.Title,
		Summary:    draft.Summary,
		NextAction: draft.NextAction,
		Status:     domain.TaskStatusOpen,
	}

	if err := u.taskRepo.Create(task); err != nil {
		return nil, err
	}

	return task, nil
}

func (u *taskUsecase) GetTaskByID(tenantID, userID, taskID string) (*domain.Task, error) {
	task, err := u.taskRepo.FindByID(tenantID, taskID)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, ErrTaskNotFound
	}
	if task.UserID != userID {
		return nil, ErrUnauthorized
	}
	return task, nil
}

func (u *taskUsecase) GetUserTasks(tenantID, userID string, status *string, limit, offset int) ([]*domain.Task, int64, error) {
	var statusFilter *domain.TaskStatus
	if status != nil && *status != "" {
		s := domain.TaskStatus(*status)
		statusFilter = &s
	}
	return u.taskRepo.FindByUserID(tenantID, userID, statusFilter, limit, offset)
}

func (u *taskUsecase) GetTaskTimeline(tenantID, userID, taskID string) ([]*messagedomain.Message, error) {
	if _, err := u.GetTaskByID(tenantID, userID, taskID); err != nil {
		return nil, err
	}
	return u.messageRepo.ListByTask(tenantID, taskID)
}

func (u *taskUsecase) UpdateTask(tenantID, userID, taskID string, updates TaskUpdateRequest) (*domain.Task, error) {
	task, err := u.GetTaskByID(tenantID, userID, taskID)
	if err != nil {
		return nil, err
	}

	if updates.Title != nil {
		task.Title = *updates.Title
	}
	if updates.Summary != nil {
		task.Summary = *updates.Summary
	}
	if updates.Status != nil {
		task.Status = domain.TaskStatus(*updates.Status)
	}
	if updates.DueDate != nil {
		if *updates.DueDate == "" {
			task.DueDate = nil
		} else if t, err := time.Parse(time.RFC3339, *updates.DueDate); err == nil {
			task.DueDate = &t
		}
	}

	if err := u.taskRepo.Update(task); err != nil {
		return nil, err
	}

	return task, nil
}

func (u *taskUsecase) DeleteTask(tenantID, userID, taskID string) error {
	task, err := u.GetTaskByID(tenantID, userID, taskID)
	if err != nil {
		return err
	}
	return u.taskRepo.Delete(tenantID, task.ID)
}
