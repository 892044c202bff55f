package usecase

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	messagedomain "mailtask-backend/internal/message/domain"
	"mailtask-backend/internal/task/domain"
)

type fakeTaskRepo struct {
	tasks map[string]*domain.Task
}

func (r *fakeTaskRepo) Create(task *domain.Task) error {
	r.tasks[task.ID] = task
	return nil
}

func (r *fakeTaskRepo) FindByID(tenantID, id string) (*domain.Task, error) {
	task, ok := r.tasks[id]
	if !ok || task.TenantID != tenantID {
		return nil, nil
	}
	return task, nil
}

func (r *fakeTaskRepo) FindByUserID(tenantID, userID string, status *domain.TaskStatus, limit, offset int) ([]*domain.Task, int64, error) {
	var out []*domain.Task
	for _, t := range r.tasks {
		if t.TenantID != tenantID || t.UserID != userID {
			continue
		}
		if status != nil && t.Status != *status {
			continue
		}
		out = append(out, t)
	}
	return out, int64(len(out)), nil
}

func (r *fakeTaskRepo) Update(task *domain.Task) error {
	r.tasks[task.ID] = task
	return nil
}

func (r *fakeTaskRepo) Delete(tenantID, id string) error {
	delete(r.tasks, id)
	return nil
}

type stubMessageRepo struct {
	timeline []*messagedomain.Message
}

func (r *stubMessageRepo) CreateIfAbsent(m *messagedomain.Message) (bool, error) { return true, nil }

func (r *stubMessageRepo) LinkToTask(tenantID string, key messagedomain.Key, taskID, summary string, direction messagedomain.Direction, receivedAt time.Time) error {
	return nil
}

func (r *stubMessageRepo) FindByKey(tenantID string, key messagedomain.Key) (*messagedomain.Message, error) {
	return nil, nil
}

func (r *stubMessageRepo) ListByTask(tenantID, taskID string) ([]*messagedomain.Message, error) {
	return r.timeline, nil
}

func newTaskUsecase() (TaskUsecase, *fakeTaskRepo, *stubMessageRepo) {
	taskRepo := &fakeTaskRepo{tasks: map[string]*domain.Task{}}
	messageRepo := &stubMessageRepo{}
	return NewTaskUsecase(taskRepo, messageRepo), taskRepo, messageRepo
}

func TestCreateFromDraft(t *testing.T) {
	uc, repo, _ := newTaskUsecase()

	draft := domain.DeriveDraft("Invoice #42", "Payment is due by Friday.")
	task, err := uc.CreateFromDraft("tenant-1", "user-1", draft)
	require.NoError(t, err)

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "Invoice #42", task.Title)
	assert.Equal(t, domain.TaskStatusOpen, task.Status)
	assert.NotEmpty(t, task.NextAction)
	assert.Contains(t, repo.tasks, task.ID)
}

func TestGetTaskByIDEnforcesOwnership(t *testing.T) {
	uc, _, _ := newTaskUsecase()

	draft := domain.DeriveDraft("Subject", "Snippet")
	task, err := uc.CreateFromDraft("tenant-1", "user-1", draft)
	require.NoError(t, err)

	_, err = uc.GetTaskByID("tenant-1", "user-2", task.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = uc.GetTaskByID("tenant-2", "user-1", task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)

	got, err := uc.GetTaskByID("tenant-1", "user-1", task.ID)
	require.NoError(t, err)
	assert.Equal(t, task.ID, got.ID)
}

func TestUpdateTaskPartialFields(t *testing.T) {
	uc, _, _ := newTaskUsecase()

	task, err := uc.CreateFromDraft("tenant-1", "user-1", domain.DeriveDraft("Subject", "Snippet"))
	require.NoError(t, err)

	status := string(domain.TaskStatusDone)
	due := "2026-09-15T09:00:00Z"
	updated, err := uc.UpdateTask("tenant-1", "user-1", task.ID, TaskUpdateRequest{
		Status:  &status,
		DueDate: &due,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TaskStatusDone, updated.Status)
	require.NotNil(t, updated.DueDate)
	assert.Equal(t, 2026, updated.DueDate.Year())
	assert.Equal(t, "Subject", updated.Title, "untouched fields keep their value")
}

func TestGetTaskTimeline(t *testing.T) {
	uc, _, messageRepo := newTaskUsecase()

	task, err := uc.CreateFromDraft("tenant-1", "user-1", domain.DeriveDraft("Subject", "Snippet"))
	require.NoError(t, err)

	messageRepo.timeline = []*messagedomain.Message{
		{ID: "m-1", TaskID: task.ID},
		{ID: "m-2", TaskID: task.ID},
	}

	timeline, err := uc.GetTaskTimeline("tenant-1", "user-1", task.ID)
	require.NoError(t, err)
	assert.Len(t, timeline, 2)

	_, err = uc.GetTaskTimeline("tenant-1", "user-2", task.ID)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestDeleteTask(t *testing.T) {
	uc, repo, _ := newTaskUsecase()

	task, err := uc.CreateFromDraft("tenant-1", "user-1", domain.DeriveDraft("Subject", "Snippet"))
	require.NoError(t, err)

	require.NoError(t, uc.DeleteTask("tenant-1", "user-1", task.ID))
	assert.NotContains(t, repo.tasks, task.ID)

	err = uc.DeleteTask("tenant-1", "user-1", task.ID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}
