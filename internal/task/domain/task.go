package domain

import "time"

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusOpen       TaskStatus = "open"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusDone       TaskStatus = "done"
	TaskStatusArchived   TaskStatus = "archived"
)

// Task is a work item derived from an ingested message or created
// manually. At most one task is derived per originating message,
// enforced by the message's task link.
type Task struct {
	ID       string `json:"id" gorm:"primaryKey"`
	TenantID string `json:"tenant_id" gorm:"index;not null"`
	UserID   string `json:"user_id" gorm:"index;not null"`

	Title      string     `json:"title" gorm:"not null"`
	Summary    string     `json:"summary,omitempty"`
	NextAction string     `json:"next_action,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	Status     TaskStatus `json:"status" gorm:"default:open"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
