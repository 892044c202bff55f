package delivery

import (
	"errors"
	"net/http"
	"strconv"

	"mailtask-backend/internal/task/usecase"

	"github.com/gin-gonic/gin"
)

// TaskHandler handles task-related HTTP requests
type TaskHandler struct {
	taskUsecase usecase.TaskUsecase
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(taskUsecase usecase.TaskUsecase) *TaskHandler {
	return &TaskHandler{taskUsecase: taskUsecase}
}

// GetTasks returns all tasks for the authenticated user
// GET /api/tasks?status=open&limit=50&offset=0
func (h *TaskHandler) GetTasks(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	userID := c.GetString("userID")

	status := c.Query("status")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	var statusPtr *string
	if status != "" {
		statusPtr = &status
	}

	tasks, total, err := h.taskUsecase.GetUserTasks(tenantID, userID, statusPtr, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"tasks": tasks,
		"total": total,
	})
}

// GetTaskByID returns a specific task
// GET /api/tasks/:id
func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	userID := c.GetString("userID")
	taskID := c.Param("id")

	task, err := h.taskUsecase.GetTaskByID(tenantID, userID, taskID)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// GetTaskTimeline returns the messages linked to a task in receipt order
// GET /api/tasks/:id/timeline
func (h *TaskHandler) GetTaskTimeline(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	userID := c.GetString("userID")
	taskID := c.Param("id")

	messages, err := h.taskUsecase.GetTaskTimeline(tenantID, userID, taskID)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"count":    len(messages),
	})
}

// UpdateTask updates an existing task
// PUT /api/tasks/:id
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	userID := c.GetString("userID")
	taskID := c.Param("id")

	var updates usecase.TaskUpdateRequest
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskUsecase.UpdateTask(tenantID, userID, taskID, updates)
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// UpdateTaskStatus is a convenience endpoint to just update status
// PATCH /api/tasks/:id/status
func (h *TaskHandler) UpdateTaskStatus(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	userID := c.GetString("userID")
	taskID := c.Param("id")

	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	task, err := h.taskUsecase.UpdateTask(tenantID, userID, taskID, usecase.TaskUpdateRequest{
		Status: &req.Status,
	})
	if err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, task)
}

// DeleteTask deletes a task
// DELETE /api/tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	tenantID := c.GetString("tenantID")
	userID := c.GetString("userID")
	taskID := c.Param("id")

	if err := h.taskUsecase.DeleteTask(tenantID, userID, taskID); err != nil {
		h.respondTaskError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Task deleted successfully"})
}

func (h *TaskHandler) respondTaskError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, usecase.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Task not found"})
	case errors.Is(err, usecase.ErrUnauthorized):
		c.JSON(http.StatusForbidden, gin.H{"error": "Unauthorized"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
