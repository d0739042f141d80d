package handlers

import (
	"net/http"

	"task-tracker/backend/internal/services"
	"task-tracker/backend/internal/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TaskHandler struct {
	taskService services.TaskService
	logger      *zap.Logger
}

func NewTaskHandler(taskService services.TaskService, logger *zap.Logger) *TaskHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TaskHandler{taskService: taskService, logger: logger}
}

// GET /tasks
func (h *TaskHandler) GetTasks(c *gin.Context) {
	tasks, err := h.taskService.ListTasks(c.Request.Context())
	if err != nil {
		handleTaskError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

// GET /tasks/:id
func (h *TaskHandler) GetTaskByID(c *gin.Context) {
	id, ok := taskID(c, h.logger)
	if !ok {
		return
	}
	task, err := h.taskService.GetTask(c.Request.Context(), id)
	if err != nil {
		handleTaskError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

// POST /tasks
func (h *TaskHandler) CreateTask(c *gin.Context) {
	body, ok := payload(c, h.logger)
	if !ok {
		return
	}
	patch, err := validation.ValidateTaskPayload(body, true)
	if err != nil {
		handleTaskError(c, h.logger, err)
		return
	}

	id, err := h.taskService.CreateTask(c.Request.Context(), patch)
	if err != nil {
		// The task row may have been stored before its due date failed.
		if id != 0 {
			h.logger.Warn("⚠️  task stored without its due date", zap.Int64("task_id", id), zap.Error(err))
			c.JSON(statusFor(err), gin.H{"error": err.Error(), "new_task_id": id})
			return
		}
		handleTaskError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"new_task_id": id})
}

// PUT /tasks/:id
func (h *TaskHandler) UpdateTask(c *gin.Context) {
	id, ok := taskID(c, h.logger)
	if !ok {
		return
	}
	if _, err := h.taskService.GetTask(c.Request.Context(), id); err != nil {
		handleTaskError(c, h.logger, err)
		return
	}
	body, ok := payload(c, h.logger)
	if !ok {
		return
	}
	patch, err := validation.ValidateTaskPayload(body, false)
	if err != nil {
		handleTaskError(c, h.logger, err)
		return
	}

	if err := h.taskService.UpdateTask(c.Request.Context(), id, patch); err != nil {
		handleTaskError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DELETE /tasks/:id
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	id, ok := taskID(c, h.logger)
	if !ok {
		return
	}
	if err := h.taskService.DeleteTask(c.Request.Context(), id); err != nil {
		handleTaskError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
