package handlers

import (
	"net/http"

	"task-tracker/backend/internal/services"
	"task-tracker/backend/internal/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DueByHandler struct {
	dueByService services.DueByService
	logger       *zap.Logger
}

func NewDueByHandler(dueByService services.DueByService, logger *zap.Logger) *DueByHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DueByHandler{dueByService: dueByService, logger: logger}
}

// GET /tasks/:id/due-by
func (h *DueByHandler) GetDueDates(c *gin.Context) {
	id, ok := taskID(c, h.logger)
	if !ok {
		return
	}
	rows, err := h.dueByService.ListDueDates(c.Request.Context(), id)
	if err != nil {
		handleTaskError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rows)
}

// POST /tasks/:id/due-by
func (h *DueByHandler) CreateDueDate(c *gin.Context) {
	id, dueDate, ok := h.dueDateRequest(c)
	if !ok {
		return
	}
	res, err := h.dueByService.CreateDueDate(c.Request.Context(), id, dueDate)
	if err != nil {
		handleTaskError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": res.Message})
}

// PUT /tasks/:id/due-by
func (h *DueByHandler) UpdateDueDate(c *gin.Context) {
	id, dueDate, ok := h.dueDateRequest(c)
	if !ok {
		return
	}
	res, err := h.dueByService.UpdateDueDate(c.Request.Context(), id, dueDate)
	if err != nil {
		handleTaskError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": res.Message})
}

func (h *DueByHandler) dueDateRequest(c *gin.Context) (int64, string, bool) {
	id, ok := taskID(c, h.logger)
	if !ok {
		return 0, "", false
	}
	// the task must exist before its body is looked at
	if err := h.dueByService.RequireTask(c.Request.Context(), id); err != nil {
		handleTaskError(c, h.logger, err)
		return 0, "", false
	}
	body, ok := payload(c, h.logger)
	if !ok {
		return 0, "", false
	}
	dueDate, err := validation.ValidateDueDate(body)
	if err != nil {
		handleTaskError(c, h.logger, err)
		return 0, "", false
	}
	return id, dueDate, true
}
