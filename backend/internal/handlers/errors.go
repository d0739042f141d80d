package handlers

import (
	"errors"
	"net/http"

	"task-tracker/backend/internal/repositories"
	"task-tracker/backend/internal/services"
	"task-tracker/backend/internal/validation"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const internalErrorMessage = "failed to process task request"

// statusFor maps the error taxonomy onto HTTP status codes. Anything
// unrecognized is a store failure.
func statusFor(err error) int {
	var verr *validation.Error
	switch {
	case errors.As(err, &verr),
		errors.Is(err, repositories.ErrNoFieldsProvided),
		errors.Is(err, repositories.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrTaskNotFound),
		errors.Is(err, repositories.ErrDueDateNotFound):
		return http.StatusNotFound
	case errors.Is(err, repositories.ErrDueDateConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func handleTaskError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("❌ request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": internalErrorMessage})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// taskID validates the :id path parameter and writes the 400 itself.
func taskID(c *gin.Context, logger *zap.Logger) (int64, bool) {
	id, err := validation.ValidateTaskID(c.Param("id"))
	if err != nil {
		handleTaskError(c, logger, err)
		return 0, false
	}
	return id, true
}

// payload reads and decodes the JSON object body and writes the 400 itself.
func payload(c *gin.Context, logger *zap.Logger) (validation.Payload, bool) {
	body, err := c.GetRawData()
	if err != nil {
		handleTaskError(c, logger, err)
		return nil, false
	}
	p, err := validation.DecodePayload(c.ContentType(), body)
	if err != nil {
		handleTaskError(c, logger, err)
		return nil, false
	}
	return p, true
}
