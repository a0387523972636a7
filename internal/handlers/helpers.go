package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"dock-chat-service/internal/apperrors"
	"dock-chat-service/internal/chat"
	"dock-chat-service/internal/middleware"
)

const requestIDContextKey = "request_id"

func requestIDFromContext(c *gin.Context) string {
	if val, ok := c.Get(requestIDContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id
		}
	}

	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Set(requestIDContextKey, requestID)
	return requestID
}

func callerFromContext(c *gin.Context) chat.Caller {
	return chat.Caller{
		UserID: c.GetInt(middleware.ContextUserID),
		TeamID: c.GetInt(middleware.ContextTeamID),
	}
}

func userIDFromContext(c *gin.Context) *int {
	if userID := c.GetInt(middleware.ContextUserID); userID != 0 {
		return &userID
	}
	return nil
}

// respondError maps application error codes onto HTTP statuses. Conflicts
// never reach this point: the private-pair race resolves to the existing
// conversation inside the store.
func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInvalidArgument:
		status = http.StatusBadRequest
	case apperrors.CodeNotFound:
		status = http.StatusNotFound
	case apperrors.CodePermissionDenied:
		status = http.StatusForbidden
	case apperrors.CodeUnauthenticated:
		status = http.StatusUnauthorized
	case apperrors.CodeUnavailable:
		status = http.StatusServiceUnavailable
	}

	var appErr *apperrors.AppError
	message := "internal error"
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	c.JSON(status, gin.H{"error": message})
}
