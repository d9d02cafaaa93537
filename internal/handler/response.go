package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vipul43/kiwis-outreach/internal/service"
)

// ErrorResponse represents the standard error response structure
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and message
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

func writeValidationError(c *gin.Context, message string) {
	writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", message)
}

// handleServiceError maps service errors to HTTP responses. Internal and
// provider error text is logged, never returned.
func handleServiceError(c *gin.Context, err error) {
	var (
		notFound *service.NotFoundError
		conflict *service.ConflictError
		authErr  *service.AuthError
	)

	switch {
	case errors.As(err, &notFound):
		writeError(c, http.StatusNotFound, "RESOURCE_NOT_FOUND", notFound.Error())
	case errors.As(err, &conflict):
		writeError(c, http.StatusConflict, "CONFLICT", conflict.Message)
	case errors.As(err, &authErr):
		log.Printf("Mailbox authorization error: %v", err)
		writeError(c, http.StatusPreconditionFailed, "MAILBOX_AUTH_REQUIRED", "Mailbox authorization is missing or expired; reconnect the mailbox")
	default:
		log.Printf("ERROR: Unhandled service error: %v", err)
		writeError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "An internal error occurred")
	}
}
