package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/designos/designos-backend/internal/apierr"
)

type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}

func RespondCreated(c *gin.Context, payload any) {
	c.JSON(http.StatusCreated, payload)
}

// RespondError maps service errors to the wire envelope. Typed errors carry
// their own status and code; anything else is a 500.
func RespondError(c *gin.Context, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.Status, ErrorEnvelope{
			Error: APIError{
				Message: apiErr.Error(),
				Code:    apiErr.Code,
			},
		})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorEnvelope{
		Error: APIError{
			Message: "internal error",
			Code:    "INTERNAL",
		},
	})
}

// RespondBadRequest is the shortcut for malformed request input.
func RespondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorEnvelope{
		Error: APIError{
			Message: message,
			Code:    apierr.CodeBadRequest,
		},
	})
}
