package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	ierr "github.com/smallbiznis/console/internal/errors"
)

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ierr.FieldError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return ierr.NewFieldError("request", "invalid_request", "Invalid request")
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    ierr.ErrCodeInternal,
			Message: "internal server error",
		}
	}

	status := ierr.HTTPStatusFromErr(err)
	payload := errorPayload{
		Type:    ierr.Code(err),
		Message: ierr.DisplayMessage(err),
	}
	if status == http.StatusInternalServerError {
		payload.Message = "internal server error"
	}
	if fe := ierr.FieldErrorsFrom(err); fe != nil {
		payload.Errors = fe.Errors
	}
	return status, payload
}

func classifyErrorForLog(err error) (string, string) {
	if err == nil {
		return "", ""
	}
	status, payload := mapError(err)
	return payload.Type, http.StatusText(status)
}
