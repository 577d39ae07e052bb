package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ridehail/internal/service"
)

const timeLayout = time.RFC3339

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondError sends an error response with the appropriate HTTP status code.
// Unexpected errors are attached to the gin context so the request logger
// and New Relic can report them; their text is not returned to the client.
func respondError(c *gin.Context, err error) {
	status, code := mapError(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		msg = "internal server error"
	}
	c.JSON(status, ErrorResponse{Error: msg, Code: code})
}

// respondBadRequest rejects a malformed request before it reaches a service.
func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "invalid_argument"})
}

// respondJSON sends a JSON response with the given status code.
func respondJSON(c *gin.Context, code int, data any) {
	c.JSON(code, data)
}

// mapError maps service error kinds to an HTTP status and a stable error code.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found"

	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"

	case errors.Is(err, service.ErrInvalidTripState):
		return http.StatusConflict, "invalid_trip_state"
	case errors.Is(err, service.ErrConflictingActiveTrip):
		return http.StatusConflict, "conflicting_active_trip"
	case errors.Is(err, service.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"

	case errors.Is(err, service.ErrResourceUnavailable):
		return http.StatusUnprocessableEntity, "resource_unavailable"

	case errors.Is(err, service.ErrConfigurationMissing):
		return http.StatusServiceUnavailable, "configuration_missing"

	case errors.Is(err, service.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"

	default:
		return http.StatusInternalServerError, "internal"
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}
