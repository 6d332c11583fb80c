package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/rov-control/rovd/internal/command"
	"github.com/rov-control/rovd/internal/companion"
	"github.com/rov-control/rovd/internal/transport"
	"github.com/rov-control/rovd/internal/video"
)

// APIError represents an API-layer error with HTTP status code.
type APIError struct {
	Code       string
	Message    string
	Details    interface{}
	StatusCode int
}

// NewAPIError creates a new API error.
func NewAPIError(code, message string, statusCode int, details interface{}) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		Details:    details,
		StatusCode: statusCode,
	}
}

// Error implements the error interface for APIError.
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

var errorTable = []struct {
	target  error
	code    string
	status  int
	message string
}{
	{command.ErrInvalidParameter, "BAD_REQUEST", http.StatusBadRequest, "Malformed or missing required parameter"},
	{command.ErrInvalidRange, "INVALID_RANGE", http.StatusBadRequest, "Parameter value is outside the allowed range"},
	{command.ErrConflict, "CONFLICT", http.StatusConflict, "Request conflicts with the current link state"},
	{command.ErrTimeout, "TIMEOUT", http.StatusGatewayTimeout, "Vehicle did not acknowledge in time"},
	{transport.ErrBusy, "BUSY", http.StatusServiceUnavailable, "Vehicle is busy, retry with backoff"},
	{transport.ErrDenied, "DENIED", http.StatusConflict, "Vehicle denied the command"},
	{transport.ErrUnsupported, "UNSUPPORTED", http.StatusUnprocessableEntity, "Vehicle does not support the command"},
	{command.ErrUnavailable, "UNAVAILABLE", http.StatusServiceUnavailable, "Vehicle or companion is unavailable"},
	{companion.ErrUnreachable, "UNAVAILABLE", http.StatusServiceUnavailable, "Companion computer is unreachable"},
	{video.ErrStreamNotFound, "NOT_FOUND", http.StatusNotFound, "Stream not found"},
}

// ToAPIError converts an error to an HTTP status code and envelope body.
func ToAPIError(err error) (int, []byte) {
	if err == nil {
		return http.StatusOK, nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, marshalErrorResponse(apiErr.Code, apiErr.Message, apiErr.Details)
	}

	for _, e := range errorTable {
		if errors.Is(err, e.target) {
			return e.status, marshalErrorResponse(e.code, e.message, map[string]string{"cause": err.Error()})
		}
	}

	var statusErr *companion.StatusError
	if errors.As(err, &statusErr) {
		return http.StatusBadGateway, marshalErrorResponse("UPSTREAM_ERROR", "Companion computer returned an error",
			map[string]interface{}{"path": statusErr.Path, "status": statusErr.Code})
	}
	if errors.Is(err, command.ErrRejected) || errors.Is(err, transport.ErrInternal) {
		return http.StatusBadGateway, marshalErrorResponse("REJECTED", "Vehicle rejected the command",
			map[string]string{"cause": err.Error()})
	}

	return http.StatusInternalServerError, marshalErrorResponse("INTERNAL", "Internal server error",
		map[string]interface{}{"original": err.Error()})
}

func marshalErrorResponse(code, message string, details interface{}) []byte {
	data, err := json.Marshal(ErrorResponse(code, message, details))
	if err != nil {
		data, _ = json.Marshal(ErrorResponse("INTERNAL", "Failed to marshal error response", nil))
	}
	return data
}
