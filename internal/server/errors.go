package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/content-guard/internal/generation"
)

// StatusClientClosedRequest is the non-standard status logged when the client
// goes away before the run finishes.
const StatusClientClosedRequest = 499

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrUnavailable indicates a dependency the endpoint needs is not configured or not reachable.
type ErrUnavailable struct {
	Resource string
	Cause    error
}

func (e *ErrUnavailable) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s unavailable: %v", e.Resource, e.Cause)
	}
	return fmt.Sprintf("%s unavailable", e.Resource)
}

func (e *ErrUnavailable) Unwrap() error {
	return e.Cause
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var validationErr *ErrValidation
	var unavailableErr *ErrUnavailable
	switch {
	case errors.As(err, &validationErr), errors.Is(err, generation.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.As(err, &unavailableErr):
		return http.StatusServiceUnavailable
	case errors.Is(err, generation.ErrRetryBudgetExhausted):
		return http.StatusUnprocessableEntity
	case errors.Is(err, generation.ErrGeneration):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// ErrorCode returns a stable machine-readable code for an error.
func ErrorCode(err error) string {
	switch HTTPStatus(err) {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusServiceUnavailable:
		return "unavailable"
	case http.StatusUnprocessableEntity:
		return "retry_budget_exhausted"
	case http.StatusBadGateway:
		return "generation_failed"
	case http.StatusGatewayTimeout:
		return "timeout"
	case StatusClientClosedRequest:
		return "cancelled"
	default:
		return "internal_error"
	}
}
