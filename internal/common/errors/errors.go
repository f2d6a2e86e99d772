// Package errors provides the standardized error taxonomy for the
// matching and workflow engine. Every failure a caller must branch on is
// a *StandardError with a stable code; nothing is ever collapsed into a
// default score or status.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeMissingInput       ErrorCode = "MISSING_INPUT"
	ErrCodeScoringUnavailable ErrorCode = "SCORING_UNAVAILABLE"
	ErrCodeInvalidTransition  ErrorCode = "INVALID_TRANSITION"
	ErrCodeInvalidState       ErrorCode = "INVALID_STATE"
	ErrCodeForbidden          ErrorCode = "FORBIDDEN"
	ErrCodeConflict           ErrorCode = "CONFLICT"
	ErrCodeNotFound           ErrorCode = "NOT_FOUND"
	ErrCodeStoreUnavailable   ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// NewMissingInputError signals an absent resume or job description.
// Nothing is cached for the pair.
func NewMissingInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMissingInput,
		Message:   "Resume or job description not available",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewScoringUnavailableError signals a failed or timed-out scoring
// collaborator call. Retryable by the caller, never looped internally.
func NewScoringUnavailableError(err error) *StandardError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return &StandardError{
		Code:      ErrCodeScoringUnavailable,
		Message:   "Scoring collaborator failed or timed out",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTransitionError signals a transition the legality table rejects.
func NewInvalidTransitionError(from, to string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTransition,
		Message:   "Application status transition not allowed",
		Details:   fmt.Sprintf("from: %s, to: %s", from, to),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidStateError signals an operation attempted in the wrong state,
// such as scheduling an interview outside shortlisted/to_interview.
func NewInvalidStateError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidState,
		Message:   "Operation not valid in current application state",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewForbiddenError signals a role or ownership violation. The message is
// deliberately uniform so callers cannot probe for record existence.
func NewForbiddenError() *StandardError {
	return &StandardError{
		Code:      ErrCodeForbidden,
		Message:   "Not authorized for this resource",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewConflictError signals a lost compare-and-swap race. The caller
// should re-read and retry once.
func NewConflictError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConflict,
		Message:   "Application was modified concurrently",
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotFoundError signals an absent application record.
func NewNotFoundError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotFound,
		Message:   "Application not found",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStoreUnavailableError signals a database or cache failure.
func NewStoreUnavailableError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStoreUnavailable,
		Message:   "Storage operation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewValidationFailedError signals malformed request input.
func NewValidationFailedError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// httpStatusMapping maps internal error codes to HTTP status codes for
// the transport layer.
var httpStatusMapping = map[ErrorCode]int{
	ErrCodeMissingInput:       http.StatusNotFound,
	ErrCodeScoringUnavailable: http.StatusServiceUnavailable,
	ErrCodeInvalidTransition:  http.StatusUnprocessableEntity,
	ErrCodeInvalidState:       http.StatusUnprocessableEntity,
	ErrCodeForbidden:          http.StatusForbidden,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeStoreUnavailable:   http.StatusServiceUnavailable,
	ErrCodeValidationFailed:   http.StatusBadRequest,
	ErrCodeInternal:           http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status code for an internal error code.
func HTTPStatus(code ErrorCode) int {
	if status, exists := httpStatusMapping[code]; exists {
		return status
	}
	return http.StatusInternalServerError
}

// AsStandard normalizes any error to a *StandardError.
func AsStandard(err error) *StandardError {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// CodeOf extracts the error code, or INTERNAL_ERROR for foreign errors.
func CodeOf(err error) ErrorCode {
	return AsStandard(err).Code
}

// IsCode reports whether err carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}
