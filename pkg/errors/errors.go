package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Gateway errors
	ErrorTypeNetwork  ErrorType = "NETWORK"
	ErrorTypeProtocol ErrorType = "PROTOCOL"

	// Client-side errors
	ErrorTypeValidation ErrorType = "VALIDATION"
	ErrorTypeNotFound   ErrorType = "NOT_FOUND"

	// Session errors
	ErrorTypeSessionExpired ErrorType = "SESSION_EXPIRED"

	// Cache consistency diagnostics
	ErrorTypeConflictDiscarded ErrorType = "CONFLICT_DISCARDED"

	// Everything else
	ErrorTypeInternal ErrorType = "INTERNAL"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails adds error details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// Retryable reports whether the caller may reasonably retry the operation.
// Only network failures are transient; everything else needs intervention.
func (e *AppError) Retryable() bool {
	return e.Type == ErrorTypeNetwork
}

// Constructor functions for the error taxonomy

// NewNetworkError creates a network error: the request never produced a
// response (dial failure, timeout, cancellation, tripped breaker).
func NewNetworkError(message string, err error) *AppError {
	return &AppError{
		Type:       ErrorTypeNetwork,
		Message:    message,
		Cause:      err,
		HTTPStatus: http.StatusBadGateway,
	}
}

// NewProtocolError creates a protocol error: the server responded with a
// non-success status. The status code and server message are preserved.
func NewProtocolError(status int, serverMessage string) *AppError {
	return &AppError{
		Type:       ErrorTypeProtocol,
		Message:    fmt.Sprintf("server rejected request with status %d: %s", status, serverMessage),
		HTTPStatus: status,
		Details: map[string]interface{}{
			"status":         status,
			"server_message": serverMessage,
		},
	}
}

// NewValidationError creates a validation error for payloads that fail
// pre-flight checks and are never sent to the server.
func NewValidationError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
	}
}

// NewSessionExpiredError creates a session expired error. Callers must treat
// this as non-retryable and trigger re-authentication.
func NewSessionExpiredError() *AppError {
	return &AppError{
		Type:       ErrorTypeSessionExpired,
		Message:    "session has expired, re-authentication required",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewConflictDiscardedError creates the diagnostic emitted when a rollback is
// skipped because another mutation advanced the entry version in the
// meantime. It is logged for observability, never surfaced to end users.
func NewConflictDiscardedError(key string, expectedVersion, currentVersion int64) *AppError {
	return &AppError{
		Type:    ErrorTypeConflictDiscarded,
		Message: fmt.Sprintf("rollback discarded for %s: entry advanced past snapshot", key),
		Details: map[string]interface{}{
			"key":              key,
			"expected_version": expectedVersion,
			"current_version":  currentVersion,
		},
	}
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Helper functions

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsNetwork checks if an error is a network error
func IsNetwork(err error) bool {
	return IsType(err, ErrorTypeNetwork)
}

// IsProtocol checks if an error is a protocol error
func IsProtocol(err error) bool {
	return IsType(err, ErrorTypeProtocol)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsSessionExpired checks if an error is a session expired error
func IsSessionExpired(err error) bool {
	return IsType(err, ErrorTypeSessionExpired)
}

// IsConflictDiscarded checks if an error is a conflict discard diagnostic
func IsConflictDiscarded(err error) bool {
	return IsType(err, ErrorTypeConflictDiscarded)
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	// If it's already an AppError, add context to message
	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	// Otherwise create a new internal error
	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
