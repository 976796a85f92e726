// Package httperr provides standardized error responses for the HTTP API
package httperr

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// ErrorCode represents semantic error codes for consistent error handling
type ErrorCode string

const (
	// Validation errors
	ErrorCodeValidationError ErrorCode = "VALIDATION_ERROR"
	ErrorCodeRequiredField   ErrorCode = "REQUIRED_FIELD"
	ErrorCodeInvalidFormat   ErrorCode = "INVALID_FORMAT"
	ErrorCodeInvalidValue    ErrorCode = "INVALID_VALUE"

	// Resource errors
	ErrorCodeNotFound      ErrorCode = "NOT_FOUND"
	ErrorCodeAlreadyExists ErrorCode = "ALREADY_EXISTS"
	ErrorCodeConflict      ErrorCode = "CONFLICT"

	// Engine errors
	ErrorCodeResolutionFailed ErrorCode = "RESOLUTION_FAILED"
	ErrorCodeUnknownStrategy  ErrorCode = "UNKNOWN_STRATEGY"

	// System errors
	ErrorCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrorCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorCodeTimeout            ErrorCode = "TIMEOUT"
	ErrorCodeStorageError       ErrorCode = "STORAGE_ERROR"
)

// StandardError represents the unified error structure for API responses
type StandardError struct {
	ErrorInfo ErrorDetails `json:"error"`
}

// Error implements the Go error interface
func (e *StandardError) Error() string {
	return e.ErrorInfo.Message
}

// ErrorDetails contains the detailed error information
type ErrorDetails struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
	TraceID string      `json:"trace_id,omitempty"`
}

// ValidationDetail provides specific validation error information
type ValidationDetail struct {
	Field  string      `json:"field"`
	Reason string      `json:"reason"`
	Value  interface{} `json:"value,omitempty"`
}

// NewStandardError creates a new standardized error
func NewStandardError(code ErrorCode, message string, details interface{}) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

// NewValidationError creates a validation error with field details
func NewValidationError(field, reason string, value interface{}) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    ErrorCodeValidationError,
			Message: fmt.Sprintf("Validation failed for field '%s': %s", field, reason),
			Details: ValidationDetail{
				Field:  field,
				Reason: reason,
				Value:  value,
			},
		},
	}
}

// NewRequiredFieldError creates an error for missing required fields
func NewRequiredFieldError(field string) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    ErrorCodeRequiredField,
			Message: fmt.Sprintf("Required field '%s' is missing", field),
			Details: ValidationDetail{
				Field:  field,
				Reason: "missing_required_field",
			},
		},
	}
}

// NewNotFoundError creates an error for a missing resource
func NewNotFoundError(resource, id string) *StandardError {
	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    ErrorCodeNotFound,
			Message: fmt.Sprintf("%s '%s' not found", resource, id),
		},
	}
}

// NewInternalError creates an internal server error
func NewInternalError(message string, originalError error) *StandardError {
	details := map[string]interface{}{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if originalError != nil {
		details["original_error"] = originalError.Error()
	}

	return &StandardError{
		ErrorInfo: ErrorDetails{
			Code:    ErrorCodeInternalError,
			Message: message,
			Details: details,
		},
	}
}

// WithTraceID adds a trace ID to the error for debugging
func (e *StandardError) WithTraceID(traceID string) *StandardError {
	e.ErrorInfo.TraceID = traceID
	return e
}

// ToHTTPStatus maps StandardError to appropriate HTTP status code
func (e *StandardError) ToHTTPStatus() int {
	switch e.ErrorInfo.Code {
	case ErrorCodeValidationError, ErrorCodeRequiredField, ErrorCodeInvalidFormat, ErrorCodeInvalidValue:
		return http.StatusBadRequest
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeAlreadyExists, ErrorCodeConflict:
		return http.StatusConflict
	case ErrorCodeUnknownStrategy:
		return http.StatusBadRequest
	case ErrorCodeResolutionFailed:
		return http.StatusUnprocessableEntity
	case ErrorCodeServiceUnavailable:
		return http.StatusServiceUnavailable
	case ErrorCodeTimeout:
		return http.StatusRequestTimeout
	case ErrorCodeInternalError, ErrorCodeStorageError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ToJSON converts StandardError to JSON bytes
func (e *StandardError) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

// WriteHTTPError writes StandardError as HTTP response
func (e *StandardError) WriteHTTPError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")

	if e.ErrorInfo.TraceID != "" {
		w.Header().Set("X-Trace-ID", e.ErrorInfo.TraceID)
	}

	w.WriteHeader(e.ToHTTPStatus())

	jsonBytes, _ := e.ToJSON()
	_, _ = w.Write(jsonBytes)
}

// Predefined common errors for convenience
var (
	ErrConflictRequired   = NewRequiredFieldError("conflict")
	ErrFrameworksRequired = NewRequiredFieldError("frameworks")

	ErrInternalServer     = NewInternalError("Internal server error occurred", nil)
	ErrServiceUnavailable = NewStandardError(ErrorCodeServiceUnavailable, "Service temporarily unavailable", nil)
)

// IsValidationError checks if the error is a validation-related error
func IsValidationError(err *StandardError) bool {
	return err.ErrorInfo.Code == ErrorCodeValidationError ||
		err.ErrorInfo.Code == ErrorCodeRequiredField ||
		err.ErrorInfo.Code == ErrorCodeInvalidFormat ||
		err.ErrorInfo.Code == ErrorCodeInvalidValue
}

// IsSystemError checks if the error indicates a server-side failure
func IsSystemError(err *StandardError) bool {
	return err.ErrorInfo.Code == ErrorCodeInternalError ||
		err.ErrorInfo.Code == ErrorCodeServiceUnavailable ||
		err.ErrorInfo.Code == ErrorCodeTimeout ||
		err.ErrorInfo.Code == ErrorCodeStorageError
}
