package domain

import (
	"errors"
	"fmt"
	"time"
)

// AdvisorError represents a standardized error response
type AdvisorError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error implements the error interface
func (e *AdvisorError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Error codes for different failure scenarios
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeValidation     = "VALIDATION_ERROR"
	ErrCodeNotFound       = "NOT_FOUND"
	ErrCodeStore          = "STORE_ERROR"
	ErrCodeInference      = "INFERENCE_ERROR"
	ErrCodeAuthentication = "AUTHENTICATION_ERROR"
	ErrCodeForbidden      = "FORBIDDEN"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// ValidationError represents malformed input handed over by an upstream collaborator
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// NewAdvisorError creates a new AdvisorError with timestamp
func NewAdvisorError(code, message, details, requestID string) *AdvisorError {
	return &AdvisorError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// IsValidationError reports whether err wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
