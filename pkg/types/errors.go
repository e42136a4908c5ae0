package types

import (
	"errors"
	"fmt"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeSync       ErrorType = "sync"
	ErrorTypePublish    ErrorType = "publish"
	ErrorTypeInternal   ErrorType = "internal"
)

// ServiceError represents a structured error in the patients service.
// Errors of type sync are logged by the orchestrator and never surfaced;
// errors of type publish are surfaced after the canonical write succeeded.
type ServiceError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// IsType reports whether err is a *ServiceError of the given type
func IsType(err error, t ErrorType) bool {
	var svcErr *ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Type == t
	}
	return false
}

// NewValidationError creates a new validation error
func NewValidationError(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewConflictError creates a new conflict error
func NewConflictError(code, message string, details map[string]interface{}) *ServiceError {
	return &ServiceError{
		Type:    ErrorTypeConflict,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(code, message string) *ServiceError {
	return &ServiceError{
		Type:    ErrorTypeNotFound,
		Code:    code,
		Message: message,
	}
}

// NewSyncError creates a new read-projection sync error
func NewSyncError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:    ErrorTypeSync,
		Code:    ErrCodeSyncFailed,
		Message: message,
		Cause:   cause,
	}
}

// NewPublishError creates a new event publish error
func NewPublishError(message string, cause error) *ServiceError {
	return &ServiceError{
		Type:    ErrorTypePublish,
		Code:    ErrCodePublishFailed,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(code, message string, cause error) *ServiceError {
	return &ServiceError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Common error codes
const (
	ErrCodeInvalidCPF        = "INVALID_CPF"
	ErrCodeDuplicateCPF      = "DUPLICATE_CPF"
	ErrCodeDuplicateMRN      = "DUPLICATE_MEDICAL_RECORD"
	ErrCodeInvalidBirthDate  = "INVALID_BIRTH_DATE"
	ErrCodeInvalidAdmission  = "INVALID_ADMISSION_DATE"
	ErrCodeExpiredInsurance  = "EXPIRED_INSURANCE"
	ErrCodeInvalidStatus     = "INVALID_STATUS"
	ErrCodePatientNotFound   = "PATIENT_NOT_FOUND"
	ErrCodeSyncFailed        = "SYNC_FAILED"
	ErrCodePublishFailed     = "PUBLISH_FAILED"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeInvalidPagination = "INVALID_PAGINATION"
)
