package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes shared by the API envelope and log fields.
const (
	ErrCodeDatabase          = "DATABASE_ERROR"
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeExternal          = "EXTERNAL_API_ERROR"
	ErrCodeInternal          = "INTERNAL_ERROR"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeRateLimit         = "RATE_LIMIT_EXCEEDED"
	ErrCodeNotConfigured     = "NOT_CONFIGURED"
	ErrCodeContractViolation = "CONTRACT_VIOLATION"
)

// AppError is the application error type. Context carries structured
// fields that callers can attach to log entries.
type AppError struct {
	Code    string
	Message string
	Err     error
	Context map[string]interface{}
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap exposes the wrapped error to errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithContext sets a context field and returns the receiver for chaining.
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// New creates an AppError without an underlying cause.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Context: make(map[string]interface{}),
	}
}

// Wrap creates an AppError around err.
func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Context: make(map[string]interface{}),
	}
}

// IsCode reports whether any AppError in err's chain carries code.
func IsCode(err error, code string) bool {
	var appErr *AppError
	for err != nil {
		if !stderrors.As(err, &appErr) {
			return false
		}
		if appErr.Code == code {
			return true
		}
		err = appErr.Err
	}
	return false
}

func NewDatabaseError(operation string, err error) *AppError {
	return Wrap(err, ErrCodeDatabase, fmt.Sprintf("database operation failed: %s", operation)).
		WithContext("operation", operation)
}

func NewValidationError(field, reason string) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf("validation failed for field '%s': %s", field, reason)).
		WithContext("field", field).
		WithContext("reason", reason)
}

func NewNotFoundError(resource, id string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found: %s", resource, id)).
		WithContext("resource", resource).
		WithContext("id", id)
}

func NewExternalAPIError(api string, err error) *AppError {
	return Wrap(err, ErrCodeExternal, fmt.Sprintf("external API call failed: %s", api)).
		WithContext("api", api)
}

func NewUnauthorizedError(reason string) *AppError {
	return New(ErrCodeUnauthorized, fmt.Sprintf("unauthorized: %s", reason)).
		WithContext("reason", reason)
}

func NewRateLimitError() *AppError {
	return New(ErrCodeRateLimit, "rate limit exceeded")
}

func NewInternalError(message string, err error) *AppError {
	if err != nil {
		return Wrap(err, ErrCodeInternal, message)
	}
	return New(ErrCodeInternal, message)
}

// NewNotConfiguredError reports a feature whose configuration is absent
// or still holds a placeholder value.
func NewNotConfiguredError(feature string) *AppError {
	return New(ErrCodeNotConfigured, fmt.Sprintf("%s is not configured", feature)).
		WithContext("feature", feature)
}

// NewContractViolation reports a required input field the caller failed
// to populate. It indicates a caller bug, not a runtime condition.
func NewContractViolation(record, field string) *AppError {
	return New(ErrCodeContractViolation, fmt.Sprintf("%s is missing required field '%s'", record, field)).
		WithContext("record", record).
		WithContext("field", field)
}
