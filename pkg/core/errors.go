package core

import (
	"errors"
	"fmt"
)

// ExecutionError represents a structured error with category and details
type ExecutionError struct {
	Category ErrorCategory
	Code     string                 // Machine-readable code: element_not_found, timeout, etc.
	Message  string                 // Human-readable message
	Details  map[string]interface{} // Additional context
	Cause    error                  // Underlying error
}

// Error implements the error interface
func (e *ExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// WithCause returns a copy of the error with the given cause
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  e.Details,
		Cause:    cause,
	}
}

// WithMessage returns a copy of the error with a custom message
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  msg,
		Details:  e.Details,
		Cause:    e.Cause,
	}
}

// WithDetails returns a copy of the error with additional details
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	merged := make(map[string]interface{})
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &ExecutionError{
		Category: e.Category,
		Code:     e.Code,
		Message:  e.Message,
		Details:  merged,
		Cause:    e.Cause,
	}
}

// Predefined errors
var (
	// Structural deviations
	ErrStructuralDeviation = &ExecutionError{
		Category: ErrCategoryStructural,
		Code:     "structural_deviation",
		Message:  "screen identity does not match expected text",
	}

	// Terminal conditions
	ErrDailyLimit = &ExecutionError{
		Category: ErrCategoryLimit,
		Code:     "daily_limit",
		Message:  "daily ticket limit reached",
	}
	ErrCancelled = &ExecutionError{
		Category: ErrCategoryCancelled,
		Code:     "cancelled",
		Message:  "stopped by operator",
	}

	// Absence
	ErrNodeNotFound = &ExecutionError{
		Category: ErrCategoryAbsence,
		Code:     "node_not_found",
		Message:  "node not found",
	}
	ErrNoText = &ExecutionError{
		Category: ErrCategoryAbsence,
		Code:     "no_text",
		Message:  "no text recognized",
	}

	// Resource faults
	ErrCaptureFailed = &ExecutionError{
		Category: ErrCategoryResource,
		Code:     "capture_failed",
		Message:  "screen capture failed",
	}
	ErrRecognitionFailed = &ExecutionError{
		Category: ErrCategoryResource,
		Code:     "recognition_failed",
		Message:  "text recognition failed",
	}
	ErrDispatchTimeout = &ExecutionError{
		Category: ErrCategoryResource,
		Code:     "dispatch_timeout",
		Message:  "input dispatch did not complete in time",
	}

	// Connection errors
	ErrDeviceNotReady = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "device_not_ready",
		Message:  "device automation service is not ready",
	}
	ErrServerUnreachable = &ExecutionError{
		Category: ErrCategoryConnection,
		Code:     "server_unreachable",
		Message:  "could not connect to automation server",
	}

	// Config errors
	ErrInvalidConfig = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "invalid_config",
		Message:  "invalid configuration",
	}
	ErrMissingOperator = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "missing_operator",
		Message:  "operator name is required",
	}
	ErrAlreadyRunning = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "already_running",
		Message:  "engine is already running",
	}
	ErrNotInitialized = &ExecutionError{
		Category: ErrCategoryConfig,
		Code:     "not_initialized",
		Message:  "display scale has not been initialized",
	}
)

// Is matches two ExecutionErrors by code so that copies made with
// WithCause or WithMessage still match their predefined origin
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	if !ok {
		return false
	}
	return e.Code != "" && e.Code == t.Code
}

// CategoryOf returns the category of the first ExecutionError in err's chain
func CategoryOf(err error) ErrorCategory {
	var ee *ExecutionError
	if errors.As(err, &ee) {
		return ee.Category
	}
	return ErrCategoryNone
}

// IsCategory reports whether err carries the given category
func IsCategory(err error, cat ErrorCategory) bool {
	return err != nil && CategoryOf(err) == cat
}

// NewExecutionError creates a new ExecutionError with the given parameters
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{
		Category: category,
		Code:     code,
		Message:  message,
	}
}
