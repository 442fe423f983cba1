package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeSubmission indicates the backend rejected a case submission.
	// Submission errors carry the HTTP status and abort the attempt; there
	// is no automatic retry.
	ErrCodeSubmission ErrorCode = "submission"
	// ErrCodePoll indicates a transient failure on a status poll tick.
	// Poll errors are logged and swallowed; the loop continues.
	ErrCodePoll ErrorCode = "poll"
	// ErrCodeResultFetch indicates the final result payload could not be
	// retrieved. The case is left in a "result unavailable" state.
	ErrCodeResultFetch ErrorCode = "result_fetch"
	// ErrCodePayloadShape indicates the backend payload was missing expected
	// fields. Handled defensively with placeholder values, never fatal.
	ErrCodePayloadShape ErrorCode = "payload_shape"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeNotFound indicates a resource was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeInternal indicates an internal error.
	ErrCodeInternal ErrorCode = "internal"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
	// HTTPStatus is the backend HTTP status that produced the error
	// (optional, for submission/result fetch errors).
	HTTPStatus int
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Submission creates a new Submission error carrying the backend HTTP status.
func Submission(status int, message string) *AppError {
	return &AppError{
		Code:       ErrCodeSubmission,
		Message:    message,
		HTTPStatus: status,
	}
}

// Submissionf creates a new Submission error with formatted message.
func Submissionf(status int, format string, args ...any) *AppError {
	return &AppError{
		Code:       ErrCodeSubmission,
		Message:    fmt.Sprintf(format, args...),
		HTTPStatus: status,
	}
}

// Poll creates a new Poll error.
func Poll(message string) *AppError {
	return &AppError{
		Code:    ErrCodePoll,
		Message: message,
	}
}

// ResultFetch creates a new ResultFetch error carrying the backend HTTP status
// when one was observed (0 for transport failures).
func ResultFetch(status int, message string) *AppError {
	return &AppError{
		Code:       ErrCodeResultFetch,
		Message:    message,
		HTTPStatus: status,
	}
}

// PayloadShape creates a new PayloadShape error.
func PayloadShape(message string) *AppError {
	return &AppError{
		Code:    ErrCodePayloadShape,
		Message: message,
	}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

// Validationf creates a new Validation error with formatted message.
func Validationf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: fmt.Sprintf(format, args...),
	}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: message,
	}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsSubmission checks if an error is a Submission error.
func IsSubmission(err error) bool {
	return isCode(err, ErrCodeSubmission)
}

// IsPoll checks if an error is a Poll error.
func IsPoll(err error) bool {
	return isCode(err, ErrCodePoll)
}

// IsResultFetch checks if an error is a ResultFetch error.
func IsResultFetch(err error) bool {
	return isCode(err, ErrCodeResultFetch)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetHTTPStatus returns the backend HTTP status from an error, or 0 when absent.
func GetHTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus
	}
	return 0
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
