package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Status  int    `json:"status"`
}

func (e *AppError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("[%s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
}

// Common error codes
const (
	CodeValidation    = "VALIDATION_ERROR"
	CodeNotFound      = "NOT_FOUND"
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
	CodeConflict      = "CONFLICT"
	CodeInternalError = "INTERNAL_ERROR"
	CodeBadRequest    = "BAD_REQUEST"
	CodeUnprocessable = "UNPROCESSABLE_ENTITY"
	CodeRetryable     = "RETRYABLE"
	CodeSubjectLocked = "SUBJECT_LOCKED"
	CodeNoPractice    = "NO_PRACTICE_MATERIAL"
	CodeLastAdmin     = "LAST_ADMIN"
	CodeAlreadyClosed = "SESSION_COMPLETED"
)

// Error constructors
func Validation(message string, details string) *AppError {
	return &AppError{
		Code:    CodeValidation,
		Message: message,
		Details: details,
		Status:  http.StatusBadRequest,
	}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Code:    CodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

func Forbidden(message string) *AppError {
	return &AppError{
		Code:    CodeForbidden,
		Message: message,
		Status:  http.StatusForbidden,
	}
}

func Conflict(message string) *AppError {
	return &AppError{
		Code:    CodeConflict,
		Message: message,
		Status:  http.StatusConflict,
	}
}

func Internal(message string, details string) *AppError {
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
		Details: details,
		Status:  http.StatusInternalServerError,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Code:    CodeBadRequest,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

func Unprocessable(message string, details string) *AppError {
	return &AppError{
		Code:    CodeUnprocessable,
		Message: message,
		Details: details,
		Status:  http.StatusUnprocessableEntity,
	}
}

// Retryable marks a transient persistence failure the client may retry.
func Retryable(message string, details string) *AppError {
	return &AppError{
		Code:    CodeRetryable,
		Message: message,
		Details: details,
		Status:  http.StatusServiceUnavailable,
	}
}

// SubjectLocked is returned when a learner opens a subject below its point gate.
func SubjectLocked(required, have int) *AppError {
	return &AppError{
		Code:    CodeSubjectLocked,
		Message: "subject is locked",
		Details: fmt.Sprintf("requires %d points, have %d", required, have),
		Status:  http.StatusForbidden,
	}
}

func NoPracticeMaterial() *AppError {
	return &AppError{
		Code:    CodeNoPractice,
		Message: "no practice material available",
		Status:  http.StatusNotFound,
	}
}

func LastAdmin() *AppError {
	return &AppError{
		Code:    CodeLastAdmin,
		Message: "cannot demote the last administrator",
		Status:  http.StatusConflict,
	}
}

func SessionCompleted() *AppError {
	return &AppError{
		Code:    CodeAlreadyClosed,
		Message: "session already completed",
		Status:  http.StatusConflict,
	}
}

// As unwraps err into an *AppError when one is present in the chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	appErr, ok := As(err)
	return ok && appErr.Code == code
}
