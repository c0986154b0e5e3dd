package apperr

import (
	"errors"
	"fmt"
)

// Error codes
const (
	// User-actionable: token missing/expired/under-scoped. Surfaced to
	// the end user as "reconnect required".
	CodeCredentialInvalid = "CREDENTIAL_INVALID"

	// Transient mailbox provider failure; retried on the next scheduled
	// sync, never inline.
	CodeProviderUnavailable = "PROVIDER_UNAVAILABLE"

	// Absent resource OR outside the caller's tenant scope. The two are
	// deliberately indistinguishable to avoid existence leakage.
	CodeNotFound = "NOT_FOUND"

	// Classifier timeout/garbage; degrades to a default category.
	CodeClassifierFailure = "CLASSIFIER_FAILURE"

	// Index write failed after the relational write succeeded; counted
	// as skipped, recoverable via resync.
	CodeIndexWriteFailure = "INDEX_WRITE_FAILURE"

	// Duplicate (account, uid); treated as success-no-op upstream.
	CodeConstraintViolation = "CONSTRAINT_VIOLATION"

	// Internal errors
	CodeDatabaseError = "DATABASE_ERROR"
	CodeConfigError   = "CONFIG_ERROR"
	CodeInternalError = "INTERNAL_ERROR"
)

// AppError is a structured, coded application error.
type AppError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// Constructor functions
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func CredentialInvalid(reason string) *AppError {
	if reason == "" {
		reason = "credential invalid, reconnect required"
	}
	return &AppError{
		Code:    CodeCredentialInvalid,
		Message: reason,
	}
}

func ProviderUnavailable(provider string, err error) *AppError {
	return &AppError{
		Code:    CodeProviderUnavailable,
		Message: fmt.Sprintf("mailbox provider unavailable: %s", provider),
		Details: map[string]any{"provider": provider},
		Err:     err,
	}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

func ClassifierFailure(err error) *AppError {
	return &AppError{
		Code:    CodeClassifierFailure,
		Message: "classifier call failed",
		Err:     err,
	}
}

func IndexWriteFailure(err error) *AppError {
	return &AppError{
		Code:    CodeIndexWriteFailure,
		Message: "search index write failed",
		Err:     err,
	}
}

func ConstraintViolation(key string) *AppError {
	return &AppError{
		Code:    CodeConstraintViolation,
		Message: fmt.Sprintf("duplicate key: %s", key),
		Details: map[string]any{"key": key},
	}
}

func DatabaseError(operation string, err error) *AppError {
	return &AppError{
		Code:    CodeDatabaseError,
		Message: fmt.Sprintf("database error: %s", operation),
		Err:     err,
	}
}

func ConfigError(message string) *AppError {
	return &AppError{
		Code:    CodeConfigError,
		Message: message,
	}
}

func Internal(message string) *AppError {
	if message == "" {
		message = "internal error"
	}
	return &AppError{
		Code:    CodeInternalError,
		Message: message,
	}
}

// Helper functions
func IsCode(err error, code string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool          { return IsCode(err, CodeNotFound) }
func IsCredentialInvalid(err error) bool { return IsCode(err, CodeCredentialInvalid) }

func AsAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeInternalError, "internal error")
}
