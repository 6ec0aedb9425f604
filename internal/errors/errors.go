package errors

import (
	"fmt"
)

// SyncError is the structured error type for scaffsync.
// It provides rich context for error handling, logging, and user presentation.
type SyncError struct {
	// Code is the unique error code (e.g., "ERR_201_ROOT_MISSING").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Scan, Backup, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *SyncError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with SyncError.
func (e *SyncError) Is(target error) bool {
	if t, ok := target.(*SyncError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *SyncError) WithDetail(key, value string) *SyncError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *SyncError) WithSuggestion(suggestion string) *SyncError {
	e.Suggestion = suggestion
	return e
}

// New creates a new SyncError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *SyncError {
	return &SyncError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates a SyncError from an existing error.
// The error's message becomes the SyncError message.
func Wrap(code string, err error) *SyncError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ScanError creates a scan-related error (declared root missing or unreadable).
func ScanError(message string, cause error) *SyncError {
	return New(ErrCodeRootMissing, message, cause)
}

// BackupError creates a backup store error.
// Backup failures are fatal: no destructive write may proceed without a snapshot.
func BackupError(message string, cause error) *SyncError {
	return New(ErrCodeBackupFailure, message, cause)
}

// WriteError creates a destructive-write error.
func WriteError(message string, cause error) *SyncError {
	return New(ErrCodeWriteFailure, message, cause)
}

// RollbackError creates a rollback restoration error.
func RollbackError(message string, cause error) *SyncError {
	return New(ErrCodeRollbackFailure, message, cause)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *SyncError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *SyncError {
	return New(ErrCodeInternal, message, cause)
}

// IsFatal checks if an error has fatal severity.
// Fatal errors abort the run before any further mutation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SyncError); ok {
		return se.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a SyncError.
// Returns empty string if not a SyncError.
func GetCode(err error) string {
	if se, ok := err.(*SyncError); ok {
		return se.Code
	}
	return ""
}

// GetCategory extracts the category from a SyncError.
// Returns empty string if not a SyncError.
func GetCategory(err error) Category {
	if se, ok := err.(*SyncError); ok {
		return se.Category
	}
	return ""
}
