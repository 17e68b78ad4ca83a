package errors

import (
	stderrors "errors"
	"fmt"
)

// Is reports whether any error in err's chain matches target. Thin
// passthrough so callers need only one errors import.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As finds the first error in err's chain matching target's type.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}

// LumenError is the structured error type for lumen.
// It provides context for error handling, logging, and user presentation.
type LumenError struct {
	// Code is the unique error code (e.g., "ERR_201_ENTRY_PARSE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Scan, Index, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Recoverable indicates the daemon continues past this error.
	Recoverable bool
}

// Error implements the error interface.
func (e *LumenError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *LumenError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with LumenError.
func (e *LumenError) Is(target error) bool {
	if t, ok := target.(*LumenError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *LumenError) WithDetail(key, value string) *LumenError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new LumenError with the given code and message.
// Category, severity, and recoverable flag are derived from the code.
func New(code string, message string, cause error) *LumenError {
	return &LumenError{
		Code:        code,
		Message:     message,
		Category:    categoryFromCode(code),
		Severity:    severityFromCode(code),
		Cause:       cause,
		Recoverable: isRecoverableCode(code),
	}
}

// Wrap creates a LumenError from an existing error.
// The error's message becomes the LumenError message.
func Wrap(code string, err error) *LumenError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ParseError creates a per-entry parse error. Always recoverable.
func ParseError(message string, cause error) *LumenError {
	return New(ErrCodeEntryParse, message, cause)
}

// ScanError creates an unreadable-directory error. Always recoverable.
func ScanError(message string, cause error) *LumenError {
	return New(ErrCodeDirUnreadable, message, cause)
}

// LaunchError creates an action execution error.
// Surfaced to the session as a visible, non-fatal failure.
func LaunchError(message string, cause error) *LumenError {
	return New(ErrCodeLaunchFailed, message, cause)
}

// BindError creates a socket bind error. The only fatal startup error.
func BindError(message string, cause error) *LumenError {
	return New(ErrCodeSocketBind, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *LumenError {
	return New(ErrCodeInternal, message, cause)
}

// IsRecoverable checks if an error is one the daemon continues past.
func IsRecoverable(err error) bool {
	var le *LumenError
	if As(err, &le) {
		return le.Recoverable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort daemon startup.
func IsFatal(err error) bool {
	var le *LumenError
	if As(err, &le) {
		return le.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from an error chain.
// Returns empty string if no LumenError is present.
func GetCode(err error) string {
	var le *LumenError
	if As(err, &le) {
		return le.Code
	}
	return ""
}

// GetCategory extracts the category from an error chain.
// Returns empty string if no LumenError is present.
func GetCategory(err error) Category {
	var le *LumenError
	if As(err, &le) {
		return le.Category
	}
	return ""
}
