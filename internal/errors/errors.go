package errors

import (
	stderrors "errors"
	"fmt"
)

// OffError is the structured error type for offsearch.
// It provides rich context for error handling, logging, and user presentation.
type OffError struct {
	// Code is the unique error code (e.g., "ERR_101_NOT_ACTIVATED").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Usage, Engine, Scheduling, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *OffError) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *OffError) Unwrap() error {
	return e.Cause
}

// Is matches by code, so errors.Is(err, ErrNotActivated) works for any
// OffError carrying the same code.
func (e *OffError) Is(target error) bool {
	if t, ok := target.(*OffError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *OffError) WithDetail(key, value string) *OffError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *OffError) WithSuggestion(suggestion string) *OffError {
	e.Suggestion = suggestion
	return e
}

// New creates a new OffError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *OffError {
	return &OffError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an OffError from an existing error.
// The error's message becomes the OffError message.
func Wrap(code string, err error) *OffError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinels for errors.Is checks. Matching is by code only.
var (
	ErrNotActivated       = New(ErrCodeNotActivated, "offline mode is not enabled", nil)
	ErrTypeConflict       = New(ErrCodeTypeConflict, "index type conflict", nil)
	ErrNotMirrored        = New(ErrCodeNotMirrored, "index is not mirrored", nil)
	ErrActivationFailed   = New(ErrCodeActivationFailed, "engine activation failed", nil)
	ErrCredentialMismatch = New(ErrCodeCredentialMismatch, "engine already activated with another credential", nil)
	ErrEngineBuild        = New(ErrCodeEngineBuild, "local build failed", nil)
	ErrEngineSearch       = New(ErrCodeEngineSearch, "local search failed", nil)
	ErrCancelled          = New(ErrCodeCancelled, "operation cancelled", nil)
	ErrLaneClosed         = New(ErrCodeLaneClosed, "lane is closed", nil)
)

// NotActivated reports a build or search attempted before EnableOfflineMode.
func NotActivated(operation string) *OffError {
	return New(ErrCodeNotActivated, fmt.Sprintf("%s requires offline mode to be enabled", operation), nil).
		WithSuggestion("call EnableOfflineMode with a valid license first")
}

// TypeConflict reports an index name re-resolved with another capability set.
func TypeConflict(name, existing, requested string) *OffError {
	return New(ErrCodeTypeConflict,
		fmt.Sprintf("an index named %q already exists as %s, cannot resolve it as %s", name, existing, requested), nil).
		WithDetail("index", name).
		WithDetail("existing_kind", existing).
		WithDetail("requested_kind", requested)
}

// ActivationError wraps an engine initialization failure.
func ActivationError(message string, cause error) *OffError {
	return New(ErrCodeActivationFailed, message, cause)
}

// EngineError wraps a failure surfaced verbatim by the local engine.
func EngineError(code, index string, cause error) *OffError {
	return New(code, fmt.Sprintf("index %q", index), cause).WithDetail("index", index)
}

// Cancelled reports a cooperatively cancelled task.
func Cancelled(task string, cause error) *OffError {
	return New(ErrCodeCancelled, fmt.Sprintf("task %s cancelled", task), cause)
}

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *OffError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *OffError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *OffError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	if oe, ok := As(err); ok {
		return oe.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	if oe, ok := As(err); ok {
		return oe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first OffError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	if oe, ok := As(err); ok {
		return oe.Code
	}
	return ""
}

// GetCategory extracts the category from the first OffError in the chain.
func GetCategory(err error) Category {
	if oe, ok := As(err); ok {
		return oe.Category
	}
	return ""
}

// As finds the first OffError in err's chain.
func As(err error) (*OffError, bool) {
	var oe *OffError
	if stderrors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}
