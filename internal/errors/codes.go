// Package errors provides structured error handling for offsearch.
//
// Error codes follow the pattern ERR_XYY_DESCRIPTION where X is the category:
//   - 1XX: Usage errors (misuse of the coordinator API)
//   - 2XX: Configuration errors
//   - 3XX: Activation and remote errors
//   - 4XX: IO errors (data directories, source files, locks)
//   - 5XX: Local engine errors
//   - 6XX: Scheduling errors (lanes, cancellation)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryUsage indicates a caller violated a coordinator invariant.
	CategoryUsage Category = "USAGE"
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryActivation indicates engine activation or remote access errors.
	CategoryActivation Category = "ACTIVATION"
	// CategoryIO indicates file and disk I/O errors.
	CategoryIO Category = "IO"
	// CategoryEngine indicates failures surfaced by the local search engine.
	CategoryEngine Category = "ENGINE"
	// CategoryScheduling indicates lane and cancellation errors.
	CategoryScheduling Category = "SCHEDULING"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Usage errors (100-199)
	ErrCodeNotActivated = "ERR_101_NOT_ACTIVATED"
	ErrCodeTypeConflict = "ERR_102_TYPE_CONFLICT"
	ErrCodeInvalidInput = "ERR_103_INVALID_INPUT"
	ErrCodeNotMirrored  = "ERR_104_NOT_MIRRORED"

	// Config errors (200-299)
	ErrCodeConfigInvalid  = "ERR_201_CONFIG_INVALID"
	ErrCodeConfigNotFound = "ERR_202_CONFIG_NOT_FOUND"

	// Activation and remote errors (300-399)
	ErrCodeActivationFailed   = "ERR_301_ACTIVATION_FAILED"
	ErrCodeCredentialMismatch = "ERR_302_CREDENTIAL_MISMATCH"
	ErrCodeCredentialEmpty    = "ERR_303_CREDENTIAL_EMPTY"
	ErrCodeRemoteUnavailable  = "ERR_304_REMOTE_UNAVAILABLE"

	// IO errors (400-499)
	ErrCodeDataDir      = "ERR_401_DATA_DIR"
	ErrCodeSourceRead   = "ERR_402_SOURCE_READ"
	ErrCodeLockHeld     = "ERR_403_LOCK_HELD"
	ErrCodeCorruptIndex = "ERR_404_CORRUPT_INDEX"

	// Engine errors (500-599)
	ErrCodeEngineBuild  = "ERR_501_ENGINE_BUILD"
	ErrCodeEngineSearch = "ERR_502_ENGINE_SEARCH"
	ErrCodeTaskPanic    = "ERR_503_TASK_PANIC"
	ErrCodeIndexMissing = "ERR_504_INDEX_MISSING"

	// Scheduling errors (600-699)
	ErrCodeCancelled  = "ERR_601_CANCELLED"
	ErrCodeLaneClosed = "ERR_602_LANE_CLOSED"

	// Internal errors
	ErrCodeInternal = "ERR_901_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Numeric portion starts after "ERR_"
	switch code[4] {
	case '1':
		return CategoryUsage
	case '2':
		return CategoryConfig
	case '3':
		return CategoryActivation
	case '4':
		return CategoryIO
	case '5':
		return CategoryEngine
	case '6':
		return CategoryScheduling
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeTypeConflict, ErrCodeCorruptIndex:
		return SeverityFatal
	case ErrCodeCancelled:
		return SeverityInfo
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeLockHeld, ErrCodeRemoteUnavailable, ErrCodeActivationFailed:
		return true
	default:
		return false
	}
}
