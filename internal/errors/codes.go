// Package errors provides structured error handling for lumen.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Scan and parse errors
//   - 3XX: Index and cache errors
//   - 4XX: Query and matching errors
//   - 5XX: Launch errors
//   - 6XX: Daemon errors
//   - 7XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryScan indicates entry discovery and parse errors.
	CategoryScan Category = "SCAN"
	// CategoryIndex indicates index and persisted-cache errors.
	CategoryIndex Category = "INDEX"
	// CategoryQuery indicates query and matching errors.
	CategoryQuery Category = "QUERY"
	// CategoryLaunch indicates action execution errors.
	CategoryLaunch Category = "LAUNCH"
	// CategoryDaemon indicates daemon lifecycle and IPC errors.
	CategoryDaemon Category = "DAEMON"
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
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Scan errors (200-299): contained per entry or per directory.
	ErrCodeEntryParse     = "ERR_201_ENTRY_PARSE"
	ErrCodeDirUnreadable  = "ERR_202_DIR_UNREADABLE"
	ErrCodeScanTaskFailed = "ERR_203_SCAN_TASK_FAILED"

	// Index and cache errors (300-399)
	ErrCodeCacheVersion  = "ERR_301_CACHE_VERSION"
	ErrCodeCacheCorrupt  = "ERR_302_CACHE_CORRUPT"
	ErrCodeEmptyDelta    = "ERR_303_EMPTY_DELTA"
	ErrCodeStaleSnapshot = "ERR_304_STALE_SNAPSHOT"

	// Query errors (400-499)
	ErrCodeQueryCancelled = "ERR_401_QUERY_CANCELLED"
	ErrCodeProviderSlow   = "ERR_402_PROVIDER_DEADLINE"

	// Launch errors (500-599)
	ErrCodeLaunchFailed  = "ERR_501_LAUNCH_FAILED"
	ErrCodeBadExecLine   = "ERR_502_BAD_EXEC_LINE"
	ErrCodeUnknownAction = "ERR_503_UNKNOWN_ACTION"

	// Daemon errors (600-699)
	ErrCodeSocketBind     = "ERR_601_SOCKET_BIND"
	ErrCodeAlreadyRunning = "ERR_602_ALREADY_RUNNING"
	ErrCodeNotRunning     = "ERR_603_NOT_RUNNING"

	// Internal errors (700-799)
	ErrCodeInternal = "ERR_701_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "201" from "ERR_201_ENTRY_PARSE")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryScan
	case '3':
		return CategoryIndex
	case '4':
		return CategoryQuery
	case '5':
		return CategoryLaunch
	case '6':
		return CategoryDaemon
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
// Only the socket bind failure is fatal; everything else is contained.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeSocketBind:
		return SeverityFatal
	case ErrCodeEntryParse, ErrCodeDirUnreadable, ErrCodeCacheVersion,
		ErrCodeProviderSlow, ErrCodeStaleSnapshot:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// isRecoverableCode checks if an error code represents a condition the
// daemon recovers from without operator intervention.
func isRecoverableCode(code string) bool {
	switch code {
	case ErrCodeEntryParse, ErrCodeDirUnreadable, ErrCodeCacheVersion,
		ErrCodeCacheCorrupt, ErrCodeProviderSlow, ErrCodeStaleSnapshot,
		ErrCodeScanTaskFailed, ErrCodeQueryCancelled,
		ErrCodeLaunchFailed, ErrCodeBadExecLine, ErrCodeUnknownAction:
		return true
	default:
		return false
	}
}
