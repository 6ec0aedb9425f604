// Package errors provides structured error handling for scaffsync.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Scan and IO errors
//   - 3XX: Backup and snapshot errors
//   - 4XX: Write and rollback errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryScan indicates file population scan errors.
	CategoryScan Category = "SCAN"
	// CategoryBackup indicates snapshot and backup store errors.
	CategoryBackup Category = "BACKUP"
	// CategoryWrite indicates destructive-write and rollback errors.
	CategoryWrite Category = "WRITE"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort the run.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but the process can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Scan and IO errors (200-299)
	ErrCodeRootMissing    = "ERR_201_ROOT_MISSING"
	ErrCodeFileUnreadable = "ERR_202_FILE_UNREADABLE"
	ErrCodeUpstreamRead   = "ERR_203_UPSTREAM_READ"

	// Backup errors (300-399)
	ErrCodeBackupFailure   = "ERR_301_BACKUP_FAILURE"
	ErrCodeSnapshotMissing = "ERR_302_SNAPSHOT_MISSING"
	ErrCodeSnapshotSealed  = "ERR_303_SNAPSHOT_SEALED"

	// Write and rollback errors (400-499)
	ErrCodeWriteFailure    = "ERR_401_WRITE_FAILURE"
	ErrCodeRollbackFailure = "ERR_402_ROLLBACK_FAILURE"
	ErrCodeLockHeld        = "ERR_403_LOCK_HELD"

	// Internal errors (500-599)
	ErrCodeInternal      = "ERR_501_INTERNAL"
	ErrCodeStateCorrupt  = "ERR_502_STATE_CORRUPT"
	ErrCodeAmbiguousFile = "ERR_503_AMBIGUOUS_CLASSIFICATION"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	// Extract numeric portion (e.g., "201" from "ERR_201_ROOT_MISSING")
	numStr := code[4:7]
	if len(numStr) < 1 {
		return CategoryInternal
	}

	switch numStr[0] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryScan
	case '3':
		return CategoryBackup
	case '4':
		return CategoryWrite
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Fatal conditions abort the run before any further mutation.
	switch code {
	case ErrCodeRootMissing, ErrCodeBackupFailure, ErrCodeStateCorrupt, ErrCodeLockHeld:
		return SeverityFatal
	case ErrCodeAmbiguousFile:
		return SeverityWarning
	}

	return SeverityError
}
