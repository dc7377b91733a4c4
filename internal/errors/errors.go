// Package errors provides structured error types for the icetab system.
// All errors carry a category, a code, and a message so callers can make
// precise assertions on failure modes instead of matching strings.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies errors by the concern that raised them.
type ErrorCategory string

const (
	ErrCategorySchema     ErrorCategory = "SCHEMA"
	ErrCategoryUniqueness ErrorCategory = "UNIQUENESS"
	ErrCategoryAlignment  ErrorCategory = "ALIGNMENT"
	ErrCategoryHierarchy  ErrorCategory = "HIERARCHY"
	ErrCategoryRange      ErrorCategory = "RANGE"
	ErrCategoryDomain     ErrorCategory = "DOMAIN"
	ErrCategoryStore      ErrorCategory = "STORE"
)

// Error codes for each category.
const (
	// Schema codes
	CodeRequiredColumnMissing = "REQUIRED_COLUMN_MISSING"
	CodeColumnLengthMismatch  = "COLUMN_LENGTH_MISMATCH"
	CodeDuplicateColumn       = "DUPLICATE_COLUMN"
	CodeUnknownColumn         = "UNKNOWN_COLUMN"

	// Uniqueness codes
	CodeDuplicateRowID = "DUPLICATE_ROW_ID"

	// Alignment codes
	CodeRowCountMismatch  = "ROW_COUNT_MISMATCH"
	CodeCategoryArity     = "CATEGORY_ARITY"
	CodeDuplicateCategory = "DUPLICATE_CATEGORY"
	CodeMissingCategory   = "MISSING_CATEGORY"
	CodeCategoryNotFound  = "CATEGORY_NOT_FOUND"

	// Hierarchy codes
	CodeNoHierarchyColumn = "NO_HIERARCHY_COLUMN"
	CodeTargetRowNotFound = "TARGET_ROW_NOT_FOUND"
	CodeRowNotFound       = "ROW_NOT_FOUND"

	// Range codes
	CodeStartOutOfRange = "START_OUT_OF_RANGE"
	CodeSpanOutOfRange  = "SPAN_OUT_OF_RANGE"

	// Domain codes
	CodeSeriesRequired    = "SERIES_REQUIRED"
	CodeClampModeMismatch = "CLAMP_MODE_MISMATCH"
	CodeDuplicateObject   = "DUPLICATE_OBJECT"

	// Store codes
	CodeWriteFailed     = "WRITE_FAILED"
	CodeReadFailed      = "READ_FAILED"
	CodeCorruptSnapshot = "CORRUPT_SNAPSHOT"
)

// TableError is the structured error type used throughout the system.
type TableError struct {
	Category  ErrorCategory
	Code      string
	Message   string
	Details   map[string]interface{}
	Cause     error
	Retryable bool
}

// Error returns a formatted error string.
func (e *TableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *TableError) Unwrap() error {
	return e.Cause
}

// Is reports whether the target matches this error's category and code.
func (e *TableError) Is(target error) bool {
	var t *TableError
	if errors.As(target, &t) {
		return e.Category == t.Category && e.Code == t.Code
	}
	return false
}

// New creates a new TableError.
func New(category ErrorCategory, code, message string) *TableError {
	return &TableError{
		Category:  category,
		Code:      code,
		Message:   message,
		Retryable: isRetryable(category, code),
	}
}

// Newf creates a new TableError with a formatted message.
func Newf(category ErrorCategory, code, format string, args ...interface{}) *TableError {
	return New(category, code, fmt.Sprintf(format, args...))
}

// Wrap creates a new TableError wrapping an existing error.
func Wrap(category ErrorCategory, code, message string, cause error) *TableError {
	return &TableError{
		Category:  category,
		Code:      code,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryable(category, code),
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *TableError) WithDetails(details map[string]interface{}) *TableError {
	cp := *e
	cp.Details = details
	return &cp
}

// IsRetryable checks whether an error (or its chain) is retryable.
func IsRetryable(err error) bool {
	var te *TableError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// GetCategory extracts the error category from an error chain.
// Returns empty string if the error is not a TableError.
func GetCategory(err error) ErrorCategory {
	var te *TableError
	if errors.As(err, &te) {
		return te.Category
	}
	return ""
}

// GetCode extracts the error code from an error chain.
// Returns empty string if the error is not a TableError.
func GetCode(err error) string {
	var te *TableError
	if errors.As(err, &te) {
		return te.Code
	}
	return ""
}

// isRetryable determines if an error code is retryable. Only store
// operations touch anything outside process memory.
func isRetryable(category ErrorCategory, code string) bool {
	switch {
	case category == ErrCategoryStore && code == CodeWriteFailed:
		return true
	case category == ErrCategoryStore && code == CodeReadFailed:
		return true
	default:
		return false
	}
}

// Convenience constructors for common errors.

func NewSchemaError(code, message string) *TableError {
	return New(ErrCategorySchema, code, message)
}

func NewUniquenessError(message string) *TableError {
	return New(ErrCategoryUniqueness, CodeDuplicateRowID, message)
}

func NewAlignmentError(code, message string) *TableError {
	return New(ErrCategoryAlignment, code, message)
}

func NewHierarchyError(code, message string) *TableError {
	return New(ErrCategoryHierarchy, code, message)
}

func NewRangeError(code, message string) *TableError {
	return New(ErrCategoryRange, code, message)
}

func NewDomainError(code, message string) *TableError {
	return New(ErrCategoryDomain, code, message)
}

func NewStoreError(code, message string, cause error) *TableError {
	return Wrap(ErrCategoryStore, code, message, cause)
}
