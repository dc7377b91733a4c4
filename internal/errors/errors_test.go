package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestTableError_Error(t *testing.T) {
	err := New(ErrCategoryAlignment, CodeRowCountMismatch, "8 rows expected 10")
	expected := "[ALIGNMENT:ROW_COUNT_MISMATCH] 8 rows expected 10"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestTableError_ErrorWithCause(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := Wrap(ErrCategoryStore, CodeWriteFailed, "snapshot write failed", cause)
	expected := "[STORE:WRITE_FAILED] snapshot write failed: disk full"
	if err.Error() != expected {
		t.Errorf("got %q, want %q", err.Error(), expected)
	}
}

func TestTableError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	err := Wrap(ErrCategoryStore, CodeReadFailed, "read failed", cause)
	if !errors.Is(err, cause) {
		t.Error("Unwrap should allow errors.Is to find the cause")
	}
}

func TestTableError_Is(t *testing.T) {
	err1 := New(ErrCategorySchema, CodeRequiredColumnMissing, "first")
	err2 := New(ErrCategorySchema, CodeRequiredColumnMissing, "second")
	err3 := New(ErrCategorySchema, CodeColumnLengthMismatch, "different code")

	if !errors.Is(err1, err2) {
		t.Error("errors with same category+code should match via Is")
	}
	if errors.Is(err1, err3) {
		t.Error("errors with different codes should not match via Is")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		category  ErrorCategory
		code      string
		retryable bool
	}{
		{ErrCategoryStore, CodeWriteFailed, true},
		{ErrCategoryStore, CodeReadFailed, true},
		{ErrCategoryStore, CodeCorruptSnapshot, false},
		{ErrCategorySchema, CodeRequiredColumnMissing, false},
		{ErrCategoryUniqueness, CodeDuplicateRowID, false},
		{ErrCategoryAlignment, CodeRowCountMismatch, false},
		{ErrCategoryHierarchy, CodeNoHierarchyColumn, false},
		{ErrCategoryRange, CodeStartOutOfRange, false},
		{ErrCategoryDomain, CodeSeriesRequired, false},
	}

	for _, tt := range tests {
		err := New(tt.category, tt.code, "test")
		if IsRetryable(err) != tt.retryable {
			t.Errorf("%s:%s retryable=%v, want %v", tt.category, tt.code, IsRetryable(err), tt.retryable)
		}
	}
}

func TestGetCategory(t *testing.T) {
	err := New(ErrCategoryHierarchy, CodeNoHierarchyColumn, "no reference column")
	if GetCategory(err) != ErrCategoryHierarchy {
		t.Errorf("got %q, want %q", GetCategory(err), ErrCategoryHierarchy)
	}
	if GetCategory(fmt.Errorf("plain error")) != "" {
		t.Error("non-TableError should return empty category")
	}
}

func TestGetCode(t *testing.T) {
	err := New(ErrCategoryRange, CodeSpanOutOfRange, "start+count out of range")
	if GetCode(err) != CodeSpanOutOfRange {
		t.Errorf("got %q, want %q", GetCode(err), CodeSpanOutOfRange)
	}
	if GetCode(fmt.Errorf("plain error")) != "" {
		t.Error("non-TableError should return empty code")
	}
}

func TestWithDetails(t *testing.T) {
	err := New(ErrCategorySchema, CodeRequiredColumnMissing, "missing column")
	detailed := err.WithDetails(map[string]interface{}{"column": "electrode"})

	if detailed.Details["column"] != "electrode" {
		t.Error("WithDetails should set details")
	}
	// Original should be unmodified
	if err.Details != nil {
		t.Error("WithDetails should not modify original")
	}
}

func TestConvenienceConstructors(t *testing.T) {
	cause := fmt.Errorf("io error")

	s := NewSchemaError(CodeColumnLengthMismatch, "length mismatch")
	if s.Category != ErrCategorySchema || s.Code != CodeColumnLengthMismatch {
		t.Error("NewSchemaError mismatch")
	}

	u := NewUniquenessError("id 3 already present")
	if u.Category != ErrCategoryUniqueness || u.Code != CodeDuplicateRowID {
		t.Error("NewUniquenessError mismatch")
	}

	a := NewAlignmentError(CodeMissingCategory, "missing categories")
	if a.Category != ErrCategoryAlignment {
		t.Error("NewAlignmentError mismatch")
	}

	h := NewHierarchyError(CodeNoHierarchyColumn, "no reference column")
	if h.Category != ErrCategoryHierarchy {
		t.Error("NewHierarchyError mismatch")
	}

	r := NewRangeError(CodeStartOutOfRange, "start out of range")
	if r.Category != ErrCategoryRange {
		t.Error("NewRangeError mismatch")
	}

	d := NewDomainError(CodeSeriesRequired, "stimulus and response cannot both be nil")
	if d.Category != ErrCategoryDomain {
		t.Error("NewDomainError mismatch")
	}

	st := NewStoreError(CodeWriteFailed, "write failed", cause)
	if st.Category != ErrCategoryStore || !errors.Is(st, cause) {
		t.Error("NewStoreError mismatch")
	}
}
