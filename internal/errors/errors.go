// Package errors provides structured error handling for Lumina.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 2XX: store errors (transaction, constraint, corruption)
//   - 4XX: validation errors (rejected before any side effect)
//   - 5XX: pipeline stage errors (parse, summarize, embed)
//
// Lookups that find nothing are not errors: store methods return (nil, nil)
// for absent rows.
package errors

import (
	"errors"
	"fmt"
)

// Category classifies errors for handling and logging.
type Category string

const (
	// CategoryStore indicates persistence failures. Not recovered locally;
	// they propagate to the caller unchanged.
	CategoryStore Category = "STORE"
	// CategoryValidation indicates malformed input to a public operation.
	CategoryValidation Category = "VALIDATION"
	// CategoryStage indicates a capability invocation failed, timed out, or
	// returned invalid data during parse/summarize/embed.
	CategoryStage Category = "STAGE"
)

// Error codes by category.
const (
	ErrCodeStoreTx       = "ERR_201_STORE_TX"
	ErrCodeStoreConflict = "ERR_202_STORE_CONFLICT"
	ErrCodeStoreCorrupt  = "ERR_203_STORE_CORRUPT"
	ErrCodeStoreClosed   = "ERR_204_STORE_CLOSED"

	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeMissingPath       = "ERR_402_MISSING_PATH"
	ErrCodeDimensionMismatch = "ERR_403_DIMENSION_MISMATCH"

	ErrCodeParseFailed     = "ERR_501_PARSE_FAILED"
	ErrCodeSummarizeFailed = "ERR_502_SUMMARIZE_FAILED"
	ErrCodeEmbedFailed     = "ERR_503_EMBED_FAILED"
)

// Error is the structured error type used across the codebase.
type Error struct {
	// Code is the unique error code (e.g., "ERR_501_PARSE_FAILED").
	Code string
	// Message is the human-readable error message.
	Message string
	// Category is derived from the code prefix.
	Category Category
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches by code so errors.Is works against sentinel instances.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates an Error with the given code and message. The category is
// derived from the code's numeric prefix.
func New(code, message string, cause error) *Error {
	return &Error{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Cause:    cause,
	}
}

// Wrap creates an Error from an existing error, keeping its message.
func Wrap(code string, err error) *Error {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// StoreError creates a persistence error.
func StoreError(message string, cause error) *Error {
	return New(ErrCodeStoreTx, message, cause)
}

// ValidationError creates an input validation error.
func ValidationError(message string) *Error {
	return New(ErrCodeInvalidInput, message, nil)
}

// StageError creates a pipeline stage error with the code for the stage.
func StageError(code string, stage string, cause error) *Error {
	return New(code, fmt.Sprintf("%s stage failed: %v", stage, cause), cause)
}

// IsValidation reports whether err is (or wraps) a validation error.
func IsValidation(err error) bool {
	return hasCategory(err, CategoryValidation)
}

// IsStage reports whether err is (or wraps) a stage error.
func IsStage(err error) bool {
	return hasCategory(err, CategoryStage)
}

// IsStore reports whether err is (or wraps) a store error.
func IsStore(err error) bool {
	return hasCategory(err, CategoryStore)
}

func hasCategory(err error, cat Category) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Category == cat
	}
	return false
}

// categoryFromCode maps the numeric prefix of a code to its category.
func categoryFromCode(code string) Category {
	if len(code) < 5 {
		return CategoryStore
	}
	switch code[4] {
	case '4':
		return CategoryValidation
	case '5':
		return CategoryStage
	default:
		return CategoryStore
	}
}
