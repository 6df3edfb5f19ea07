// Package errs provides the structured error taxonomy shared by all tool
// executors and the agent loop. Every failure that crosses a package boundary
// carries a category, a code, a recoverability flag and remediation
// suggestions, so callers branch on structure instead of parsing messages.
package errs

import (
	"errors"
	"fmt"
)

// Category groups errors by the subsystem or failure class they belong to.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryRuntime    Category = "runtime"
	CategoryNetwork    Category = "network"
	CategorySecurity   Category = "security"
	CategoryFilesystem Category = "filesystem"
	CategoryTimeout    Category = "timeout"
	CategoryPermission Category = "permission"
	CategoryUnknown    Category = "unknown"
)

// Code identifies the specific failure kind within a category.
type Code string

const (
	CodeInvalidInput           Code = "INVALID_INPUT"
	CodeRegexError             Code = "REGEX_ERROR"
	CodeFileNotFound           Code = "FILE_NOT_FOUND"
	CodeCommandNotFound        Code = "COMMAND_NOT_FOUND"
	CodeConcurrentModification Code = "CONCURRENT_MODIFICATION"
	CodeQuotaExceeded          Code = "QUOTA_EXCEEDED"
	CodeTimeoutExceeded        Code = "TIMEOUT_EXCEEDED"
	CodeNetworkError           Code = "NETWORK_ERROR"
	CodePermissionDenied       Code = "PERMISSION_DENIED"
	CodeInternalError          Code = "INTERNAL_ERROR"
)

// Error is a structured error with category, code and remediation hints.
// Category and Code are always set together by the raising site.
type Error struct {
	Message     string
	Category    Category
	Code        Code
	Recoverable bool
	Suggestions []string
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s/%s] %s: %v", e.Category, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s/%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Option configures optional fields on a new Error.
type Option func(*Error)

// Recoverable marks the error as recoverable.
func Recoverable() Option {
	return func(e *Error) { e.Recoverable = true }
}

// WithSuggestions attaches ordered remediation hints.
func WithSuggestions(suggestions ...string) Option {
	return func(e *Error) { e.Suggestions = suggestions }
}

// WithCause wraps an underlying error.
func WithCause(cause error) Option {
	return func(e *Error) { e.Cause = cause }
}

// New constructs a typed error. Recoverable defaults to false unless the
// raiser asserts otherwise via the Recoverable option.
func New(message string, category Category, code Code, opts ...Option) *Error {
	e := &Error{
		Message:  message,
		Category: category,
		Code:     code,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// As extracts a typed error from an error chain.
func As(err error) (*Error, bool) {
	var te *Error
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}

// IsRecoverable reports whether the error may succeed on retry or with a
// different approach. The explicit flag wins; otherwise network and timeout
// categories are assumed recoverable.
func IsRecoverable(err error) bool {
	if te, ok := As(err); ok {
		if te.Recoverable {
			return true
		}
		return te.Category == CategoryNetwork || te.Category == CategoryTimeout
	}
	return false
}

// ToPayload converts an error into a structured map suitable for feeding
// back to the model as a tool-result body.
func ToPayload(err error) map[string]any {
	payload := map[string]any{
		"success": false,
		"error":   err.Error(),
	}
	te, ok := As(err)
	if !ok {
		te = Categorize(err)
		payload["error"] = te.Message
	}
	payload["category"] = string(te.Category)
	payload["code"] = string(te.Code)
	payload["recoverable"] = IsRecoverable(te)
	if len(te.Suggestions) > 0 {
		payload["suggestions"] = te.Suggestions
	}
	return payload
}
