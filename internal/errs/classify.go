package errs

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
)

// Categorize infers a typed error from an arbitrary error raised by a
// subsystem that does not produce typed errors itself (OS calls, third-party
// libraries). Typed errors pass through unchanged.
func Categorize(err error) *Error {
	if err == nil {
		return nil
	}
	if te, ok := As(err); ok {
		return te
	}

	msg := err.Error()

	// Typed checks first, string heuristics as fallback.
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return New(msg, CategoryTimeout, CodeTimeoutExceeded, WithCause(err))
	case errors.Is(err, os.ErrNotExist) || errors.Is(err, fs.ErrNotExist):
		return New(msg, CategoryFilesystem, CodeFileNotFound, WithCause(err))
	case errors.Is(err, os.ErrPermission) || errors.Is(err, fs.ErrPermission):
		return New(msg, CategoryPermission, CodePermissionDenied, WithCause(err))
	}

	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "permission denied"):
		return New(msg, CategoryPermission, CodePermissionDenied, WithCause(err))
	case strings.Contains(lower, "no such file"), strings.Contains(lower, "not found") && strings.Contains(lower, "file"):
		return New(msg, CategoryFilesystem, CodeFileNotFound, WithCause(err))
	case strings.Contains(lower, "executable file not found"), strings.Contains(lower, "command not found"):
		return New(msg, CategoryRuntime, CodeCommandNotFound, WithCause(err))
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"), strings.Contains(lower, "deadline exceeded"):
		return New(msg, CategoryTimeout, CodeTimeoutExceeded, WithCause(err))
	case strings.Contains(lower, "connection"), strings.Contains(lower, "network"),
		strings.Contains(lower, "no such host"), strings.Contains(lower, "socket"):
		return New(msg, CategoryNetwork, CodeNetworkError, WithCause(err))
	}

	return New(msg, CategoryUnknown, CodeInternalError, WithCause(err))
}
