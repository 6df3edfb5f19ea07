package client

import (
	"context"
	"errors"
	"strings"

	"raven/internal/errs"
	"raven/internal/retry"
)

// retryableMarkers are provider failure messages worth retrying beyond the
// generic transient classification: rate limits and server-side errors.
var retryableMarkers = []string{
	"429",
	"rate limit",
	"quota",
	"resource exhausted",
	"500",
	"502",
	"503",
	"overloaded",
	"internal server error",
	"unavailable",
}

// wrapProviderError converts a provider failure into a typed error so the
// loop can branch on category instead of message text.
func wrapProviderError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "deadline exceeded"):
		return errs.New("model request timed out", errs.CategoryTimeout, errs.CodeTimeoutExceeded,
			errs.Recoverable(), errs.WithCause(err))
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") ||
		strings.Contains(msg, "api key") || strings.Contains(msg, "unauthorized"):
		return errs.New("model request rejected: authentication failed",
			errs.CategoryPermission, errs.CodePermissionDenied,
			errs.WithCause(err),
			errs.WithSuggestions("check the configured API key"))
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") ||
		strings.Contains(msg, "resource exhausted") || strings.Contains(msg, "quota"):
		return errs.New("model rate limit exceeded", errs.CategoryNetwork, errs.CodeQuotaExceeded,
			errs.Recoverable(), errs.WithCause(err),
			errs.WithSuggestions("wait for the rate limit window to reset"))
	default:
		return errs.New("model request failed", errs.CategoryNetwork, errs.CodeNetworkError,
			errs.Recoverable(), errs.WithCause(err))
	}
}

// IsRetryableError reports whether a model-call failure should be retried.
// Cancellation never is; typed recoverable errors and known provider
// failure modes are.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if te, ok := errs.As(err); ok {
		if te.Category == errs.CategoryPermission || te.Category == errs.CategoryValidation {
			return false
		}
		if te.Recoverable {
			return true
		}
	}
	if retry.IsTransientError(err) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range retryableMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
