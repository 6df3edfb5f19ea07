package errs

import (
	"context"
	"errors"
	"os"
	"testing"
)

func TestNewSetsCategoryAndCodeTogether(t *testing.T) {
	err := New("bad input", CategoryValidation, CodeInvalidInput,
		WithSuggestions("fix the input"))

	if err.Category != CategoryValidation || err.Code != CodeInvalidInput {
		t.Fatalf("got category=%s code=%s", err.Category, err.Code)
	}
	if err.Recoverable {
		t.Fatal("recoverable should default to false")
	}
	if len(err.Suggestions) != 1 || err.Suggestions[0] != "fix the input" {
		t.Fatalf("suggestions = %v", err.Suggestions)
	}
}

func TestErrorStringIncludesCause(t *testing.T) {
	cause := errors.New("underlying")
	err := New("wrapper", CategoryNetwork, CodeNetworkError, WithCause(cause))

	want := "[network/NETWORK_ERROR] wrapper: underlying"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, cause) {
		t.Fatal("wrapped cause should satisfy errors.Is")
	}
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"explicit flag", New("x", CategoryRuntime, CodeInternalError, Recoverable()), true},
		{"network inferred", New("x", CategoryNetwork, CodeNetworkError), true},
		{"timeout inferred", New("x", CategoryTimeout, CodeTimeoutExceeded), true},
		{"validation not recoverable", New("x", CategoryValidation, CodeInvalidInput), false},
		{"permission not recoverable", New("x", CategoryPermission, CodePermissionDenied), false},
		{"untyped error", errors.New("raw"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverable(tt.err); got != tt.want {
				t.Fatalf("IsRecoverable = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		category Category
		code     Code
	}{
		{"deadline", context.DeadlineExceeded, CategoryTimeout, CodeTimeoutExceeded},
		{"not exist", os.ErrNotExist, CategoryFilesystem, CodeFileNotFound},
		{"permission typed", os.ErrPermission, CategoryPermission, CodePermissionDenied},
		{"permission text", errors.New("open /etc/shadow: permission denied"), CategoryPermission, CodePermissionDenied},
		{"no such file", errors.New("stat /tmp/x: no such file or directory"), CategoryFilesystem, CodeFileNotFound},
		{"command missing", errors.New(`exec: "nmapp": executable file not found in $PATH`), CategoryRuntime, CodeCommandNotFound},
		{"timeout text", errors.New("operation timed out"), CategoryTimeout, CodeTimeoutExceeded},
		{"network text", errors.New("dial tcp: no such host"), CategoryNetwork, CodeNetworkError},
		{"unknown", errors.New("something odd"), CategoryUnknown, CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			te := Categorize(tt.err)
			if te.Category != tt.category || te.Code != tt.code {
				t.Fatalf("got %s/%s, want %s/%s", te.Category, te.Code, tt.category, tt.code)
			}
		})
	}
}

func TestCategorizePassesTypedErrorsThrough(t *testing.T) {
	typed := New("already typed", CategorySecurity, CodePermissionDenied)
	if got := Categorize(typed); got != typed {
		t.Fatal("typed errors must pass through unchanged")
	}
}

func TestToPayload(t *testing.T) {
	err := New("scan failed", CategoryNetwork, CodeNetworkError,
		WithSuggestions("check connectivity"))

	payload := ToPayload(err)
	if payload["success"] != false {
		t.Fatal("payload must mark failure")
	}
	if payload["category"] != "network" || payload["code"] != "NETWORK_ERROR" {
		t.Fatalf("payload = %v", payload)
	}
	if payload["recoverable"] != true {
		t.Fatal("network errors report recoverable")
	}
}

func TestToPayloadCategorizesUntypedErrors(t *testing.T) {
	payload := ToPayload(errors.New("operation timed out"))
	if payload["category"] != "timeout" {
		t.Fatalf("payload category = %v", payload["category"])
	}
}
