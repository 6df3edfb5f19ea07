// Package tools provides the executor toolkit available to the agent:
// shell, file IO, search, web lookup, skills and sub-agent delegation.
// Each tool validates its own arguments, reports failures as structured
// results and exposes a declaration for the model.
package tools

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"
)

// Tool is the interface all agent tools implement.
type Tool interface {
	// Name returns the tool's unique name.
	Name() string

	// Description returns a human-readable description of the tool.
	Description() string

	// Declaration returns the function declaration advertised to the model.
	Declaration() *genai.FunctionDeclaration

	// Execute runs the tool with the given arguments.
	Execute(ctx context.Context, args map[string]any) (ToolResult, error)

	// Validate checks the arguments before execution.
	Validate(args map[string]any) error
}

// Retryable is implemented by tools whose failures may be retried by the
// registry. Tools without it run exactly once.
type Retryable interface {
	// RetryOn reports whether the given failure is worth retrying.
	RetryOn(err error) bool
}

// ToolResult represents the outcome of a tool execution.
type ToolResult struct {
	// Content is the textual output fed back to the model.
	Content string

	// Data carries structured output for programmatic consumers.
	Data map[string]any

	// Error holds the failure description when Success is false.
	Error string

	// Success indicates whether the execution succeeded.
	Success bool
}

// NewSuccessResult creates a successful result.
func NewSuccessResult(content string) ToolResult {
	return ToolResult{Content: content, Success: true}
}

// NewSuccessResultWithData creates a successful result with structured data.
func NewSuccessResultWithData(content string, data map[string]any) ToolResult {
	return ToolResult{Content: content, Data: data, Success: true}
}

// NewErrorResult creates a failed result.
func NewErrorResult(errMsg string) ToolResult {
	return ToolResult{Error: errMsg, Success: false}
}

// ToMap converts the result into the response map sent back to the model.
func (r ToolResult) ToMap() map[string]any {
	m := map[string]any{"success": r.Success}
	if r.Content != "" {
		m["content"] = r.Content
	}
	if r.Error != "" {
		m["error"] = r.Error
	}
	for k, v := range r.Data {
		m[k] = v
	}
	return m
}

// SubAgentOutcome is the terminal report of a delegated sub-agent run.
// Exactly one of Result or Error is meaningful, selected by Success.
type SubAgentOutcome struct {
	ID       string
	Success  bool
	Result   string
	Error    string
	Steps    int
	Duration time.Duration
}

// SubAgentRunner launches delegated agent runs. The agent package provides
// the implementation; tools only hold the seam so the dependency points one
// way.
type SubAgentRunner interface {
	// RunSubAgent executes a scoped task and always returns an outcome,
	// even when the run fails or is cancelled.
	RunSubAgent(ctx context.Context, task string, opts SubAgentOptions) (SubAgentOutcome, error)
}

// SubAgentOptions scopes a delegated run.
type SubAgentOptions struct {
	// MaxSteps bounds the sub-agent's step loop. 0 uses the configured
	// default budget.
	MaxSteps int

	// AllowedTools restricts the sub-agent's toolkit. Empty means the
	// parent's toolkit minus delegation itself.
	AllowedTools []string

	// Label names the run for progress reporting.
	Label string
}

// GetString extracts a string argument.
func GetString(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required parameter: %s", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("parameter %s must be a string, got %T", key, v)
	}
	return s, nil
}

// GetStringDefault extracts a string argument with a default value.
func GetStringDefault(args map[string]any, key, def string) string {
	if v, ok := args[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// GetInt extracts an integer argument. JSON numbers arrive as float64.
func GetInt(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok {
		return 0, fmt.Errorf("missing required parameter: %s", key)
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("parameter %s must be a number, got %T", key, v)
	}
}

// GetIntDefault extracts an integer argument with a default value.
func GetIntDefault(args map[string]any, key string, def int) int {
	if v, ok := args[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// GetBoolDefault extracts a boolean argument with a default value.
func GetBoolDefault(args map[string]any, key string, def bool) bool {
	if v, ok := args[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// GetStringSlice extracts an optional list-of-strings argument.
func GetStringSlice(args map[string]any, key string) ([]string, error) {
	v, ok := args[key]
	if !ok {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("parameter %s must be an array of strings, got %T", key, v)
	}
	out := make([]string, 0, len(raw))
	for i, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("parameter %s[%d] must be a string, got %T", key, i, item)
		}
		out = append(out, s)
	}
	return out, nil
}
