// Package client abstracts the model providers behind a single step-wise
// interface: given a system prompt, history and tool catalog, produce one
// model step of text and tool calls.
package client

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"raven/internal/config"
)

// ToolCall is one function invocation requested by the model.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Step is one complete model response: optional text and reasoning plus
// zero or more tool calls.
type Step struct {
	Text      string
	Reasoning string
	ToolCalls []ToolCall

	InputTokens  int
	OutputTokens int
}

// Request carries everything a provider needs for one step.
type Request struct {
	System  string
	History []*genai.Content

	// Tools is the active catalog for this step. Empty disables tool
	// calling, forcing a textual answer.
	Tools []*genai.FunctionDeclaration
}

// StreamHandler receives deltas as they arrive. All callbacks are optional.
type StreamHandler struct {
	OnText      func(delta string)
	OnReasoning func(delta string)
}

// Client is the provider-agnostic model interface.
type Client interface {
	// SendStep performs one model round-trip. The handler, when non-nil,
	// observes deltas before the collected Step is returned.
	SendStep(ctx context.Context, req Request, handler *StreamHandler) (*Step, error)

	// Model returns the active model name.
	Model() string

	// Close releases provider resources.
	Close() error
}

// New constructs the client selected by the configuration.
func New(ctx context.Context, cfg *config.Config) (Client, error) {
	switch cfg.API.ActiveProvider {
	case "gemini":
		return NewGeminiClient(ctx, cfg)
	case "ollama":
		return NewOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.API.ActiveProvider)
	}
}

// Ptr returns a pointer to the given value, for optional API fields.
func Ptr[T any](v T) *T {
	return &v
}
