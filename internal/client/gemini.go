package client

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"raven/internal/config"
	"raven/internal/logging"
)

// GeminiClient talks to the Gemini API.
type GeminiClient struct {
	client          *genai.Client
	model           string
	temperature     float32
	maxOutputTokens int32
}

// NewGeminiClient creates a Gemini-backed client.
func NewGeminiClient(ctx context.Context, cfg *config.Config) (*GeminiClient, error) {
	if cfg.API.GeminiKey == "" {
		return nil, fmt.Errorf("gemini API key required (set GEMINI_API_KEY)")
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  cfg.API.GeminiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	logging.Debug("gemini client created", "model", cfg.Model.Name)
	return &GeminiClient{
		client:          gc,
		model:           cfg.Model.Name,
		temperature:     cfg.Model.Temperature,
		maxOutputTokens: cfg.Model.MaxOutputTokens,
	}, nil
}

func (c *GeminiClient) Model() string {
	return c.model
}

func (c *GeminiClient) Close() error {
	return nil
}

// SendStep streams one generation, collecting deltas into a Step.
func (c *GeminiClient) SendStep(ctx context.Context, req Request, handler *StreamHandler) (*Step, error) {
	genConfig := &genai.GenerateContentConfig{
		Temperature:     Ptr(c.temperature),
		MaxOutputTokens: c.maxOutputTokens,
	}
	if req.System != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if len(req.Tools) > 0 {
		genConfig.Tools = []*genai.Tool{{FunctionDeclarations: req.Tools}}
	}

	var (
		text      strings.Builder
		reasoning strings.Builder
		step      Step
	)
	callIndex := 0

	for resp, err := range c.client.Models.GenerateContentStream(ctx, c.model, req.History, genConfig) {
		if err != nil {
			return nil, wrapProviderError(err)
		}
		if resp.UsageMetadata != nil {
			step.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
			step.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
		}
		if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
			continue
		}

		for _, part := range resp.Candidates[0].Content.Parts {
			switch {
			case part.FunctionCall != nil:
				fc := part.FunctionCall
				id := fc.ID
				if id == "" {
					id = fmt.Sprintf("call_%d", callIndex)
				}
				callIndex++
				step.ToolCalls = append(step.ToolCalls, ToolCall{
					ID:   id,
					Name: fc.Name,
					Args: fc.Args,
				})
			case part.Thought:
				reasoning.WriteString(part.Text)
				if handler != nil && handler.OnReasoning != nil {
					handler.OnReasoning(part.Text)
				}
			case part.Text != "":
				text.WriteString(part.Text)
				if handler != nil && handler.OnText != nil {
					handler.OnText(part.Text)
				}
			}
		}
	}

	step.Text = text.String()
	step.Reasoning = reasoning.String()
	return &step, nil
}
