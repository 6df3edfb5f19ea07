package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"google.golang.org/genai"

	"raven/internal/config"
	"raven/internal/logging"
)

// OllamaClient talks to a local Ollama server.
type OllamaClient struct {
	client      *api.Client
	model       string
	temperature float32
	maxTokens   int32
}

// NewOllamaClient creates an Ollama-backed client.
func NewOllamaClient(cfg *config.Config) (*OllamaClient, error) {
	baseURL, err := url.Parse(cfg.API.OllamaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama base URL: %w", err)
	}

	httpClient := &http.Client{Timeout: 5 * time.Minute}
	logging.Debug("ollama client created", "base_url", cfg.API.OllamaBaseURL, "model", cfg.Model.Name)

	return &OllamaClient{
		client:      api.NewClient(baseURL, httpClient),
		model:       cfg.Model.Name,
		temperature: cfg.Model.Temperature,
		maxTokens:   cfg.Model.MaxOutputTokens,
	}, nil
}

func (c *OllamaClient) Model() string {
	return c.model
}

func (c *OllamaClient) Close() error {
	return nil
}

// SendStep performs one chat round-trip, converting between the genai
// history format and Ollama messages.
func (c *OllamaClient) SendStep(ctx context.Context, req Request, handler *StreamHandler) (*Step, error) {
	chatReq := &api.ChatRequest{
		Model:    c.model,
		Messages: c.convertHistory(req.System, req.History),
		Stream:   Ptr(true),
		Options: map[string]interface{}{
			"num_predict": c.maxTokens,
		},
	}
	if c.temperature > 0 {
		chatReq.Options["temperature"] = c.temperature
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = convertTools(req.Tools)
	}

	var (
		text strings.Builder
		step Step
	)
	callIndex := 0

	err := c.client.Chat(ctx, chatReq, func(resp api.ChatResponse) error {
		if resp.Message.Content != "" {
			text.WriteString(resp.Message.Content)
			if handler != nil && handler.OnText != nil {
				handler.OnText(resp.Message.Content)
			}
		}
		for _, tc := range resp.Message.ToolCalls {
			id := tc.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", callIndex)
			}
			callIndex++
			step.ToolCalls = append(step.ToolCalls, ToolCall{
				ID:   id,
				Name: tc.Function.Name,
				Args: tc.Function.Arguments.ToMap(),
			})
		}
		if resp.Done {
			step.InputTokens = resp.PromptEvalCount
			step.OutputTokens = resp.EvalCount
		}
		return nil
	})
	if err != nil {
		return nil, wrapProviderError(err)
	}

	step.Text = text.String()
	return &step, nil
}

// convertHistory maps genai content into Ollama chat messages.
func (c *OllamaClient) convertHistory(system string, history []*genai.Content) []api.Message {
	messages := make([]api.Message, 0, len(history)+1)
	if system != "" {
		messages = append(messages, api.Message{Role: "system", Content: system})
	}

	for _, content := range history {
		role := "user"
		if content.Role == string(genai.RoleModel) {
			role = "assistant"
		}

		var textParts []string
		var toolCalls []api.ToolCall
		for _, part := range content.Parts {
			switch {
			case part.FunctionCall != nil:
				args := api.NewToolCallFunctionArguments()
				for k, v := range part.FunctionCall.Args {
					args.Set(k, v)
				}
				toolCalls = append(toolCalls, api.ToolCall{
					Function: api.ToolCallFunction{
						Name:      part.FunctionCall.Name,
						Arguments: args,
					},
				})
			case part.FunctionResponse != nil:
				payload, _ := json.Marshal(part.FunctionResponse.Response)
				messages = append(messages, api.Message{
					Role:    "tool",
					Content: string(payload),
				})
			case part.Text != "":
				textParts = append(textParts, part.Text)
			}
		}

		if len(textParts) > 0 || len(toolCalls) > 0 {
			messages = append(messages, api.Message{
				Role:      role,
				Content:   strings.Join(textParts, "\n"),
				ToolCalls: toolCalls,
			})
		}
	}
	return messages
}

// convertTools maps genai declarations into Ollama tool definitions.
func convertTools(decls []*genai.FunctionDeclaration) []api.Tool {
	tools := make([]api.Tool, 0, len(decls))
	for _, decl := range decls {
		params := api.ToolFunctionParameters{
			Type:       "object",
			Properties: api.NewToolPropertiesMap(),
		}
		if decl.Parameters != nil {
			params.Required = decl.Parameters.Required
			for name, schema := range decl.Parameters.Properties {
				prop := api.ToolProperty{Description: schema.Description}
				if schema.Type != "" {
					prop.Type = api.PropertyType{strings.ToLower(string(schema.Type))}
				}
				params.Properties.Set(name, prop)
			}
		}
		tools = append(tools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        decl.Name,
				Description: decl.Description,
				Parameters:  params,
			},
		})
	}
	return tools
}
