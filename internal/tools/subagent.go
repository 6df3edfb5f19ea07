package tools

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"raven/internal/errs"
)

// SubAgentTool delegates a scoped objective to an isolated agent run. The
// delegate gets its own conversation, a read-mostly tool subset and a
// tighter step budget; its failure always comes back as data, never as an
// error from this tool.
type SubAgentTool struct {
	runner SubAgentRunner
}

// NewSubAgentTool creates a SubAgentTool backed by the given runner.
func NewSubAgentTool(runner SubAgentRunner) *SubAgentTool {
	return &SubAgentTool{runner: runner}
}

func (t *SubAgentTool) Name() string {
	return "sub_agent"
}

func (t *SubAgentTool) Description() string {
	return `Delegates a self-contained objective to an isolated sub-agent that runs its own tool loop and reports back.

PARAMETERS:
- objective (required): A complete, self-contained task description
- context (optional): List of free-text notes the sub-agent should know

USE WHEN:
- A sub-task needs many tool calls but only its conclusion matters
- Exploring one branch of an investigation without polluting the main conversation

LIMITS:
- Sub-agents cannot delegate further or modify files
- The sub-agent sees only the objective and context you pass, nothing else`
}

func (t *SubAgentTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"objective": {
					Type:        genai.TypeString,
					Description: "The self-contained task for the sub-agent to accomplish",
				},
				"context": {
					Type:        genai.TypeArray,
					Description: "Free-text notes providing background for the objective",
					Items:       &genai.Schema{Type: genai.TypeString},
				},
			},
			Required: []string{"objective"},
		},
	}
}

func (t *SubAgentTool) Validate(args map[string]any) error {
	objective, err := GetString(args, "objective")
	if err != nil {
		return err
	}
	if strings.TrimSpace(objective) == "" {
		return errs.New("objective must not be empty", errs.CategoryValidation, errs.CodeInvalidInput)
	}
	if _, err := GetStringSlice(args, "context"); err != nil {
		return err
	}
	return nil
}

func (t *SubAgentTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	objective, _ := GetString(args, "objective")
	notes, _ := GetStringSlice(args, "context")

	task := objective
	if len(notes) > 0 {
		task = fmt.Sprintf("%s\n\nContext:\n- %s", objective, strings.Join(notes, "\n- "))
	}

	outcome, err := t.runner.RunSubAgent(ctx, task, SubAgentOptions{Label: objective})
	if err != nil {
		// The runner contract says outcomes are total; a transport-level
		// error still becomes a data value for the model.
		outcome = SubAgentOutcome{Success: false, Error: err.Error()}
	}

	data := map[string]any{
		"objective":  objective,
		"completed":  outcome.Success,
		"tool_calls": outcome.Steps,
	}

	if !outcome.Success {
		data["error"] = outcome.Error
		return ToolResult{
			Content: fmt.Sprintf("Sub-agent did not complete the objective: %s", outcome.Error),
			Data:    data,
			Success: true, // the delegation itself worked; failure is in the payload
		}, nil
	}

	return NewSuccessResultWithData(outcome.Result, data), nil
}
