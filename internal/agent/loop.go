package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"

	"raven/internal/client"
	"raven/internal/config"
	"raven/internal/logging"
	"raven/internal/retry"
	"raven/internal/tools"
)

// NoOutputSentinel is returned when a run terminates without generating
// any text.
const NoOutputSentinel = "(no output generated)"

// maxRepeatedCalls is how many consecutive identical tool calls are allowed
// before the loop intervenes instead of dispatching.
const maxRepeatedCalls = 3

// Result is the terminal output of a run. A failed or aborted run still
// produces a well-formed Result.
type Result struct {
	Result    string
	ToolCalls int
	Completed bool
	Error     string
}

// Agent drives the step loop: one model round-trip per iteration, tool
// fan-out in between, until text is produced or the round budget runs out.
type Agent struct {
	client   client.Client
	registry *tools.Registry
	tracker  *Tracker
	bus      *Bus

	system        string
	maxToolRounds int
	maxParallel   int
	retryCfg      retry.Config

	// sessionID is set for delegated runs so the tracker records their
	// timeline. Empty for the top-level agent.
	sessionID string

	mu      sync.Mutex
	history []*genai.Content
}

// New creates an agent over the given client and tool registry.
func New(c client.Client, registry *tools.Registry, tracker *Tracker, bus *Bus, cfg *config.Config) *Agent {
	if tracker == nil {
		tracker = NewTracker()
	}
	if bus == nil {
		bus = NewBus()
	}

	retryCfg := retry.DefaultConfig()
	if cfg.API.Retry.MaxRetries > 0 {
		retryCfg.MaxRetries = cfg.API.Retry.MaxRetries
	}
	if cfg.API.Retry.RetryDelay > 0 {
		retryCfg.InitialDelay = cfg.API.Retry.RetryDelay
	}
	if cfg.API.Retry.MaxDelay > 0 {
		retryCfg.MaxDelay = cfg.API.Retry.MaxDelay
	}

	maxParallel := cfg.Agent.MaxParallelTools
	if maxParallel <= 0 {
		maxParallel = 1
	}
	maxRounds := cfg.Agent.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = 30
	}

	return &Agent{
		client:        c,
		registry:      registry,
		tracker:       tracker,
		bus:           bus,
		maxToolRounds: maxRounds,
		maxParallel:   maxParallel,
		retryCfg:      retryCfg,
	}
}

// SetSystemPrompt sets the system instruction for all rounds.
func (a *Agent) SetSystemPrompt(prompt string) {
	a.system = prompt
}

// SetMaxToolRounds overrides the round budget.
func (a *Agent) SetMaxToolRounds(n int) {
	if n > 0 {
		a.maxToolRounds = n
	}
}

// Events returns the agent's event bus.
func (a *Agent) Events() *Bus {
	return a.bus
}

// Tracker returns the progress tracker shared with delegated runs.
func (a *Agent) Tracker() *Tracker {
	return a.tracker
}

// History returns a snapshot of the conversation history.
func (a *Agent) History() []*genai.Content {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*genai.Content, len(a.history))
	copy(out, a.history)
	return out
}

// Run executes the step loop for one user input. It always returns a
// well-formed Result; failures are reported in Result.Error.
func (a *Agent) Run(ctx context.Context, input string) Result {
	a.mu.Lock()
	a.history = append(a.history, genai.NewContentFromText(input, genai.RoleUser))
	a.mu.Unlock()

	var answer strings.Builder
	toolCallCount := 0

	var lastCallSig string
	repeatCount := 0

	// Rounds 0..maxToolRounds-1 may call tools; the final round runs with
	// tools disabled so the model must answer in text. Termination is
	// therefore bounded at maxToolRounds+1 rounds.
	for round := 0; round <= a.maxToolRounds; round++ {
		if err := ctx.Err(); err != nil {
			return a.finish(answer.String(), toolCallCount, false, "run aborted")
		}

		var decls []*genai.FunctionDeclaration
		if round < a.maxToolRounds {
			decls = a.registry.Declarations()
		} else {
			logging.Info("tool budget exhausted, forcing final answer", "round", round)
		}

		step, err := a.callModel(ctx, decls)
		if err != nil {
			if ctx.Err() != nil {
				return a.finish(answer.String(), toolCallCount, false, "run aborted")
			}
			return a.finish(answer.String(), toolCallCount, false, fmt.Sprintf("model call failed: %v", err))
		}

		a.appendModelStep(step)
		if step.Text != "" {
			answer.WriteString(step.Text)
		}

		// Tool calls requested in the same step as text are still
		// executed: the model asked for them before the stop condition
		// is evaluated, and their results land in history for any
		// follow-up turn.
		if len(step.ToolCalls) > 0 && round < a.maxToolRounds {
			for i := range step.ToolCalls {
				sig := callSignature(step.ToolCalls[i])
				if sig == lastCallSig {
					repeatCount++
				} else {
					lastCallSig = sig
					repeatCount = 1
				}
			}

			parts := a.executeTools(ctx, step.ToolCalls, repeatCount >= maxRepeatedCalls)
			toolCallCount += len(step.ToolCalls)

			a.mu.Lock()
			a.history = append(a.history, &genai.Content{Role: string(genai.RoleUser), Parts: parts})
			a.mu.Unlock()
		}

		// Stop condition: any accumulated non-empty text ends the run.
		if answer.Len() > 0 {
			return a.finish(answer.String(), toolCallCount, true, "")
		}
		if len(step.ToolCalls) == 0 && round >= a.maxToolRounds {
			break
		}
	}

	return a.finish(answer.String(), toolCallCount, true, "")
}

// callModel performs one model round-trip, retried for transient provider
// failures. Text and reasoning deltas flow onto the event bus as they
// arrive.
func (a *Agent) callModel(ctx context.Context, decls []*genai.FunctionDeclaration) (*client.Step, error) {
	handler := &client.StreamHandler{
		OnText: func(delta string) {
			a.bus.Publish(Event{Kind: EventText, Text: delta, SessionID: a.sessionID})
		},
		OnReasoning: func(delta string) {
			a.bus.Publish(Event{Kind: EventReasoning, Text: delta, SessionID: a.sessionID})
		},
	}

	cfg := a.retryCfg
	cfg.RetryOn = client.IsRetryableError

	return retry.Do(ctx, cfg, func() (*client.Step, error) {
		return a.client.SendStep(ctx, client.Request{
			System:  a.system,
			History: a.History(),
			Tools:   decls,
		}, handler)
	})
}

// appendModelStep records the model's step in history.
func (a *Agent) appendModelStep(step *client.Step) {
	var parts []*genai.Part
	if step.Text != "" {
		parts = append(parts, &genai.Part{Text: step.Text})
	}
	for _, call := range step.ToolCalls {
		parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
			ID:   call.ID,
			Name: call.Name,
			Args: call.Args,
		}})
	}
	if len(parts) == 0 {
		return
	}

	a.mu.Lock()
	a.history = append(a.history, &genai.Content{Role: string(genai.RoleModel), Parts: parts})
	a.mu.Unlock()
}

// executeTools dispatches a step's tool calls concurrently and returns
// their response parts in the original call order. The model associates
// calls with results positionally, so completion order must not leak into
// history order.
func (a *Agent) executeTools(ctx context.Context, calls []client.ToolCall, looping bool) []*genai.Part {
	results := make([]tools.ToolResult, len(calls))

	sem := make(chan struct{}, a.maxParallel)
	var wg sync.WaitGroup

	for i, call := range calls {
		a.bus.Publish(Event{
			Kind:       EventToolCall,
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Args:       call.Args,
			SessionID:  a.sessionID,
		})

		actionID := ""
		if a.sessionID != "" {
			actionID = a.tracker.AddAction(a.sessionID, call.Name, call.Args)
		}

		wg.Add(1)
		go func(idx int, call client.ToolCall, actionID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			var result tools.ToolResult
			if looping {
				result = tools.NewErrorResult(
					"this exact tool call has been repeated several times in a row; change approach instead of reissuing it")
			} else if err := ctx.Err(); err != nil {
				result = tools.NewErrorResult("tool call cancelled")
			} else {
				result = a.registry.Dispatch(ctx, call.Name, call.Args)
			}
			results[idx] = result

			if a.sessionID != "" && actionID != "" {
				a.tracker.CompleteAction(a.sessionID, actionID, result.Success)
			}
		}(i, call, actionID)
	}
	wg.Wait()

	parts := make([]*genai.Part, len(calls))
	for i, call := range calls {
		result := results[i]
		a.bus.Publish(Event{
			Kind:       EventToolResult,
			ToolCallID: call.ID,
			ToolName:   call.Name,
			Result:     &result,
			SessionID:  a.sessionID,
		})
		parts[i] = &genai.Part{FunctionResponse: &genai.FunctionResponse{
			ID:       call.ID,
			Name:     call.Name,
			Response: result.ToMap(),
		}}
	}
	return parts
}

func (a *Agent) finish(answer string, toolCalls int, completed bool, errMsg string) Result {
	if answer == "" {
		answer = NoOutputSentinel
	}
	result := Result{
		Result:    answer,
		ToolCalls: toolCalls,
		Completed: completed,
		Error:     errMsg,
	}

	var resultCopy *tools.ToolResult
	if errMsg != "" {
		resultCopy = &tools.ToolResult{Error: errMsg, Success: false}
	}
	a.bus.Publish(Event{Kind: EventRunDone, Text: answer, Result: resultCopy, SessionID: a.sessionID})
	logging.Info("run finished", "completed", completed, "tool_calls", toolCalls, "error", errMsg)
	return result
}

// callSignature canonicalizes a tool call for repeat detection.
func callSignature(call client.ToolCall) string {
	args, _ := json.Marshal(call.Args)
	return call.Name + ":" + string(args)
}
