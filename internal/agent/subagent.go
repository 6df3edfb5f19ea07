package agent

import (
	"context"
	"fmt"
	"time"

	"raven/internal/client"
	"raven/internal/config"
	"raven/internal/logging"
	"raven/internal/tools"
)

const subAgentSystemPrompt = `You are a focused sub-agent working on one delegated objective. Use the available tools to accomplish it, then answer with a concise report of what you found or did. You cannot delegate further or modify files. Do not ask questions; the objective is all the context you will get.`

// restrictedTools are removed from every delegate's toolkit: no recursive
// delegation, and delegates stay read-mostly.
var restrictedTools = []string{"sub_agent", "write", "edit"}

// Runner launches delegated sub-agent runs over the parent's resources. It
// implements tools.SubAgentRunner.
type Runner struct {
	client   client.Client
	registry *tools.Registry
	tracker  *Tracker
	bus      *Bus
	cfg      *config.Config
}

// NewRunner creates a sub-agent runner sharing the parent's client, tool
// registry, tracker and event bus.
func NewRunner(c client.Client, registry *tools.Registry, tracker *Tracker, bus *Bus, cfg *config.Config) *Runner {
	return &Runner{
		client:   c,
		registry: registry,
		tracker:  tracker,
		bus:      bus,
		cfg:      cfg,
	}
}

// RunSubAgent executes a scoped task in a fresh step loop and always
// returns a total outcome: internal failures, panics included, become data.
func (r *Runner) RunSubAgent(ctx context.Context, task string, opts tools.SubAgentOptions) (outcome tools.SubAgentOutcome, err error) {
	label := opts.Label
	if label == "" {
		label = task
	}

	sessionID := r.tracker.CreateSession(label)
	start := time.Now()
	outcome.ID = sessionID

	defer func() {
		if rec := recover(); rec != nil {
			logging.Error("sub-agent panicked", "session", sessionID, "panic", rec)
			outcome.Success = false
			outcome.Error = fmt.Sprintf("internal failure: %v", rec)
		}
		outcome.Duration = time.Since(start)
		r.tracker.CompleteSession(sessionID, outcome.Success)
		err = nil // delegation failure is a value, never an error
	}()

	registry := r.registry.Without(restrictedTools...)
	if len(opts.AllowedTools) > 0 {
		registry = r.registry.Subset(opts.AllowedTools).Without(restrictedTools...)
	}

	sub := New(r.client, registry, r.tracker, r.bus, r.cfg)
	sub.sessionID = sessionID
	sub.SetSystemPrompt(subAgentSystemPrompt)

	budget := r.cfg.Agent.SubAgentRounds
	if opts.MaxSteps > 0 {
		budget = opts.MaxSteps
	}
	sub.SetMaxToolRounds(budget)

	res := sub.Run(ctx, task)

	outcome.Result = res.Result
	outcome.Steps = res.ToolCalls
	outcome.Success = res.Completed && res.Error == ""
	outcome.Error = res.Error
	if !res.Completed && outcome.Error == "" {
		outcome.Error = "sub-agent did not complete"
	}
	return outcome, nil
}
