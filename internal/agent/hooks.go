package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"raven/internal/logging"
	"raven/internal/tools"
)

// DelegateResult is the callback payload a delegate posts when it finishes.
// It mirrors the in-process delegation contract.
type DelegateResult struct {
	Objective string `json:"objective"`
	Result    string `json:"result"`
	ToolCalls int    `json:"tool_calls"`
	Completed bool   `json:"completed"`
	Error     string `json:"error,omitempty"`
}

type hookState struct {
	index    int
	resolved bool
	result   DelegateResult
}

// HookRegistry implements the durable delegation handshake: the parent
// registers a token per delegate, suspends on WaitAll, and each delegate
// posts its result back to the callback endpoint keyed by that token.
type HookRegistry struct {
	mu      sync.Mutex
	hooks   map[string]*hookState
	arrived chan struct{}
}

// NewHookRegistry creates an empty hook registry.
func NewHookRegistry() *HookRegistry {
	return &HookRegistry{
		hooks:   make(map[string]*hookState),
		arrived: make(chan struct{}, 1),
	}
}

// Register creates a hook for the delegate at the given task index and
// returns its opaque token.
func (h *HookRegistry) Register(index int) string {
	token := uuid.NewString()

	h.mu.Lock()
	h.hooks[token] = &hookState{index: index}
	h.mu.Unlock()
	return token
}

// Resolve records a delegate's result. Unknown tokens and double
// resolution are errors.
func (h *HookRegistry) Resolve(token string, result DelegateResult) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	hook, ok := h.hooks[token]
	if !ok {
		return fmt.Errorf("unknown callback token")
	}
	if hook.resolved {
		return fmt.Errorf("callback token already resolved")
	}
	hook.resolved = true
	hook.result = result

	select {
	case h.arrived <- struct{}{}:
	default:
	}
	return nil
}

// Handler returns the HTTP handler for the callback endpoint:
// POST <base>?token=<token> with a DelegateResult JSON body.
func (h *HookRegistry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusBadRequest)
			return
		}

		var result DelegateResult
		if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
			http.Error(w, "invalid body", http.StatusBadRequest)
			return
		}
		if err := h.Resolve(token, result); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

// pending reports how many hooks are still unresolved.
func (h *HookRegistry) pending() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	n := 0
	for _, hook := range h.hooks {
		if !hook.resolved {
			n++
		}
	}
	return n
}

// WaitAll blocks until every registered hook has resolved, then returns
// the results ordered by registration index. A zero timeout waits
// indefinitely; waiting without a timeout is a deliberate caller choice,
// no implicit default is applied. If the timeout fires first the whole
// wait fails.
func (h *HookRegistry) WaitAll(ctx context.Context, timeout time.Duration) ([]DelegateResult, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for h.pending() > 0 {
		select {
		case <-h.arrived:
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, fmt.Errorf("timed out waiting for %d delegate(s)", h.pending())
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	results := make([]DelegateResult, len(h.hooks))
	for _, hook := range h.hooks {
		if hook.index >= 0 && hook.index < len(results) {
			results[hook.index] = hook.result
		}
	}
	return results, nil
}

// RunDelegates executes objectives as concurrent durable delegates. Each
// delegate runs a sub-agent and posts its result to callbackURL; the call
// returns once all callbacks have arrived, ordered by objective index.
func (r *Runner) RunDelegates(ctx context.Context, objectives []string, hooks *HookRegistry, callbackURL string, timeout time.Duration) ([]DelegateResult, error) {
	httpClient := &http.Client{Timeout: 10 * time.Second}

	for i, objective := range objectives {
		token := hooks.Register(i)

		go func(objective, token string) {
			outcome, _ := r.RunSubAgent(ctx, objective, tools.SubAgentOptions{Label: objective})

			result := DelegateResult{
				Objective: objective,
				Result:    outcome.Result,
				ToolCalls: outcome.Steps,
				Completed: outcome.Success,
				Error:     outcome.Error,
			}

			body, err := json.Marshal(result)
			if err != nil {
				logging.Error("failed to encode delegate result", "error", err)
				return
			}
			resp, err := httpClient.Post(callbackURL+"?token="+token, "application/json", bytes.NewReader(body))
			if err != nil {
				logging.Error("delegate callback failed", "objective", objective, "error", err)
				return
			}
			defer resp.Body.Close()
			if resp.StatusCode >= 300 {
				// The hook stays unresolved; the parent's wait will time
				// out if a timeout was configured.
				logging.Error("delegate callback rejected", "objective", objective, "status", resp.StatusCode)
			}
		}(objective, token)
	}

	return hooks.WaitAll(ctx, timeout)
}
