package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"google.golang.org/genai"

	"raven/internal/errs"
	"raven/internal/logging"
	"raven/internal/retry"
)

// Registry manages the available tools and dispatches calls to them.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool

	retryCfg retry.Config
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:    make(map[string]Tool),
		retryCfg: retry.DefaultConfig(),
	}
}

// SetRetryConfig overrides the retry settings applied to retryable tools.
func (r *Registry) SetRetryConfig(cfg retry.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retryCfg = cfg
}

// Register adds a tool to the registry. Registering two tools under the same
// name is a programming error and panics: a silently shadowed tool would
// execute the wrong code on behalf of the model.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		panic(fmt.Sprintf("tools: duplicate registration of %q", name))
	}
	r.tools[name] = tool
	logging.Debug("registered tool", "name", name)
}

// Get returns the tool with the given name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Declarations returns the function declarations for all registered tools,
// in sorted name order so the model sees a stable toolkit.
func (r *Registry) Declarations() []*genai.FunctionDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	decls := make([]*genai.FunctionDeclaration, 0, len(names))
	for _, name := range names {
		if d := r.tools[name].Declaration(); d != nil {
			decls = append(decls, d)
		}
	}
	return decls
}

// Subset returns a new registry containing only the named tools. Unknown
// names are ignored.
func (r *Registry) Subset(names []string) *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub := NewRegistry()
	sub.retryCfg = r.retryCfg
	for _, name := range names {
		if tool, ok := r.tools[name]; ok {
			sub.tools[name] = tool
		}
	}
	return sub
}

// Without returns a new registry excluding the named tools.
func (r *Registry) Without(names ...string) *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	excluded := make(map[string]bool, len(names))
	for _, name := range names {
		excluded[name] = true
	}

	sub := NewRegistry()
	sub.retryCfg = r.retryCfg
	for name, tool := range r.tools {
		if !excluded[name] {
			sub.tools[name] = tool
		}
	}
	return sub
}

// Dispatch validates and executes a tool call. Unknown tools and argument
// validation failures come back as failed results, never panics: the model
// must always receive something it can react to. Tools implementing
// Retryable are retried on the failures they nominate.
func (r *Registry) Dispatch(ctx context.Context, name string, args map[string]any) ToolResult {
	tool, ok := r.Get(name)
	if !ok {
		err := errs.New(
			fmt.Sprintf("unknown tool: %s", name),
			errs.CategoryValidation, errs.CodeInvalidInput,
			errs.WithSuggestions("check the tool name against the advertised toolkit"),
		)
		return resultFromError(err)
	}

	if err := tool.Validate(args); err != nil {
		te := errs.Categorize(err)
		if te.Category == errs.CategoryUnknown {
			te = errs.New(err.Error(), errs.CategoryValidation, errs.CodeInvalidInput, errs.WithCause(err))
		}
		logging.Warn("tool validation failed", "tool", name, "error", err)
		return resultFromError(te)
	}

	r.mu.RLock()
	cfg := r.retryCfg
	r.mu.RUnlock()

	op := func() (ToolResult, error) {
		return tool.Execute(ctx, args)
	}

	var result ToolResult
	var err error
	if rt, ok := tool.(Retryable); ok {
		cfg.RetryOn = rt.RetryOn
		result, err = retry.Do(ctx, cfg, op)
	} else {
		result, err = op()
	}

	if err != nil {
		logging.Error("tool execution failed", "tool", name, "error", err)
		return resultFromError(errs.Categorize(err))
	}
	return result
}

func resultFromError(err error) ToolResult {
	payload := errs.ToPayload(err)
	result := NewErrorResult(fmt.Sprintf("%v", payload["error"]))
	delete(payload, "success")
	delete(payload, "error")
	result.Data = payload
	return result
}
