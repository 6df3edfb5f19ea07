package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"google.golang.org/genai"

	"raven/internal/errs"
	"raven/internal/logging"
)

const (
	// DefaultBashTimeout is the default wall-clock timeout for commands.
	DefaultBashTimeout = 30 * time.Second
	// MaxOutputBytes is the hard cap on combined stdout+stderr.
	MaxOutputBytes = 30000
)

// SafeEnvVars is the whitelist of environment variables passed to commands.
// This prevents leaking credentials from the agent's own environment.
var SafeEnvVars = []string{
	"PATH",
	"HOME",
	"USER",
	"SHELL",
	"TERM",
	"LANG",
	"LC_ALL",
	"TMPDIR",
	"TMP",
	"TEMP",
	"XDG_CONFIG_HOME",
	"XDG_DATA_HOME",
	"XDG_CACHE_HOME",
	"PYTHONPATH",
	"VIRTUAL_ENV",
	"GOPATH",
	"GOROOT",
}

// BashSession maintains persistent state across command invocations.
// It tracks the working directory so sequential commands behave as if they
// run in the same shell session.
type BashSession struct {
	workDir string
	mu      sync.Mutex
}

// NewBashSession creates a session rooted at the given working directory.
func NewBashSession(workDir string) *BashSession {
	return &BashSession{workDir: workDir}
}

// WorkDir returns the current working directory of the session.
func (s *BashSession) WorkDir() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.workDir
}

// SetWorkDir updates the working directory of the session.
func (s *BashSession) SetWorkDir(dir string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workDir = dir
}

// BashTool executes shell commands with a hard timeout and bounded output.
type BashTool struct {
	session *BashSession
	timeout time.Duration
	maxOut  int
}

// NewBashTool creates a BashTool rooted at workDir.
func NewBashTool(workDir string) *BashTool {
	return &BashTool{
		session: NewBashSession(workDir),
		timeout: DefaultBashTimeout,
		maxOut:  MaxOutputBytes,
	}
}

// SetTimeout overrides the command timeout.
func (t *BashTool) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		t.timeout = timeout
	}
}

// SetMaxOutputBytes overrides the output cap.
func (t *BashTool) SetMaxOutputBytes(n int) {
	if n > 0 {
		t.maxOut = n
	}
}

// Session exposes the underlying session for status display.
func (t *BashTool) Session() *BashSession {
	return t.session
}

func (t *BashTool) Name() string {
	return "bash"
}

func (t *BashTool) Description() string {
	return `Executes a shell command and returns its output. Use for system operations, scans, running scripts, and inspecting the environment.

PARAMETERS:
- command (required): The shell command to execute
- description (optional): Brief description of what the command does

BEHAVIOR:
- Commands run under bash -c with a hard timeout (default 30s)
- stdout is returned; non-empty stderr is appended under a STDERR: marker
- A non-zero exit code is reported in the result, not as a failure of the tool
- Combined output above the byte cap fails the call; narrow the command instead
- The working directory persists across calls (cd is tracked)`
}

func (t *BashTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"command": {
					Type:        genai.TypeString,
					Description: "The shell command to execute",
				},
				"description": {
					Type:        genai.TypeString,
					Description: "A brief description of what the command does",
				},
			},
			Required: []string{"command"},
		},
	}
}

func (t *BashTool) Validate(args map[string]any) error {
	command, err := GetString(args, "command")
	if err != nil {
		return err
	}
	if strings.TrimSpace(command) == "" {
		return errs.New("command must not be empty", errs.CategoryValidation, errs.CodeInvalidInput)
	}
	return nil
}

func (t *BashTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	command, _ := GetString(args, "command")

	warnings := InspectCommand(command)
	for _, w := range warnings {
		logging.Warn("suspicious command pattern", "pattern", w)
	}

	execCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, "bash", "-c", command)
	cmd.Dir = t.session.WorkDir()
	cmd.Env = buildSafeEnv()
	setBashProcAttr(cmd)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return ToolResult{}, classifyStartError(err, command)
	}

	cmdDone := make(chan error, 1)
	go func() {
		cmdDone <- cmd.Wait()
	}()

	var runErr error
	timedOut := false
	select {
	case runErr = <-cmdDone:
	case <-execCtx.Done():
		timedOut = true
		killBashProcessGroup(cmd, 5*time.Second)
		<-cmdDone
	}

	if timedOut {
		return ToolResult{}, errs.New(
			fmt.Sprintf("command timed out after %v", t.timeout),
			errs.CategoryTimeout, errs.CodeTimeoutExceeded,
			errs.Recoverable(),
			errs.WithSuggestions(
				"break the command into smaller steps",
				"add a tighter timeout to the command itself (e.g. timeout 10s ...)",
			),
		)
	}

	exitCode := 0
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return ToolResult{}, classifyStartError(runErr, command)
		}
	}

	output := combineOutput(stdout.String(), stderr.String())
	if len(output) > t.maxOut {
		return ToolResult{}, errs.New(
			fmt.Sprintf("command output exceeded %d bytes (%d produced)", t.maxOut, len(output)),
			errs.CategoryRuntime, errs.CodeQuotaExceeded,
			errs.WithSuggestions(
				"pipe the output through head, grep or wc to narrow it",
				"redirect full output to a file and read it in pages",
			),
		)
	}
	if output == "" {
		output = "(no output)"
	}

	if exitCode == 0 {
		t.updateSessionAfterCommand(command)
	}

	data := map[string]any{"exit_code": exitCode}
	if len(warnings) > 0 {
		data["warnings"] = warnings
	}

	if exitCode != 0 {
		return ToolResult{
			Content: output,
			Data:    data,
			Error:   fmt.Sprintf("command exited with code %d", exitCode),
			Success: false,
		}, nil
	}
	return NewSuccessResultWithData(output, data), nil
}

// classifyStartError converts process launch failures into typed errors.
func classifyStartError(err error, command string) error {
	if errors.Is(err, exec.ErrNotFound) || strings.Contains(err.Error(), "executable file not found") {
		return errs.New(
			fmt.Sprintf("command not found: %s", firstWord(command)),
			errs.CategoryRuntime, errs.CodeCommandNotFound,
			errs.WithCause(err),
			errs.WithSuggestions("check the binary is installed and on PATH"),
		)
	}
	if errors.Is(err, os.ErrPermission) {
		return errs.New(
			"permission denied executing command",
			errs.CategoryPermission, errs.CodePermissionDenied,
			errs.WithCause(err),
		)
	}
	return errs.Categorize(err)
}

func firstWord(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return command
	}
	return fields[0]
}

func combineOutput(stdout, stderr string) string {
	var b strings.Builder
	b.WriteString(stdout)
	if stderr != "" {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("STDERR:\n")
		b.WriteString(stderr)
	}
	return b.String()
}

func buildSafeEnv() []string {
	env := make([]string, 0, len(SafeEnvVars))
	for _, key := range SafeEnvVars {
		if val := os.Getenv(key); val != "" {
			env = append(env, key+"="+val)
		}
	}
	hasPath := false
	for _, e := range env {
		if strings.HasPrefix(e, "PATH=") {
			hasPath = true
			break
		}
	}
	if !hasPath {
		env = append(env, "PATH=/usr/local/bin:/usr/bin:/bin")
	}
	return env
}

// updateSessionAfterCommand tracks cd so sequential commands share a
// working directory. Compound commands (cd x && ...) are skipped since the
// final directory depends on the whole chain.
func (t *BashTool) updateSessionAfterCommand(command string) {
	trimmed := strings.TrimSpace(command)

	if trimmed == "cd" || trimmed == "cd ~" {
		if home, err := os.UserHomeDir(); err == nil {
			t.session.SetWorkDir(home)
		}
		return
	}
	if !strings.HasPrefix(trimmed, "cd ") {
		return
	}

	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "cd "))
	for _, sep := range []string{"&&", "||", ";", "|"} {
		if strings.Contains(rest, sep) {
			return
		}
	}

	if (strings.HasPrefix(rest, "\"") && strings.HasSuffix(rest, "\"")) ||
		(strings.HasPrefix(rest, "'") && strings.HasSuffix(rest, "'")) {
		rest = rest[1 : len(rest)-1]
	}
	if strings.HasPrefix(rest, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			rest = home + rest[1:]
		}
	}
	if rest == "" {
		return
	}

	target := rest
	if !filepath.IsAbs(target) {
		target = filepath.Join(t.session.WorkDir(), target)
	}
	target = filepath.Clean(target)

	if info, err := os.Stat(target); err == nil && info.IsDir() {
		t.session.SetWorkDir(target)
	}
}
