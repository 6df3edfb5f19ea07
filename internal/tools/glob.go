package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"google.golang.org/genai"

	"raven/internal/errs"
	"raven/internal/retry"
)

// MaxGlobResults caps the number of files returned by a glob call.
const MaxGlobResults = 50

// GlobTool finds files matching a glob pattern, newest first.
type GlobTool struct {
	workDir string
}

// NewGlobTool creates a GlobTool rooted at workDir.
func NewGlobTool(workDir string) *GlobTool {
	return &GlobTool{workDir: workDir}
}

func (t *GlobTool) Name() string {
	return "glob"
}

func (t *GlobTool) Description() string {
	return `Finds files matching a glob pattern, sorted by modification time (newest first).

PARAMETERS:
- pattern (required): Glob pattern, ** is supported (e.g. "**/*.go", "src/**/*.py")
- path (optional): Directory to search in (default: working directory)

BEHAVIOR:
- Results are capped at 50 files; the result says when the cap was hit
- Use grep to search file contents instead of names`
}

func (t *GlobTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"pattern": {
					Type:        genai.TypeString,
					Description: "The glob pattern to match files against",
				},
				"path": {
					Type:        genai.TypeString,
					Description: "The directory to search in. Optional, defaults to the working directory.",
				},
			},
			Required: []string{"pattern"},
		},
	}
}

func (t *GlobTool) Validate(args map[string]any) error {
	pattern, err := GetString(args, "pattern")
	if err != nil {
		return err
	}
	if strings.TrimSpace(pattern) == "" {
		return errs.New("pattern must not be empty", errs.CategoryValidation, errs.CodeInvalidInput)
	}
	if !doublestar.ValidatePattern(pattern) {
		return errs.New(
			fmt.Sprintf("invalid glob pattern: %s", pattern),
			errs.CategoryValidation, errs.CodeInvalidInput,
		)
	}
	return nil
}

// RetryOn opts glob into the resilience layer for transient filesystem
// flakiness.
func (t *GlobTool) RetryOn(err error) bool {
	return retry.IsTransientError(err)
}

type globMatch struct {
	path    string
	modTime time.Time
}

func (t *GlobTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	pattern, _ := GetString(args, "pattern")
	searchDir := GetStringDefault(args, "path", t.workDir)
	if searchDir == "" {
		searchDir = "."
	}

	if info, err := os.Stat(searchDir); err != nil || !info.IsDir() {
		return ToolResult{}, errs.New(
			fmt.Sprintf("search directory not found: %s", searchDir),
			errs.CategoryFilesystem, errs.CodeFileNotFound,
		)
	}

	fsys := os.DirFS(searchDir)
	paths, err := doublestar.Glob(fsys, pattern)
	if err != nil {
		return ToolResult{}, errs.Categorize(err)
	}

	matches := make([]globMatch, 0, len(paths))
	for _, p := range paths {
		if ctx.Err() != nil {
			return ToolResult{}, ctx.Err()
		}
		full := filepath.Join(searchDir, p)
		info, err := os.Stat(full)
		if err != nil || info.IsDir() {
			continue
		}
		matches = append(matches, globMatch{path: full, modTime: info.ModTime()})
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].modTime.After(matches[j].modTime)
	})

	total := len(matches)
	truncated := total > MaxGlobResults
	if truncated {
		matches = matches[:MaxGlobResults]
	}

	if len(matches) == 0 {
		return NewSuccessResultWithData(
			fmt.Sprintf("No files matching %q in %s", pattern, searchDir),
			map[string]any{"count": 0, "truncated": false},
		), nil
	}

	var b strings.Builder
	for _, m := range matches {
		b.WriteString(m.path)
		b.WriteString("\n")
	}
	if truncated {
		b.WriteString(fmt.Sprintf("... (showing %d of %d matches)\n", MaxGlobResults, total))
	}

	return NewSuccessResultWithData(b.String(), map[string]any{
		"count":     len(matches),
		"truncated": truncated,
	}), nil
}
