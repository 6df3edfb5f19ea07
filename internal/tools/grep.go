package tools

import (
	"bufio"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"google.golang.org/genai"

	"raven/internal/errs"
	"raven/internal/retry"
)

const (
	// MaxGrepResults caps the number of matching lines returned.
	MaxGrepResults = 50
	// maxGrepLineLength caps a single displayed match line.
	maxGrepLineLength = 250
)

// skipDirs are never descended into during a content search.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	"__pycache__":  true,
	".venv":        true,
}

// GrepTool searches file contents with a regular expression.
type GrepTool struct {
	workDir string
}

// NewGrepTool creates a GrepTool rooted at workDir.
func NewGrepTool(workDir string) *GrepTool {
	return &GrepTool{workDir: workDir}
}

func (t *GrepTool) Name() string {
	return "grep"
}

func (t *GrepTool) Description() string {
	return `Searches file contents for a regular expression.

PARAMETERS:
- pattern (required): Go-syntax regular expression
- path (optional): Directory to search in (default: working directory)
- include (optional): Filename glob filter (e.g. "*.go", "*.{c,h}")
- case_insensitive (optional): Case-insensitive matching (default: false)

BEHAVIOR:
- Matches are reported as file:line:text, capped at 50 with a truncation note
- Long match lines are shortened for display
- Binary files and common vendored directories are skipped`
}

func (t *GrepTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"pattern": {
					Type:        genai.TypeString,
					Description: "The regular expression to search for",
				},
				"path": {
					Type:        genai.TypeString,
					Description: "The directory to search in. Optional, defaults to the working directory.",
				},
				"include": {
					Type:        genai.TypeString,
					Description: "Filename glob filter, e.g. \"*.go\". Optional.",
				},
				"case_insensitive": {
					Type:        genai.TypeBoolean,
					Description: "Match case-insensitively. Optional, defaults to false.",
				},
			},
			Required: []string{"pattern"},
		},
	}
}

func (t *GrepTool) Validate(args map[string]any) error {
	pattern, err := GetString(args, "pattern")
	if err != nil {
		return err
	}
	if pattern == "" {
		return errs.New("pattern must not be empty", errs.CategoryValidation, errs.CodeInvalidInput)
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return errs.New(
			fmt.Sprintf("invalid regular expression: %v", err),
			errs.CategoryValidation, errs.CodeRegexError,
			errs.WithCause(err),
			errs.WithSuggestions("escape regex metacharacters or simplify the pattern"),
		)
	}
	if include := GetStringDefault(args, "include", ""); include != "" {
		if !doublestar.ValidatePattern(include) {
			return errs.New(
				fmt.Sprintf("invalid include glob: %s", include),
				errs.CategoryValidation, errs.CodeInvalidInput,
			)
		}
	}
	return nil
}

// RetryOn opts grep into the resilience layer for transient filesystem
// flakiness.
func (t *GrepTool) RetryOn(err error) bool {
	return retry.IsTransientError(err)
}

func (t *GrepTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	pattern, _ := GetString(args, "pattern")
	searchDir := GetStringDefault(args, "path", t.workDir)
	include := GetStringDefault(args, "include", "")
	caseInsensitive := GetBoolDefault(args, "case_insensitive", false)

	if searchDir == "" {
		searchDir = "."
	}
	if caseInsensitive {
		pattern = "(?i)" + pattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return ToolResult{}, errs.New(
			fmt.Sprintf("invalid regular expression: %v", err),
			errs.CategoryValidation, errs.CodeRegexError,
			errs.WithCause(err),
		)
	}

	if info, err := os.Stat(searchDir); err != nil || !info.IsDir() {
		return ToolResult{}, errs.New(
			fmt.Sprintf("search directory not found: %s", searchDir),
			errs.CategoryFilesystem, errs.CodeFileNotFound,
		)
	}

	var b strings.Builder
	matchCount := 0
	truncated := false

	walkErr := filepath.WalkDir(searchDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped, not fatal
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if include != "" {
			if ok, _ := doublestar.Match(include, d.Name()); !ok {
				return nil
			}
		}
		if truncated {
			return filepath.SkipAll
		}

		n, hitCap := grepFile(path, re, MaxGrepResults-matchCount, &b)
		matchCount += n
		if hitCap {
			truncated = true
		}
		return nil
	})
	if walkErr != nil && walkErr != filepath.SkipAll {
		return ToolResult{}, errs.Categorize(walkErr)
	}

	if matchCount == 0 {
		return NewSuccessResultWithData(
			fmt.Sprintf("No matches for %q in %s", pattern, searchDir),
			map[string]any{"matches": 0, "truncated": false},
		), nil
	}

	if truncated {
		b.WriteString(fmt.Sprintf("... (stopped at %d matches)\n", MaxGrepResults))
	}
	return NewSuccessResultWithData(b.String(), map[string]any{
		"matches":   matchCount,
		"truncated": truncated,
	}), nil
}

// grepFile scans one file, appending up to budget matches. Returns the
// number of matches written and whether the budget ran out.
func grepFile(path string, re *regexp.Regexp, budget int, out *strings.Builder) (int, bool) {
	if budget <= 0 {
		return 0, true
	}

	file, err := os.Open(path)
	if err != nil {
		return 0, false
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	count := 0
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if strings.ContainsRune(line, 0) {
			return count, false // binary file
		}
		if !re.MatchString(line) {
			continue
		}
		if len(line) > maxGrepLineLength {
			line = line[:maxGrepLineLength] + "…"
		}
		fmt.Fprintf(out, "%s:%d:%s\n", path, lineNum, line)
		count++
		if count >= budget {
			return count, true
		}
	}
	return count, false
}
