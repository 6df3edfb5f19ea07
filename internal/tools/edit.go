package tools

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/sergi/go-diff/diffmatchpatch"
	"google.golang.org/genai"

	"raven/internal/errs"
)

// EditTool performs exact-substring replacement in a file. Concurrent edits
// to the same path are serialized through a FileLockMap.
type EditTool struct {
	locks *FileLockMap
}

// NewEditTool creates an EditTool using the given lock map.
func NewEditTool(locks *FileLockMap) *EditTool {
	if locks == nil {
		locks = NewFileLockMap(0)
	}
	return &EditTool{locks: locks}
}

func (t *EditTool) Name() string {
	return "edit"
}

func (t *EditTool) Description() string {
	return `Performs an exact string replacement in an existing file.

PARAMETERS:
- file_path (required): Absolute path to the file to edit
- old_string (required): The exact text to replace
- new_string (required): The replacement text (must differ from old_string)
- replace_all (optional): Replace every occurrence instead of requiring a unique match

BEHAVIOR:
- Fails if the file does not exist or old_string is not found
- Without replace_all, old_string must appear exactly once
- Concurrent edits to the same file are rejected; retry after the other finishes
- Read the file first so old_string matches exactly, including whitespace`
}

func (t *EditTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"file_path": {
					Type:        genai.TypeString,
					Description: "The absolute path to the file to edit",
				},
				"old_string": {
					Type:        genai.TypeString,
					Description: "The exact text to replace",
				},
				"new_string": {
					Type:        genai.TypeString,
					Description: "The text to replace it with",
				},
				"replace_all": {
					Type:        genai.TypeBoolean,
					Description: "Replace all occurrences (default: false)",
				},
			},
			Required: []string{"file_path", "old_string", "new_string"},
		},
	}
}

func (t *EditTool) Validate(args map[string]any) error {
	filePath, err := GetString(args, "file_path")
	if err != nil {
		return err
	}
	if strings.TrimSpace(filePath) == "" {
		return errs.New("file_path must not be empty", errs.CategoryValidation, errs.CodeInvalidInput)
	}

	oldString, err := GetString(args, "old_string")
	if err != nil {
		return err
	}
	newString, err := GetString(args, "new_string")
	if err != nil {
		return err
	}

	if strings.TrimSpace(oldString) == "" {
		return errs.New(
			"old_string must not be empty or whitespace-only",
			errs.CategoryValidation, errs.CodeInvalidInput,
			errs.WithSuggestions("use the write tool to create or replace whole files"),
		)
	}
	if oldString == newString {
		return errs.New(
			"old_string and new_string are identical",
			errs.CategoryValidation, errs.CodeInvalidInput,
			errs.WithSuggestions("make new_string differ from old_string"),
		)
	}
	return nil
}

func (t *EditTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	filePath, _ := GetString(args, "file_path")
	oldString, _ := GetString(args, "old_string")
	newString, _ := GetString(args, "new_string")
	replaceAll := GetBoolDefault(args, "replace_all", false)

	owner := uuid.NewString()
	if err := t.locks.Acquire(filePath, owner); err != nil {
		return ToolResult{}, err
	}
	defer t.locks.Release(filePath, owner)

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return ToolResult{}, errs.New(
				fmt.Sprintf("file not found: %s", filePath),
				errs.CategoryFilesystem, errs.CodeFileNotFound,
				errs.WithSuggestions("use the write tool to create new files"),
			)
		}
		return ToolResult{}, errs.Categorize(err)
	}
	content := string(data)

	count := strings.Count(content, oldString)
	if count == 0 {
		return ToolResult{}, errs.New(
			"old_string not found in file",
			errs.CategoryValidation, errs.CodeInvalidInput,
			errs.WithSuggestions(
				"read the file again to get the exact text including whitespace",
			),
		)
	}
	if count > 1 && !replaceAll {
		return ToolResult{}, errs.New(
			fmt.Sprintf("old_string appears %d times; it must be unique", count),
			errs.CategoryValidation, errs.CodeInvalidInput,
			errs.WithSuggestions(
				"include more surrounding context to make the match unique",
				"set replace_all to true to replace every occurrence",
			),
		)
	}

	var updated string
	replaced := 1
	if replaceAll {
		updated = strings.ReplaceAll(content, oldString, newString)
		replaced = count
	} else {
		updated = strings.Replace(content, oldString, newString, 1)
	}

	info, err := os.Stat(filePath)
	if err != nil {
		return ToolResult{}, errs.Categorize(err)
	}
	if err := os.WriteFile(filePath, []byte(updated), info.Mode().Perm()); err != nil {
		return ToolResult{}, errs.Categorize(err)
	}

	added, removed := diffStats(content, updated)
	return NewSuccessResultWithData(
		fmt.Sprintf("Replaced %d occurrence(s) in %s (+%d/-%d lines)", replaced, filePath, added, removed),
		map[string]any{
			"replacements":  replaced,
			"lines_added":   added,
			"lines_removed": removed,
		},
	), nil
}

// diffStats counts added and removed lines between two versions.
func diffStats(before, after string) (added, removed int) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	for _, d := range diffs {
		n := strings.Count(d.Text, "\n")
		if n == 0 && d.Text != "" {
			n = 1
		}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}
	return added, removed
}
