package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"google.golang.org/genai"

	"raven/internal/errs"
)

// WriteTool writes full file contents, creating parent directories as
// needed.
type WriteTool struct{}

// NewWriteTool creates a new WriteTool instance.
func NewWriteTool() *WriteTool {
	return &WriteTool{}
}

func (t *WriteTool) Name() string {
	return "write"
}

func (t *WriteTool) Description() string {
	return `Writes content to a file, replacing any existing content.

PARAMETERS:
- file_path (required): Absolute path to the file to write
- content (required): The full content to write

BEHAVIOR:
- Parent directories are created automatically
- The result reports whether the file existed before and its final size
- For partial changes to an existing file, prefer the edit tool`
}

func (t *WriteTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"file_path": {
					Type:        genai.TypeString,
					Description: "The absolute path to the file to write",
				},
				"content": {
					Type:        genai.TypeString,
					Description: "The content to write to the file",
				},
			},
			Required: []string{"file_path", "content"},
		},
	}
}

func (t *WriteTool) Validate(args map[string]any) error {
	filePath, err := GetString(args, "file_path")
	if err != nil {
		return err
	}
	if strings.TrimSpace(filePath) == "" {
		return errs.New("file_path must not be empty", errs.CategoryValidation, errs.CodeInvalidInput)
	}
	if _, err := GetString(args, "content"); err != nil {
		return err
	}
	return nil
}

func (t *WriteTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	filePath, _ := GetString(args, "file_path")
	content, _ := GetString(args, "content")

	existed := false
	if info, err := os.Stat(filePath); err == nil {
		if info.IsDir() {
			return ToolResult{}, errs.New(
				fmt.Sprintf("%s is a directory", filePath),
				errs.CategoryValidation, errs.CodeInvalidInput,
			)
		}
		existed = true
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return ToolResult{}, errs.Categorize(err)
	}
	if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
		return ToolResult{}, errs.Categorize(err)
	}

	verb := "Created"
	if existed {
		verb = "Updated"
	}
	return NewSuccessResultWithData(
		fmt.Sprintf("%s %s (%d bytes)", verb, filePath, len(content)),
		map[string]any{
			"existed": existed,
			"size":    len(content),
		},
	), nil
}
