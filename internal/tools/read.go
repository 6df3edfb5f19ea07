package tools

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"google.golang.org/genai"

	"raven/internal/errs"
)

const (
	// DefaultReadLimit is the maximum number of lines returned per call.
	DefaultReadLimit = 2000
	// MaxLineLength caps a single returned line, in characters.
	MaxLineLength = 2000
	// binarySampleSize is how many leading bytes the classifier inspects.
	binarySampleSize = 4096
)

// binaryExtensions are always treated as binary without sampling.
var binaryExtensions = map[string]bool{
	".exe": true, ".dll": true, ".so": true, ".dylib": true, ".a": true,
	".o": true, ".bin": true, ".elf": true, ".zip": true, ".tar": true,
	".gz": true, ".bz2": true, ".xz": true, ".7z": true, ".rar": true,
	".class": true, ".pyc": true, ".wasm": true, ".db": true, ".sqlite": true,
}

// imageExtensions route to the base64 result shape.
var imageExtensions = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
}

// ReadTool reads text files with pagination and line numbers. Images and
// PDFs come back base64-encoded; other binary files are refused.
type ReadTool struct{}

// NewReadTool creates a new ReadTool instance.
func NewReadTool() *ReadTool {
	return &ReadTool{}
}

func (t *ReadTool) Name() string {
	return "read"
}

func (t *ReadTool) Description() string {
	return `Reads a file and returns its contents with line numbers.

PARAMETERS:
- file_path (required): Absolute path to the file to read
- offset (optional): Line index to start from (0-based, default 0)
- limit (optional): Maximum number of lines to return (default 2000)

BEHAVIOR:
- Lines are numbered 1-based in the output regardless of offset
- Lines longer than 2000 characters are truncated with an ellipsis
- Images and PDFs are returned base64-encoded; other binary files are refused
- The result reports the file's total line count and whether more lines remain`
}

func (t *ReadTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"file_path": {
					Type:        genai.TypeString,
					Description: "The absolute path to the file to read",
				},
				"offset": {
					Type:        genai.TypeInteger,
					Description: "Line index to start reading from (0-based). Optional.",
				},
				"limit": {
					Type:        genai.TypeInteger,
					Description: "Maximum number of lines to read. Optional, defaults to 2000.",
				},
			},
			Required: []string{"file_path"},
		},
	}
}

func (t *ReadTool) Validate(args map[string]any) error {
	filePath, err := GetString(args, "file_path")
	if err != nil {
		return err
	}
	if strings.TrimSpace(filePath) == "" {
		return errs.New("file_path must not be empty", errs.CategoryValidation, errs.CodeInvalidInput)
	}
	if offset := GetIntDefault(args, "offset", 0); offset < 0 {
		return errs.New("offset must be >= 0", errs.CategoryValidation, errs.CodeInvalidInput)
	}
	return nil
}

func (t *ReadTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	filePath, _ := GetString(args, "file_path")

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return ToolResult{}, errs.New(
				fmt.Sprintf("file not found: %s", filePath),
				errs.CategoryFilesystem, errs.CodeFileNotFound,
				errs.WithSuggestions("use glob to locate the file first"),
			)
		}
		return ToolResult{}, errs.Categorize(err)
	}
	if info.IsDir() {
		return ToolResult{}, errs.New(
			fmt.Sprintf("%s is a directory, not a file", filePath),
			errs.CategoryValidation, errs.CodeInvalidInput,
			errs.WithSuggestions("use glob to list directory contents"),
		)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	if mime, ok := imageExtensions[ext]; ok {
		return t.readBase64(filePath, "image", mime)
	}
	if ext == ".pdf" {
		return t.readBase64(filePath, "pdf", "application/pdf")
	}

	binary, err := isBinaryFile(filePath, ext)
	if err != nil {
		return ToolResult{}, errs.Categorize(err)
	}
	if binary {
		return ToolResult{}, errs.New(
			fmt.Sprintf("%s is a binary file and cannot be read as text", filePath),
			errs.CategoryFilesystem, errs.CodeInvalidInput,
			errs.WithSuggestions(
				"use bash with file, strings or xxd to inspect binary content",
			),
		)
	}

	return t.readText(filePath, args)
}

func (t *ReadTool) readText(filePath string, args map[string]any) (ToolResult, error) {
	offset := GetIntDefault(args, "offset", 0)
	limit := GetIntDefault(args, "limit", DefaultReadLimit)
	if limit <= 0 {
		limit = DefaultReadLimit
	}

	file, err := os.Open(filePath)
	if err != nil {
		return ToolResult{}, errs.Categorize(err)
	}
	defer file.Close()

	var builder strings.Builder
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)

	totalLines := 0
	linesRead := 0

	for scanner.Scan() {
		lineIdx := totalLines
		totalLines++

		if lineIdx < offset || linesRead >= limit {
			continue
		}

		line := scanner.Text()
		if utf8.RuneCountInString(line) > MaxLineLength {
			runes := []rune(line)
			line = string(runes[:MaxLineLength]) + "…"
		}

		// 1-based display numbering, zero-padded so columns align.
		builder.WriteString(fmt.Sprintf("%05d| %s\n", lineIdx+1, line))
		linesRead++
	}
	if err := scanner.Err(); err != nil {
		return ToolResult{}, errs.Categorize(err)
	}

	hasMore := offset+linesRead < totalLines

	content := builder.String()
	if content == "" {
		if offset >= totalLines && totalLines > 0 {
			content = fmt.Sprintf("(offset %d is beyond end of file — file has %d lines)", offset, totalLines)
		} else {
			content = "(empty file)"
		}
	}

	return NewSuccessResultWithData(content, map[string]any{
		"total_lines": totalLines,
		"lines_read":  linesRead,
		"offset":      offset,
		"has_more":    hasMore,
	}), nil
}

func (t *ReadTool) readBase64(filePath, kind, mimeType string) (ToolResult, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return ToolResult{}, errs.Categorize(err)
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	display := fmt.Sprintf("[%s: %s, %d bytes, %s]", kind, filepath.Base(filePath), len(data), mimeType)

	return NewSuccessResultWithData(display, map[string]any{
		"type":      kind,
		"mime_type": mimeType,
		"size":      len(data),
		"data":      encoded,
	}), nil
}

// isBinaryFile classifies a file as binary. Known binary extensions skip
// sampling; otherwise the first 4096 bytes are checked for NUL bytes or a
// high share of non-printable control characters.
func isBinaryFile(filePath, ext string) (bool, error) {
	if binaryExtensions[ext] {
		return true, nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return false, err
	}
	defer file.Close()

	buf := make([]byte, binarySampleSize)
	n, err := file.Read(buf)
	if err != nil && err != io.EOF {
		return false, err
	}
	if n == 0 {
		return false, nil
	}

	sample := buf[:n]
	control := 0
	for _, b := range sample {
		if b == 0 {
			return true, nil
		}
		if b < 32 && b != '\n' && b != '\r' && b != '\t' {
			control++
		}
	}
	return float64(control)/float64(n) > 0.30, nil
}
