package tools

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"raven/internal/errs"
	"raven/internal/skills"
)

// SkillTool loads a named skill's full instructions into the conversation.
type SkillTool struct {
	store *skills.Store
}

// NewSkillTool creates a SkillTool over the given store.
func NewSkillTool(store *skills.Store) *SkillTool {
	return &SkillTool{store: store}
}

func (t *SkillTool) Name() string {
	return "load_skill"
}

func (t *SkillTool) Description() string {
	catalog := t.store.List()
	if len(catalog) == 0 {
		return "Loads the full instructions of a named skill. No skills are currently installed."
	}

	var b strings.Builder
	b.WriteString("Loads the full instructions of a named skill. Available skills:\n")
	for _, s := range catalog {
		fmt.Fprintf(&b, "- %s: %s\n", s.Name, s.Description)
	}
	return b.String()
}

func (t *SkillTool) Declaration() *genai.FunctionDeclaration {
	return &genai.FunctionDeclaration{
		Name:        t.Name(),
		Description: t.Description(),
		Parameters: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"name": {
					Type:        genai.TypeString,
					Description: "The name of the skill to load",
				},
			},
			Required: []string{"name"},
		},
	}
}

func (t *SkillTool) Validate(args map[string]any) error {
	name, err := GetString(args, "name")
	if err != nil {
		return err
	}
	if strings.TrimSpace(name) == "" {
		return errs.New("name must not be empty", errs.CategoryValidation, errs.CodeInvalidInput)
	}
	return nil
}

func (t *SkillTool) Execute(ctx context.Context, args map[string]any) (ToolResult, error) {
	name, _ := GetString(args, "name")

	skill, found, err := t.store.Load(name)
	if err != nil {
		return ToolResult{}, errs.Categorize(err)
	}
	if !found {
		// A misspelled skill name is an expected, conversational condition:
		// tell the model what does exist instead of failing the call.
		names := t.store.Names()
		msg := fmt.Sprintf("Skill %q not found.", name)
		if len(names) > 0 {
			msg += " Available skills: " + strings.Join(names, ", ")
		} else {
			msg += " No skills are installed."
		}
		return NewSuccessResultWithData(msg, map[string]any{
			"found":     false,
			"available": names,
		}), nil
	}

	return NewSuccessResultWithData(
		fmt.Sprintf("# Skill: %s\n\n%s", skill.Name, skill.Body),
		map[string]any{
			"found": true,
			"name":  skill.Name,
		},
	), nil
}
