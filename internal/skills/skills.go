// Package skills discovers and loads skill files: markdown documents with a
// YAML front-matter header carrying a name and description. The agent
// advertises the catalog to the model and loads full bodies on demand.
package skills

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"raven/internal/logging"
)

const frontMatterDelim = "---"

// Skill is one catalog entry. Body is only populated by Load.
type Skill struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Path        string `yaml:"-"`
	Body        string `yaml:"-"`
}

// Store holds the skill catalog for a directory.
type Store struct {
	dir string

	mu     sync.RWMutex
	skills map[string]Skill
}

// NewStore creates a store over the given directory and loads the catalog.
// A missing directory yields an empty catalog, not an error.
func NewStore(dir string) (*Store, error) {
	s := &Store{
		dir:    dir,
		skills: make(map[string]Skill),
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload rescans the directory and replaces the catalog.
func (s *Store) Reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			s.mu.Lock()
			s.skills = make(map[string]Skill)
			s.mu.Unlock()
			return nil
		}
		return fmt.Errorf("failed to read skills directory: %w", err)
	}

	catalog := make(map[string]Skill)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(s.dir, entry.Name())
		skill, err := parseFile(path)
		if err != nil {
			logging.Warn("skipping malformed skill file", "path", path, "error", err)
			continue
		}
		if _, dup := catalog[skill.Name]; dup {
			logging.Warn("duplicate skill name, keeping first", "name", skill.Name, "path", path)
			continue
		}
		skill.Body = "" // catalog entries stay light
		catalog[skill.Name] = skill
	}

	s.mu.Lock()
	s.skills = catalog
	s.mu.Unlock()
	logging.Debug("skill catalog loaded", "count", len(catalog), "dir", s.dir)
	return nil
}

// List returns catalog entries sorted by name.
func (s *Store) List() []Skill {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Skill, 0, len(s.skills))
	for _, skill := range s.skills {
		out = append(out, skill)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns the sorted skill names.
func (s *Store) Names() []string {
	list := s.List()
	names := make([]string, len(list))
	for i, skill := range list {
		names[i] = skill.Name
	}
	return names
}

// Load returns the named skill with its full body. The boolean reports
// whether the skill exists.
func (s *Store) Load(name string) (Skill, bool, error) {
	s.mu.RLock()
	skill, ok := s.skills[name]
	s.mu.RUnlock()
	if !ok {
		return Skill{}, false, nil
	}

	full, err := parseFile(skill.Path)
	if err != nil {
		return Skill{}, true, fmt.Errorf("failed to load skill %s: %w", name, err)
	}
	return full, true, nil
}

// parseFile splits a skill file into YAML front matter and body.
func parseFile(path string) (Skill, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Skill{}, err
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !strings.HasPrefix(content, frontMatterDelim+"\n") {
		return Skill{}, fmt.Errorf("missing front matter in %s", path)
	}

	rest := content[len(frontMatterDelim)+1:]
	end := strings.Index(rest, "\n"+frontMatterDelim)
	if end < 0 {
		return Skill{}, fmt.Errorf("unterminated front matter in %s", path)
	}

	var skill Skill
	if err := yaml.Unmarshal([]byte(rest[:end]), &skill); err != nil {
		return Skill{}, fmt.Errorf("invalid front matter in %s: %w", path, err)
	}
	if strings.TrimSpace(skill.Name) == "" {
		return Skill{}, fmt.Errorf("skill in %s has no name", path)
	}

	body := rest[end+len(frontMatterDelim)+1:]
	if i := strings.Index(body, "\n"); i >= 0 {
		body = body[i+1:]
	} else {
		body = ""
	}

	skill.Path = path
	skill.Body = strings.TrimSpace(body)
	return skill, nil
}
