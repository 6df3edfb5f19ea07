package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const configDirName = ".raven"

// Dir returns the raven config directory, creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(home, configDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// Load reads configuration from ~/.raven/config.yaml, falling back to
// defaults when the file is absent. Environment variables override keys so
// credentials never have to live on disk.
func Load() (*Config, error) {
	cfg := Default()

	dir, err := Dir()
	if err != nil {
		return nil, err
	}

	path := filepath.Join(dir, "config.yaml")
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	applyEnv(cfg)

	if cfg.Skills.Dir == "" {
		cfg.Skills.Dir = filepath.Join(dir, "skills")
	}
	if cfg.Tools.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			cfg.Tools.WorkDir = wd
		}
	}

	return cfg, nil
}

// Save writes the configuration back to ~/.raven/config.yaml.
func Save(cfg *Config) error {
	dir, err := Dir()
	if err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.API.GeminiKey = v
	}
	if v := os.Getenv("SERPAPI_API_KEY"); v != "" {
		cfg.API.SerpAPIKey = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.API.OllamaBaseURL = v
	}
	if v := os.Getenv("RAVEN_PROVIDER"); v != "" {
		cfg.API.ActiveProvider = v
	}
	if v := os.Getenv("RAVEN_MODEL"); v != "" {
		cfg.Model.Name = v
	}
}

// Validate checks that required settings are present for the active provider.
func Validate(cfg *Config) error {
	switch cfg.API.ActiveProvider {
	case "gemini":
		if cfg.API.GeminiKey == "" {
			return fmt.Errorf("gemini provider selected but no API key configured (set GEMINI_API_KEY)")
		}
	case "ollama":
		if cfg.API.OllamaBaseURL == "" {
			return fmt.Errorf("ollama provider selected but no base URL configured")
		}
	default:
		return fmt.Errorf("unknown provider %q (expected gemini or ollama)", cfg.API.ActiveProvider)
	}
	return nil
}
