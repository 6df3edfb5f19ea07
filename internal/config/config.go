package config

import "time"

// Config represents the main application configuration.
type Config struct {
	API     APIConfig     `yaml:"api"`
	Model   ModelConfig   `yaml:"model"`
	Tools   ToolsConfig   `yaml:"tools"`
	Agent   AgentConfig   `yaml:"agent"`
	Hooks   HooksConfig   `yaml:"hooks"`
	Skills  SkillsConfig  `yaml:"skills"`
	Logging LoggingConfig `yaml:"logging"`
}

// APIConfig holds provider credentials and endpoints.
type APIConfig struct {
	GeminiKey     string `yaml:"gemini_key,omitempty"`
	SerpAPIKey    string `yaml:"serpapi_key,omitempty"`
	OllamaBaseURL string `yaml:"ollama_base_url,omitempty"`

	// Active provider: gemini or ollama (default: gemini).
	ActiveProvider string `yaml:"active_provider"`

	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig configures retries for model API calls.
type RetryConfig struct {
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	MaxDelay   time.Duration `yaml:"max_delay"`
}

// ModelConfig holds model selection and generation settings.
type ModelConfig struct {
	Name            string  `yaml:"name"`
	Temperature     float32 `yaml:"temperature"`
	MaxOutputTokens int32   `yaml:"max_output_tokens"`
}

// ToolsConfig holds per-tool limits.
type ToolsConfig struct {
	BashTimeout    time.Duration `yaml:"bash_timeout"`
	MaxOutputBytes int           `yaml:"max_output_bytes"`
	WorkDir        string        `yaml:"work_dir,omitempty"`
}

// AgentConfig bounds the step loop.
type AgentConfig struct {
	MaxToolRounds    int `yaml:"max_tool_rounds"`
	SubAgentRounds   int `yaml:"sub_agent_rounds"`
	MaxParallelTools int `yaml:"max_parallel_tools"`
}

// HooksConfig configures the durable sub-agent callback endpoint.
type HooksConfig struct {
	BindAddr string        `yaml:"bind_addr"`
	Timeout  time.Duration `yaml:"timeout"` // 0 = wait indefinitely
}

// SkillsConfig locates skill files on disk.
type SkillsConfig struct {
	Dir   string `yaml:"dir"`
	Watch bool   `yaml:"watch"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	ToFile  bool   `yaml:"to_file"`
	Enabled bool   `yaml:"enabled"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			ActiveProvider: "gemini",
			OllamaBaseURL:  "http://localhost:11434",
			Retry: RetryConfig{
				MaxRetries: 3,
				RetryDelay: 1 * time.Second,
				MaxDelay:   30 * time.Second,
			},
		},
		Model: ModelConfig{
			Name:            "gemini-2.5-flash",
			Temperature:     0.7,
			MaxOutputTokens: 8192,
		},
		Tools: ToolsConfig{
			BashTimeout:    30 * time.Second,
			MaxOutputBytes: 30000,
		},
		Agent: AgentConfig{
			MaxToolRounds:    30,
			SubAgentRounds:   15,
			MaxParallelTools: 5,
		},
		Hooks: HooksConfig{
			BindAddr: "127.0.0.1:0",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
