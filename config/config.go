// Package config provides the declarative YAML configuration surface for
// assembling agents: identity, model selection, run limits, rate limit
// windows and caching. Environment variables in the file are expanded before
// parsing so API keys can stay out of the file itself.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Rawaa-Al-Kabbani/agent-forge/ratelimit"
)

// Config is the root configuration structure.
type Config struct {
	Agent     AgentConfig     `yaml:"agent"`
	Model     ModelConfig     `yaml:"model"`
	Run       RunConfig       `yaml:"run"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// AgentConfig declares the agent's identity and system prompt.
type AgentConfig struct {
	Name        string `yaml:"name"`
	Role        string `yaml:"role"`
	Objective   string `yaml:"objective"`
	Description string `yaml:"description"`
	// Instruction is the system prompt template. {{.name}}, {{.role}} and
	// {{.objective}} placeholders are filled from the fields above.
	Instruction string `yaml:"instruction"`
}

// ModelConfig selects the provider and model.
type ModelConfig struct {
	// Provider is "openai", "anthropic" or "mock".
	Provider    string  `yaml:"provider"`
	Name        string  `yaml:"name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int64   `yaml:"max_tokens"`
	APIKey      string  `yaml:"api_key"`
}

// RunConfig bounds individual runs.
type RunConfig struct {
	MaxTurns         int           `yaml:"max_turns"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	ToolTimeout      time.Duration `yaml:"tool_timeout"`
	Stream           bool          `yaml:"stream"`
}

// RateLimitConfig declares the global window plus per-key overrides. The
// window type is shared with the ratelimit package so the YAML shape and the
// runtime shape cannot drift apart.
type RateLimitConfig struct {
	Global    ratelimit.Window            `yaml:"global"`
	Overrides map[string]ratelimit.Window `yaml:"overrides"`
}

// CacheConfig tunes the tool result cache. A zero TTL disables caching.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// LoggingConfig selects the log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads, env-expands and parses the configuration file, then applies
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses raw YAML configuration bytes.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Model.Provider == "" {
		cfg.Model.Provider = "openai"
	}
	if cfg.Model.Temperature == 0 {
		cfg.Model.Temperature = 0.7
	}
	if cfg.Model.MaxTokens == 0 {
		cfg.Model.MaxTokens = 4096
	}
	if cfg.Run.MaxTurns == 0 {
		cfg.Run.MaxTurns = 10
	}
	if cfg.Run.MaxExecutionTime == 0 {
		cfg.Run.MaxExecutionTime = 5 * time.Minute
	}
	if cfg.Run.ToolTimeout == 0 {
		cfg.Run.ToolTimeout = 60 * time.Second
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

func (c *Config) validate() error {
	if c.Agent.Name == "" {
		return fmt.Errorf("config: agent.name is required")
	}
	switch c.Model.Provider {
	case "openai", "anthropic", "mock":
	default:
		return fmt.Errorf("config: unknown model provider %q", c.Model.Provider)
	}
	return nil
}
