// Package config loads taskpilot's layered YAML configuration. A user-level
// file in ~/.taskpilot/config.yaml provides defaults, and a project-level
// .taskpilot/config.yaml in the working directory overrides it.
package config

import (
	"os"
	"path/filepath"

	"github.com/rfoxall/taskpilot/errors"
	"gopkg.in/yaml.v3"
)

// LookupServer describes an external MCP server that provides the auxiliary
// lookup capability instead of the built-in file search.
type LookupServer struct {
	Name    string   `yaml:"name"`
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
}

// Config holds everything the CLI wires into the workflow at startup.
type Config struct {
	// LLMClient selects the provider: gemini, openai, anthropic, bedrock
	// or mock. Model is the provider-specific model identifier.
	LLMClient string `yaml:"llm"`
	Model     string `yaml:"model"`

	// Mode controls confirmation behavior: "prompt" (default) asks before
	// state-mutating commands, "auto" runs everything unprompted.
	Mode string `yaml:"mode"`

	MaxIterations int `yaml:"max_iterations"`
	RequestLimit  int `yaml:"request_limit"`

	// VerifyReadOnly enables re-validation of the model's read_only claim
	// against ReadOnlyCommands patterns; unmatched commands are treated as
	// mutating and hit the confirmation prompt.
	VerifyReadOnly   bool     `yaml:"verify_read_only"`
	ReadOnlyCommands []string `yaml:"read_only_commands"`

	// HiddenPaths are doublestar patterns the search tool refuses to read.
	HiddenPaths []string `yaml:"hidden_paths"`

	LookupServer *LookupServer `yaml:"lookup_server"`

	ToolVerbosity string `yaml:"tool_verbosity"`
}

const (
	DefaultMaxIterations = 10
	DefaultRequestLimit  = 25
)

// Load reads the user-level config followed by the project-level config,
// with the latter taking precedence, and applies defaults for anything left
// unset.
func Load() (*Config, error) {
	cfg := &Config{}

	// The state directory never belongs in search results.
	cfg.HiddenPaths = append(cfg.HiddenPaths, ".taskpilot", ".taskpilot/**")

	home, err := os.UserHomeDir()
	if err == nil {
		userPath := filepath.Join(home, ".taskpilot", "config.yaml")
		if _, err := os.Stat(userPath); err == nil {
			if err := loadFromFile(userPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectPath := filepath.Join(wd, ".taskpilot", "config.yaml")
	if _, err := os.Stat(projectPath); err == nil {
		if err := loadFromFile(projectPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	cfg.applyDefaults()
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Unmarshal overwrites only the fields present in the YAML, which gives
	// a simple merge where project-level values replace user-level ones.
	return yaml.Unmarshal(data, cfg)
}

func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = "prompt"
	}
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.RequestLimit <= 0 {
		c.RequestLimit = DefaultRequestLimit
	}
	if c.ToolVerbosity == "" {
		c.ToolVerbosity = "info"
	}
}
