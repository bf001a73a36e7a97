package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config models taskline.yml.
type Config struct {
	Points struct {
		// PerHour seeds statistics before any task has completed with a
		// measurable duration.
		PerHour float64 `yaml:"per_hour"`
	} `yaml:"points"`
	Snapshot struct {
		// Every is the number of applied events between snapshot saves.
		Every int `yaml:"every"`
	} `yaml:"snapshot"`
	Pomodoro struct {
		WorkMinutes  int `yaml:"work_minutes"`
		BreakMinutes int `yaml:"break_minutes"`
	} `yaml:"pomodoro"`
	Server struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"server"`
}

// Load reads and validates config from the workspace, falling back to
// defaults when the file does not exist.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Points.PerHour < 0 {
		return fmt.Errorf("config.points.per_hour must not be negative")
	}
	if c.Snapshot.Every < 0 {
		return fmt.Errorf("config.snapshot.every must not be negative")
	}
	if c.Pomodoro.WorkMinutes < 0 || c.Pomodoro.BreakMinutes < 0 {
		return fmt.Errorf("config.pomodoro durations must not be negative")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "taskline.yml")
}

// WriteDefault materializes the default config template at path.
func WriteDefault(path string) error {
	return os.WriteFile(path, []byte(defaultTemplate), 0o644)
}

// Default returns the built-in configuration.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Unset fields keep
// their defaults.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

const defaultTemplate = `points:
  per_hour: 3

snapshot:
  every: 25

pomodoro:
  work_minutes: 25
  break_minutes: 5

server:
  addr: 127.0.0.1:8080
  base_path: /v0
`
