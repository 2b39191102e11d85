package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values for Config.
const (
	DefaultModel              = "sonnet"
	DefaultEscalationModel    = "opus"
	DefaultTaskFile           = "TASKS.md"
	DefaultStateDir           = ".ralph"
	DefaultMaxIterations      = 50
	DefaultMaxStagnant        = 3
	DefaultTaskTimeout        = Duration(20 * time.Minute)
	DefaultCheckpointInterval = 5
	DefaultMaxLogLines        = 2000
)

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		Model:              DefaultModel,
		EscalationModel:    DefaultEscalationModel,
		TaskFile:           DefaultTaskFile,
		StateDir:           DefaultStateDir,
		MaxIterations:      DefaultMaxIterations,
		MaxStagnant:        DefaultMaxStagnant,
		TaskTimeout:        DefaultTaskTimeout,
		CheckpointInterval: DefaultCheckpointInterval,
		MaxLogLines:        DefaultMaxLogLines,
		AutoCommit:         true,
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
}

// IsValidationError checks if an error is a ValidationError.
func IsValidationError(err error) bool {
	var ve ValidationError
	return errors.As(err, &ve)
}

// Load reads and parses <workspace>/.ralph/config.yaml. If the file doesn't
// exist, returns default config. Applies defaults for any missing fields.
func Load(workspace string) (*Config, error) {
	configPath := filepath.Join(workspace, DefaultStateDir, "config.yaml")

	cfg := DefaultConfig()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that all config values are valid.
func Validate(cfg *Config) error {
	if cfg.Model == "" {
		return ValidationError{Field: "model", Message: "required field is empty"}
	}
	if cfg.TaskFile == "" {
		return ValidationError{Field: "task_file", Message: "required field is empty"}
	}
	if cfg.StateDir == "" {
		return ValidationError{Field: "state_dir", Message: "required field is empty"}
	}
	if cfg.MaxIterations <= 0 {
		return ValidationError{Field: "max_iterations", Message: "must be positive"}
	}
	if cfg.MaxStagnant <= 0 {
		return ValidationError{Field: "max_stagnant", Message: "must be positive"}
	}
	if cfg.TaskTimeout <= 0 {
		return ValidationError{Field: "task_timeout", Message: "must be positive"}
	}
	if cfg.MaxDuration < 0 {
		return ValidationError{Field: "max_duration", Message: "must not be negative"}
	}
	if cfg.CheckpointInterval < 0 {
		return ValidationError{Field: "checkpoint_interval", Message: "must not be negative"}
	}
	if cfg.MaxLogLines <= 0 {
		return ValidationError{Field: "max_log_lines", Message: "must be positive"}
	}
	return nil
}
