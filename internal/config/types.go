package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that round-trips through YAML in the
// human-readable form time.ParseDuration accepts ("5m", "1h30m").
// Bare integers are accepted as nanoseconds for compatibility.
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}

	var n int64
	if err := value.Decode(&n); err != nil {
		return fmt.Errorf("invalid duration value at line %d", value.Line)
	}
	*d = Duration(n)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config represents the .ralph/config.yaml file plus CLI flag overrides.
// Flags win over the file; the file wins over defaults.
type Config struct {
	// Model is the execution model passed to the agent on normal iterations.
	Model string `yaml:"model"`

	// EscalationModel is swapped in for a single iteration when the
	// stagnation tracker reaches the escalation stage.
	EscalationModel string `yaml:"escalation_model"`

	// TaskFile is the path to the task document, relative to the workspace.
	TaskFile string `yaml:"task_file"`

	// StateDir is the directory for ralph's unversioned state, relative to
	// the workspace.
	StateDir string `yaml:"state_dir"`

	// MaxIterations bounds the loop; exceeding it exits with code 1.
	MaxIterations int `yaml:"max_iterations"`

	// MaxStagnant is the consecutive no-progress count that triggers model
	// escalation. The circuit breaker fires at MaxStagnant+2.
	MaxStagnant int `yaml:"max_stagnant"`

	// TaskTimeout bounds a single agent invocation.
	TaskTimeout Duration `yaml:"task_timeout"`

	// MaxDuration bounds the whole run; zero means unlimited.
	MaxDuration Duration `yaml:"max_duration"`

	// CheckpointInterval inserts a regression-verification task after every
	// N real tasks. Zero disables checkpoint insertion.
	CheckpointInterval int `yaml:"checkpoint_interval"`

	// MaxLogLines is the iteration log size at which rotation occurs.
	MaxLogLines int `yaml:"max_log_lines"`

	// AutoCommit enables committing verified work after each iteration.
	AutoCommit bool `yaml:"auto_commit"`

	// SkipHooks passes --no-verify to git commit.
	SkipHooks bool `yaml:"skip_hooks"`

	// TwoPhase runs a planning invocation first when the task document is
	// missing, then the iteration loop.
	TwoPhase bool `yaml:"two_phase"`

	// DryRun walks the loop without invoking the agent or touching git.
	DryRun bool `yaml:"-"`
}

// Exit codes for the run command.
const (
	ExitDone           = 0 // all tasks done
	ExitBudgetExceeded = 1 // iteration budget exhausted with work remaining
	ExitCircuitBreaker = 2 // sustained stagnation halt
)
