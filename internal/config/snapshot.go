package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Snapshot records the resolved configuration of a single run. It is written
// once at loop start so a run's settings can be reconstructed after the fact
// even when flags overrode the config file.
type Snapshot struct {
	RunID     string    `yaml:"run_id"`
	StartedAt time.Time `yaml:"started_at"`
	Workspace string    `yaml:"workspace"`
	Config    Config    `yaml:"config"`
}

// NewSnapshot builds a Snapshot for the given workspace and resolved config,
// assigning a fresh run ID.
func NewSnapshot(workspace string, cfg Config) *Snapshot {
	return &Snapshot{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Workspace: workspace,
		Config:    cfg,
	}
}

// Write persists the snapshot to <workspace>/<state_dir>/run.yaml,
// overwriting any snapshot from a previous run.
func (s *Snapshot) Write() error {
	dir := filepath.Join(s.Workspace, s.Config.StateDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal run snapshot: %w", err)
	}

	path := filepath.Join(dir, "run.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write run snapshot: %w", err)
	}

	return nil
}

// ReadSnapshot loads the snapshot of the most recent run, or nil when no run
// has been recorded yet.
func ReadSnapshot(workspace, stateDir string) (*Snapshot, error) {
	path := filepath.Join(workspace, stateDir, "run.yaml")

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read run snapshot: %w", err)
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse run snapshot: %w", err)
	}

	return &snap, nil
}
