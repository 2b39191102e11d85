package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, DefaultModel, cfg.Model)
	assert.Equal(t, DefaultTaskFile, cfg.TaskFile)
	assert.Equal(t, DefaultMaxIterations, cfg.MaxIterations)
	assert.Equal(t, DefaultMaxStagnant, cfg.MaxStagnant)
	assert.Equal(t, DefaultTaskTimeout, cfg.TaskTimeout)
	assert.True(t, cfg.AutoCommit)
}

func TestLoadPartialFileAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "max_iterations: 10\nmodel: haiku\n")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.MaxIterations)
	assert.Equal(t, "haiku", cfg.Model)
	// Unspecified fields keep their defaults.
	assert.Equal(t, DefaultMaxStagnant, cfg.MaxStagnant)
	assert.Equal(t, DefaultStateDir, cfg.StateDir)
}

func TestLoadParsesDurations(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "task_timeout: 5m\nmax_duration: 2h\n")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Minute, cfg.TaskTimeout.Std())
	assert.Equal(t, 2*time.Hour, cfg.MaxDuration.Std())
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "max_iterations: [not a number\n")

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"empty model", func(c *Config) { c.Model = "" }, "model"},
		{"empty task file", func(c *Config) { c.TaskFile = "" }, "task_file"},
		{"zero iterations", func(c *Config) { c.MaxIterations = 0 }, "max_iterations"},
		{"negative stagnant", func(c *Config) { c.MaxStagnant = -1 }, "max_stagnant"},
		{"zero timeout", func(c *Config) { c.TaskTimeout = 0 }, "task_timeout"},
		{"negative duration", func(c *Config) { c.MaxDuration = Duration(-time.Minute) }, "max_duration"},
		{"negative checkpoint interval", func(c *Config) { c.CheckpointInterval = -1 }, "checkpoint_interval"},
		{"zero log lines", func(c *Config) { c.MaxLogLines = 0 }, "max_log_lines"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)

			err := Validate(&cfg)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsValidationError(err))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()

	snap := NewSnapshot(dir, cfg)
	require.NotEmpty(t, snap.RunID)
	require.NoError(t, snap.Write())

	loaded, err := ReadSnapshot(dir, cfg.StateDir)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	assert.Equal(t, snap.RunID, loaded.RunID)
	assert.Equal(t, cfg.Model, loaded.Config.Model)
	assert.Equal(t, cfg.MaxIterations, loaded.Config.MaxIterations)
}

func TestReadSnapshotMissing(t *testing.T) {
	dir := t.TempDir()

	snap, err := ReadSnapshot(dir, DefaultStateDir)
	require.NoError(t, err)
	assert.Nil(t, snap)
}

func writeConfig(t *testing.T, workspace, content string) {
	t.Helper()
	dir := filepath.Join(workspace, DefaultStateDir)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))
}
