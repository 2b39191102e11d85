package ledger

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func iterationRecord(i int) IterationRecord {
	return IterationRecord{
		Run:       "run-1",
		Iteration: i,
		Timestamp: time.Date(2025, 6, 1, 12, 0, i, 0, time.UTC),
		Task:      fmt.Sprintf("Task %d", i),
		Verdict:   "VERIFIED",
		Duration:  3 * time.Minute,
	}
}

func TestIterationLogAppendAndRecent(t *testing.T) {
	l := NewIterationLog(filepath.Join(t.TempDir(), "iterations.jsonl"), 100)

	for i := 1; i <= 5; i++ {
		require.NoError(t, l.Append(iterationRecord(i)))
	}

	records, err := l.Records()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, 1, records[0].Iteration)
	assert.Equal(t, "Task 5", records[4].Task)
	assert.Equal(t, 3*time.Minute, records[0].Duration)

	recent, err := l.Recent(2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, 4, recent[0].Iteration)
	assert.Equal(t, 5, recent[1].Iteration)
}

func TestIterationLogRotation(t *testing.T) {
	dir := t.TempDir()
	l := NewIterationLog(filepath.Join(dir, "iterations.jsonl"), 10)

	for i := 1; i <= 11; i++ {
		require.NoError(t, l.Append(iterationRecord(i)))
	}

	// 11 lines exceeds the bound: the newest 5 stay, the rest archive.
	records, err := l.Records()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, 7, records[0].Iteration)
	assert.Equal(t, 11, records[4].Iteration)

	archive := NewIterationLog(l.ArchivePath(), 0)
	archived, err := archive.Records()
	require.NoError(t, err)
	require.Len(t, archived, 6)
	assert.Equal(t, 1, archived[0].Iteration)
	assert.Equal(t, 6, archived[5].Iteration)
}

func TestIterationLogRotationAccumulates(t *testing.T) {
	dir := t.TempDir()
	l := NewIterationLog(filepath.Join(dir, "iterations.jsonl"), 4)

	for i := 1; i <= 12; i++ {
		require.NoError(t, l.Append(iterationRecord(i)))
	}

	archive := NewIterationLog(l.ArchivePath(), 0)
	archived, err := archive.Records()
	require.NoError(t, err)

	records, err := l.Records()
	require.NoError(t, err)

	// Every record lands in exactly one of the two files, in order.
	seen := 0
	for _, rec := range append(archived, records...) {
		seen++
		assert.Equal(t, seen, rec.Iteration)
	}
	assert.Equal(t, 12, seen)
}

func TestIterationLogRotationDisabled(t *testing.T) {
	l := NewIterationLog(filepath.Join(t.TempDir(), "iterations.jsonl"), 0)

	for i := 1; i <= 20; i++ {
		require.NoError(t, l.Append(iterationRecord(i)))
	}

	records, err := l.Records()
	require.NoError(t, err)
	assert.Len(t, records, 20)
}

func TestIterationLogRecentOnEmptyLog(t *testing.T) {
	l := NewIterationLog(filepath.Join(t.TempDir(), "iterations.jsonl"), 10)

	recent, err := l.Recent(5)
	require.NoError(t, err)
	assert.Empty(t, recent)
}
