package ledger

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFailureLedgerAppendAndLoad(t *testing.T) {
	dir := t.TempDir()
	l := NewFailureLedger(filepath.Join(dir, "failures.jsonl"))

	require.NoError(t, l.Record(1, "Add parser", CategoryTimeout, "agent timed out after 20m"))
	require.NoError(t, l.Record(3, "Add parser", CategoryNoProgress, "no changes, task not marked"))
	require.NoError(t, l.Record(4, "Wire config", CategorySuspicious, "completion claimed without changes"))

	records, err := l.Load()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 1, records[0].Iteration)
	assert.Equal(t, CategoryTimeout, records[0].Category)
	assert.Equal(t, "Add parser", records[1].Task)
	assert.False(t, records[0].Timestamp.IsZero())
}

func TestFailureLedgerMissingFile(t *testing.T) {
	l := NewFailureLedger(filepath.Join(t.TempDir(), "failures.jsonl"))

	records, err := l.Load()
	require.NoError(t, err)
	assert.Empty(t, records)

	summary, err := l.Summary()
	require.NoError(t, err)
	assert.Empty(t, summary)
}

func TestFailureLedgerSummaryMostRecentWins(t *testing.T) {
	l := NewFailureLedger(filepath.Join(t.TempDir(), "failures.jsonl"))

	require.NoError(t, l.Record(1, "Add parser", CategoryTimeout, "first"))
	require.NoError(t, l.Record(2, "Add parser", CategoryNoProgress, "second"))
	require.NoError(t, l.Record(2, "Wire config", CategoryCrash, "agent exited 1"))

	summary, err := l.Summary()
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, "second", summary["Add parser"].Reason)
	assert.Equal(t, CategoryNoProgress, summary["Add parser"].Category)
	assert.Equal(t, CategoryCrash, summary["Wire config"].Category)
}

func TestFailureLedgerRepeatOffenders(t *testing.T) {
	l := NewFailureLedger(filepath.Join(t.TempDir(), "failures.jsonl"))

	require.NoError(t, l.Record(1, "Add parser", CategoryTimeout, "x"))
	require.NoError(t, l.Record(2, "Add parser", CategoryNoProgress, "x"))
	require.NoError(t, l.Record(3, "Add parser", CategoryNoProgress, "x"))
	require.NoError(t, l.Record(4, "Wire config", CategoryTimeout, "x"))

	offenders, err := l.RepeatOffenders(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"Add parser"}, offenders)

	offenders, err = l.RepeatOffenders(1)
	require.NoError(t, err)
	assert.Len(t, offenders, 2)
}

func TestFailureLedgerSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.jsonl")
	l := NewFailureLedger(path)
	require.NoError(t, l.Record(1, "Add parser", CategoryTimeout, "x"))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("\n\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, l.Record(2, "Wire config", CategoryCrash, "x"))

	records, err := l.Load()
	require.NoError(t, err)
	assert.Len(t, records, 2)
}
