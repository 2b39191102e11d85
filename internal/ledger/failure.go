// Package ledger persists the loop's append-only records: the failure
// ledger consulted when building prompts, and the iteration log consulted by
// the status command. Both are JSON-lines files under the state directory,
// appended to and never rewritten (the iteration log rotates by archiving,
// which preserves every record).
package ledger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Failure categories, mirroring the error taxonomy of the loop.
const (
	CategoryTimeout    = "timeout"
	CategorySuspicious = "suspicious"
	CategoryNoProgress = "no-progress"
	CategoryCrash      = "crash"
)

// FailureRecord is one failed attempt at a task.
type FailureRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Iteration int       `json:"iteration"`
	Task      string    `json:"task"`
	Category  string    `json:"category"`
	Reason    string    `json:"reason"`
}

// FailureLedger is the append-only record of failed task attempts.
type FailureLedger struct {
	path string
}

// NewFailureLedger creates a ledger backed by the given file path.
func NewFailureLedger(path string) *FailureLedger {
	return &FailureLedger{path: path}
}

// Path returns the ledger's file path.
func (l *FailureLedger) Path() string {
	return l.path
}

// Record appends a failure. History is never rewritten.
func (l *FailureLedger) Record(iteration int, task, category, reason string) error {
	rec := FailureRecord{
		Timestamp: time.Now().UTC(),
		Iteration: iteration,
		Task:      task,
		Category:  category,
		Reason:    reason,
	}
	return appendJSONL(l.path, rec)
}

// Load returns every failure record in append order.
func (l *FailureLedger) Load() ([]FailureRecord, error) {
	var records []FailureRecord
	err := readJSONL(l.path, func(data []byte) error {
		var rec FailureRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	})
	return records, err
}

// Summary collapses the ledger to the most recent record per task, for
// prompt injection. The agent is told which tasks to avoid; nothing prevents
// it from retrying with a new approach.
func (l *FailureLedger) Summary() (map[string]FailureRecord, error) {
	records, err := l.Load()
	if err != nil {
		return nil, err
	}

	summary := make(map[string]FailureRecord, len(records))
	for _, rec := range records {
		summary[rec.Task] = rec // later records win
	}
	return summary, nil
}

// Attempts returns the number of recorded failures per task.
func (l *FailureLedger) Attempts() (map[string]int, error) {
	records, err := l.Load()
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	for _, rec := range records {
		counts[rec.Task]++
	}
	return counts, nil
}

// RepeatOffenders returns tasks that failed at least minCount times, in no
// particular order.
func (l *FailureLedger) RepeatOffenders(minCount int) ([]string, error) {
	counts, err := l.Attempts()
	if err != nil {
		return nil, err
	}

	var offenders []string
	for task, n := range counts {
		if n >= minCount {
			offenders = append(offenders, task)
		}
	}
	return offenders, nil
}

// appendJSONL appends one JSON document plus newline to the file.
func appendJSONL(path string, v interface{}) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create ledger directory: %w", err)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append record: %w", err)
	}
	return nil
}

// readJSONL streams each non-empty line of the file to fn. A missing file
// reads as empty.
func readJSONL(path string, fn func([]byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return fmt.Errorf("failed to parse ledger line: %w", err)
		}
	}
	return scanner.Err()
}
