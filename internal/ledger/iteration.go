package ledger

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"
)

// IterationRecord is one completed loop iteration.
type IterationRecord struct {
	Run       string        `json:"run"`
	Iteration int           `json:"iteration"`
	Timestamp time.Time     `json:"timestamp"`
	Task      string        `json:"task,omitempty"`
	Verdict   string        `json:"verdict"`
	Notes     string        `json:"notes,omitempty"`
	ErrorTail string        `json:"error_tail,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// IterationLog records every iteration to a JSON-lines file. When the file
// grows past maxLines the older half is moved to an archive file alongside
// it, so the main file stays small enough for the status command to read
// quickly while no record is ever lost.
type IterationLog struct {
	path     string
	maxLines int
}

// NewIterationLog creates an iteration log backed by the given path.
// maxLines bounds the main file; values below 2 disable rotation.
func NewIterationLog(path string, maxLines int) *IterationLog {
	return &IterationLog{path: path, maxLines: maxLines}
}

// ArchivePath returns the path older records are rotated to.
func (l *IterationLog) ArchivePath() string {
	return l.path + ".1"
}

// Append records one iteration, rotating afterwards if needed.
func (l *IterationLog) Append(rec IterationRecord) error {
	if err := appendJSONL(l.path, rec); err != nil {
		return err
	}
	return l.rotate()
}

// Records returns every record in the main file, oldest first. Archived
// records are not included.
func (l *IterationLog) Records() ([]IterationRecord, error) {
	var records []IterationRecord
	err := readJSONL(l.path, func(data []byte) error {
		var rec IterationRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return err
		}
		records = append(records, rec)
		return nil
	})
	return records, err
}

// Recent returns up to n of the most recent records, oldest first.
func (l *IterationLog) Recent(n int) ([]IterationRecord, error) {
	records, err := l.Records()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(records) > n {
		records = records[len(records)-n:]
	}
	return records, nil
}

// rotate moves the older half of the main file to the archive when the line
// count exceeds maxLines. Archived lines are appended, so repeated rotations
// accumulate rather than overwrite.
func (l *IterationLog) rotate() error {
	if l.maxLines < 2 {
		return nil
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read iteration log: %w", err)
	}

	lines := splitLines(string(data))
	if len(lines) <= l.maxLines {
		return nil
	}

	keep := l.maxLines / 2
	archived := lines[:len(lines)-keep]
	recent := lines[len(lines)-keep:]

	f, err := os.OpenFile(l.ArchivePath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open iteration log archive: %w", err)
	}
	if _, err := f.WriteString(joinLines(archived)); err != nil {
		f.Close()
		return fmt.Errorf("failed to archive iteration log: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close iteration log archive: %w", err)
	}

	if err := os.WriteFile(l.path, []byte(joinLines(recent)), 0o644); err != nil {
		return fmt.Errorf("failed to rewrite iteration log: %w", err)
	}
	return nil
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
