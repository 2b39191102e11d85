package tasklist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/thruflo/ralph/internal/logging"
)

// Restorer supplies the last committed version of a file. The vcs package
// implements it; tests supply fakes.
type Restorer interface {
	ShowFile(ref, path string) ([]byte, error)
}

// Store reads and mutates the task document on disk. The store never flips
// task state itself; state transitions happen through agent edits to the
// document. The two exceptions are checkpoint insertion and corruption
// recovery.
type Store struct {
	workspace string
	taskFile  string
	restorer  Restorer
	log       *logging.Logger
}

// NewStore creates a Store for the task document at <workspace>/<taskFile>.
func NewStore(workspace, taskFile string) *Store {
	return &Store{
		workspace: workspace,
		taskFile:  taskFile,
		log:       logging.With("component", "tasklist"),
	}
}

// SetRestorer wires the version-control restorer used by corruption recovery.
func (s *Store) SetRestorer(r Restorer) {
	s.restorer = r
}

// Path returns the absolute path of the task document.
func (s *Store) Path() string {
	return filepath.Join(s.workspace, s.taskFile)
}

// TaskFile returns the document path relative to the workspace.
func (s *Store) TaskFile() string {
	return s.taskFile
}

// Exists reports whether the task document is present.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}

// Load reads and parses the current document.
func (s *Store) Load() (*Document, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		return nil, fmt.Errorf("failed to read task document: %w", err)
	}

	tasks, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse task document: %w", err)
	}

	return &Document{Raw: string(data), Tasks: tasks}, nil
}

// Validate checks a freshly generated document. A document with zero pending
// tasks fails validation; tasks without an acceptance criterion produce
// non-fatal warnings.
func (s *Store) Validate(doc *Document) (bool, []string) {
	var warnings []string

	for _, t := range doc.Tasks {
		if t.Acceptance == "" {
			warnings = append(warnings, fmt.Sprintf("task %q has no acceptance criterion", t.Title))
		}
	}

	if doc.CountByState(StatePending) == 0 {
		return false, warnings
	}
	return true, warnings
}

// InsertCheckpoints inserts a synthetic full-regression-verification task
// after every interval real tasks, and a final one if any real tasks remain
// past the last insertion point. No-op when interval is zero, when the
// document holds no more than interval tasks, or when checkpoints are
// already present.
func (s *Store) InsertCheckpoints(interval int) error {
	if interval <= 0 {
		return nil
	}

	doc, err := s.Load()
	if err != nil {
		return err
	}

	real := 0
	for _, t := range doc.Tasks {
		if t.Checkpoint {
			return nil // already inserted on a previous run
		}
		real++
	}
	if real <= interval {
		return nil
	}

	lines := strings.Split(doc.Raw, "\n")
	taskLineAt := make(map[int]bool, len(doc.Tasks))
	for _, t := range doc.Tasks {
		taskLineAt[t.Line-1] = true // Task.Line is 1-based
	}

	isDetail := func(line string) bool {
		return strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")
	}

	var out []string
	seen := 0
	sinceInsert := 0
	inserted := 0

	for i := 0; i < len(lines); i++ {
		out = append(out, lines[i])
		if !taskLineAt[i] {
			continue
		}
		seen++
		sinceInsert++

		// Carry the entry's indented detail lines along with it.
		for i+1 < len(lines) && isDetail(lines[i+1]) {
			i++
			out = append(out, lines[i])
		}

		if sinceInsert == interval || (seen == real && sinceInsert > 0) {
			inserted++
			out = append(out, renderTask(Task{
				Title:       fmt.Sprintf("%s #%d", checkpointTitle, inserted),
				State:       StatePending,
				Description: checkpointDesc,
				Files:       checkpointFiles,
				Acceptance:  checkpointAcceptance,
				Checkpoint:  true,
			})...)
			sinceInsert = 0
		}
	}

	if err := os.WriteFile(s.Path(), []byte(strings.Join(out, "\n")), 0o644); err != nil {
		return fmt.Errorf("failed to write task document: %w", err)
	}

	s.log.Info("inserted checkpoint tasks", "count", inserted, "interval", interval)
	return nil
}

// RecoverIfCorrupted checks for document corruption after an iteration: a
// document that no longer parses, or parses with zero pending and zero done
// tasks, has likely been truncated by a faulty edit. It attempts to restore
// the last committed version; when no committed version is available it
// surfaces a warning and leaves the damaged document in place.
func (s *Store) RecoverIfCorrupted() (recovered bool, err error) {
	doc, loadErr := s.Load()
	if loadErr == nil && (doc.CountByState(StatePending) > 0 || doc.CountByState(StateDone) > 0) {
		return false, nil
	}

	if s.restorer == nil {
		s.log.Warn("task document appears corrupted and no restorer is wired; continuing with damaged document")
		return false, nil
	}

	data, err := s.restorer.ShowFile("HEAD", s.taskFile)
	if err != nil {
		s.log.Warn("task document appears corrupted and no committed version is available; continuing with damaged document", "error", err)
		return false, nil
	}

	if err := os.WriteFile(s.Path(), data, 0o644); err != nil {
		return false, fmt.Errorf("failed to restore task document: %w", err)
	}

	s.log.Warn("restored corrupted task document from last committed version")
	return true, nil
}
