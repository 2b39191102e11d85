// Package tasklist parses and mutates the markdown task document that drives
// the iteration loop. The document is the sole source of truth for task
// state; every read re-parses it rather than trusting a cached copy.
package tasklist

// State is the checkbox state of a task.
type State string

const (
	StatePending State = "pending" // [ ]
	StateDone    State = "done"    // [x] or [X]
	StateBlocked State = "blocked" // [~]
)

// Effort is the estimated effort tag on a task line.
type Effort string

const (
	EffortLow         Effort = "low"
	EffortMedium      Effort = "medium"
	EffortHigh        Effort = "high"
	EffortUnspecified Effort = "unspecified"
)

// Task represents a single checklist entry.
type Task struct {
	Title       string
	State       State
	Effort      Effort
	Description string
	Files       string
	Acceptance  string

	// Checkpoint marks a synthetic regression-verification task inserted by
	// InsertCheckpoints rather than authored in the original document.
	Checkpoint bool

	// Line is the 1-based line number of the checkbox line in the document.
	Line int
}

// Document is a parsed snapshot of the task document. Raw preserves the
// exact text the tasks were parsed from.
type Document struct {
	Raw   string
	Tasks []Task
}

// CountByState returns the number of tasks in the given state.
func (d *Document) CountByState(state State) int {
	n := 0
	for _, t := range d.Tasks {
		if t.State == state {
			n++
		}
	}
	return n
}

// NextPending returns the first pending task in document order, or nil.
func (d *Document) NextPending() *Task {
	for i := range d.Tasks {
		if d.Tasks[i].State == StatePending {
			return &d.Tasks[i]
		}
	}
	return nil
}

// Progress returns the number of done tasks and the total task count.
func (d *Document) Progress() (done, total int) {
	return d.CountByState(StateDone), len(d.Tasks)
}

// DetectOutcome classifies the result of DetectNewlyCompleted.
type DetectOutcome int

const (
	// DetectFound means exactly one task transitioned pending to done.
	DetectFound DetectOutcome = iota
	// DetectFirstRun means there was no prior snapshot to diff against.
	DetectFirstRun
	// DetectUnknown means the diff was ambiguous: no single clean
	// pending-to-done transition could be identified.
	DetectUnknown
)

// String returns a short label for the outcome.
func (o DetectOutcome) String() string {
	switch o {
	case DetectFound:
		return "found"
	case DetectFirstRun:
		return "first run"
	case DetectUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// DetectNewlyCompleted diffs two document snapshots and returns the title of
// the task whose checkbox changed from pending to done. A nil before snapshot
// yields DetectFirstRun; an ambiguous diff yields DetectUnknown.
func DetectNewlyCompleted(before, after *Document) (string, DetectOutcome) {
	if before == nil {
		return "", DetectFirstRun
	}
	if after == nil {
		return "", DetectUnknown
	}

	prior := make(map[string]State, len(before.Tasks))
	for _, t := range before.Tasks {
		prior[t.Title] = t.State
	}

	var completed []string
	for _, t := range after.Tasks {
		if t.State != StateDone {
			continue
		}
		if st, ok := prior[t.Title]; ok && st == StatePending {
			completed = append(completed, t.Title)
		}
	}

	// Several tasks flipping in one iteration is unusual but not ambiguous:
	// attribute the iteration to the first one in document order.
	if len(completed) > 0 {
		return completed[0], DetectFound
	}
	return "", DetectUnknown
}
