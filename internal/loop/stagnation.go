package loop

// Stage is the adaptive recovery stage derived from consecutive stagnant
// iterations.
type Stage int

const (
	StageNormal Stage = iota
	StageHint
	StageSkip
	StageEscalate
	StageCircuitBreak
)

// String returns a short label for the stage.
func (s Stage) String() string {
	switch s {
	case StageNormal:
		return "normal"
	case StageHint:
		return "hint"
	case StageSkip:
		return "skip"
	case StageEscalate:
		return "escalate"
	case StageCircuitBreak:
		return "circuit-break"
	default:
		return "unknown"
	}
}

// Instruction returns the prompt directive for the stage, or "" when the
// agent needs no steering.
func (s Stage) Instruction() string {
	switch s {
	case StageHint:
		return "The previous attempt made no progress. Try a different approach this time."
	case StageSkip, StageEscalate:
		return "The current task appears stuck. Abandon it and pick a different pending task."
	default:
		return ""
	}
}

// StagnationTracker counts consecutive iterations with no reduction in the
// pending-task count. The counter resets to zero only on a strict decrease
// and is never incremented by the first observation. State lives in memory
// only; a new loop invocation starts fresh.
type StagnationTracker struct {
	maxStagnant int
	lastPending int
	stagnant    int
	observed    bool
}

// NewStagnationTracker creates a tracker with the given escalation threshold.
func NewStagnationTracker(maxStagnant int) *StagnationTracker {
	return &StagnationTracker{maxStagnant: maxStagnant}
}

// Observe records the pending count at the start of an iteration.
func (t *StagnationTracker) Observe(pending int) {
	if !t.observed {
		t.observed = true
		t.lastPending = pending
		return
	}

	if pending < t.lastPending {
		t.stagnant = 0
	} else {
		t.stagnant++
	}
	t.lastPending = pending
}

// Count returns the consecutive stagnant iteration count.
func (t *StagnationTracker) Count() int {
	return t.stagnant
}

// Stage returns the recovery stage for the current count. Escalation is tied
// to the count hitting exactly maxStagnant, so a single streak escalates the
// model once; the circuit breaker fires strictly above maxStagnant+1 and
// never earlier.
func (t *StagnationTracker) Stage() Stage {
	switch {
	case t.stagnant == 0:
		return StageNormal
	case t.stagnant > t.maxStagnant+1:
		return StageCircuitBreak
	case t.stagnant == t.maxStagnant:
		return StageEscalate
	case t.stagnant == 1:
		return StageHint
	default:
		return StageSkip
	}
}
