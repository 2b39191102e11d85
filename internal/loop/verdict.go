package loop

// Verdict is the categorical outcome assigned to one iteration.
type Verdict int

const (
	// VerdictUnknown is never produced by Resolve; it marks iterations
	// where no verdict could be computed, such as an invocation that
	// failed to start.
	VerdictUnknown Verdict = iota
	VerdictVerified
	VerdictCompleted
	VerdictPartial
	VerdictSuspicious
	VerdictIncomplete
	VerdictNoProgress
	VerdictTimeout
	VerdictBlocked
)

// String returns the verdict label used in logs and iteration records.
func (v Verdict) String() string {
	switch v {
	case VerdictVerified:
		return "VERIFIED"
	case VerdictCompleted:
		return "COMPLETED"
	case VerdictPartial:
		return "PARTIAL"
	case VerdictSuspicious:
		return "SUSPICIOUS"
	case VerdictIncomplete:
		return "INCOMPLETE"
	case VerdictNoProgress:
		return "NO_PROGRESS"
	case VerdictTimeout:
		return "TIMEOUT"
	case VerdictBlocked:
		return "BLOCKED"
	default:
		return "UNKNOWN"
	}
}

// Resolve maps a signal tuple to a verdict through a fixed decision table,
// evaluated in precedence order with the first match winning:
//
//	1. timedOut                                      -> TIMEOUT
//	2. promiseBlocked                                -> BLOCKED
//	3. promiseDone && taskMarkedDone                 -> VERIFIED
//	4. taskMarkedDone && !promiseDone                -> COMPLETED
//	5. promiseDone && !taskMarkedDone && filesChanged -> PARTIAL
//	6. promiseDone && !taskMarkedDone && !filesChanged -> SUSPICIOUS
//	7. !promiseDone && !taskMarkedDone && filesChanged -> INCOMPLETE
//	8. otherwise                                     -> NO_PROGRESS
//
// Pure function of the tuple; callers depending on verdicts can rely on this
// table not changing shape.
func Resolve(s Signals) Verdict {
	switch {
	case s.TimedOut:
		return VerdictTimeout
	case s.PromiseBlocked:
		return VerdictBlocked
	case s.PromiseDone && s.TaskMarkedDone:
		return VerdictVerified
	case s.TaskMarkedDone:
		return VerdictCompleted
	case s.PromiseDone && s.FilesChanged:
		return VerdictPartial
	case s.PromiseDone:
		return VerdictSuspicious
	case s.FilesChanged:
		return VerdictIncomplete
	default:
		return VerdictNoProgress
	}
}
