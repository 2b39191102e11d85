package loop

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/thruflo/ralph/internal/agent"
	"github.com/thruflo/ralph/internal/config"
	"github.com/thruflo/ralph/internal/ledger"
	"github.com/thruflo/ralph/internal/logging"
	"github.com/thruflo/ralph/internal/tasklist"
)

// ExitReason indicates why the loop stopped.
type ExitReason int

const (
	ExitReasonUnknown        ExitReason = iota
	ExitReasonDone                      // every task done
	ExitReasonBlocked                   // only blocked tasks remain
	ExitReasonMaxIterations             // hit the iteration budget
	ExitReasonMaxDuration               // hit the wall-clock budget
	ExitReasonCircuitBreaker            // sustained stagnation
	ExitReasonInterrupted               // context cancelled
	ExitReasonDryRun                    // dry run, nothing executed
	ExitReasonFatal                     // unrecoverable error
)

// String returns a human-readable description of the exit reason.
func (r ExitReason) String() string {
	switch r {
	case ExitReasonDone:
		return "completed"
	case ExitReasonBlocked:
		return "blocked"
	case ExitReasonMaxIterations:
		return "max iterations"
	case ExitReasonMaxDuration:
		return "max duration"
	case ExitReasonCircuitBreaker:
		return "circuit breaker"
	case ExitReasonInterrupted:
		return "interrupted"
	case ExitReasonDryRun:
		return "dry run"
	case ExitReasonFatal:
		return "fatal error"
	default:
		return "unknown"
	}
}

// Result contains the outcome of a loop execution.
type Result struct {
	Reason     ExitReason
	Iterations int
	Err        error
}

// ExitCode maps the result to the process exit status: 0 when every task is
// done, 2 on a circuit-breaker halt, 1 for everything that stops with work
// remaining.
func (r Result) ExitCode() int {
	switch r.Reason {
	case ExitReasonDone, ExitReasonDryRun:
		return config.ExitDone
	case ExitReasonCircuitBreaker:
		return config.ExitCircuitBreaker
	default:
		return config.ExitBudgetExceeded
	}
}

// Workspace is the version-control surface the loop needs. *vcs.Git
// implements it; tests supply fakes.
type Workspace interface {
	Fingerprint() (string, error)
	Commit(message string, skipHooks bool) (bool, error)
	Revert(iteration int, reason string) (bool, error)
}

// Options holds the collaborators for creating an Orchestrator. This struct
// enables test-friendly construction with explicit dependencies.
type Options struct {
	Config     *config.Config
	Dir        string
	Store      *tasklist.Store
	Git        Workspace
	Invoker    agent.Invoker
	Prompts    agent.PromptBuilder // optional, defaults to DefaultPromptBuilder
	Failures   *ledger.FailureLedger
	Iterations *ledger.IterationLog
	Output     io.Writer // optional, defaults to os.Stdout
	RunID      string
	StartTime  time.Time // optional, for deterministic time-based testing
}

// Orchestrator owns the iteration loop: it pulls counts from the task store,
// consults the stagnation tracker, invokes the agent, resolves the verdict
// from the collected signals, and applies the commit and failure-ledger
// policy. Exactly one invocation is outstanding at a time.
type Orchestrator struct {
	cfg        *config.Config
	dir        string
	store      *tasklist.Store
	git        Workspace
	invoker    agent.Invoker
	prompts    agent.PromptBuilder
	failures   *ledger.FailureLedger
	iterations *ledger.IterationLog
	renderer   *Renderer
	tracker    *StagnationTracker
	runID      string
	startTime  time.Time
	log        *logging.Logger
}

// New creates an Orchestrator from explicit options.
func New(opts Options) *Orchestrator {
	prompts := opts.Prompts
	if prompts == nil {
		prompts = agent.DefaultPromptBuilder{}
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	return &Orchestrator{
		cfg:        opts.Config,
		dir:        opts.Dir,
		store:      opts.Store,
		git:        opts.Git,
		invoker:    opts.Invoker,
		prompts:    prompts,
		failures:   opts.Failures,
		iterations: opts.Iterations,
		renderer:   NewRenderer(out),
		tracker:    NewStagnationTracker(opts.Config.MaxStagnant),
		runID:      opts.RunID,
		startTime:  opts.StartTime,
		log:        logging.With("component", "loop"),
	}
}

// Plan runs the first phase of a two-phase run: one agent invocation that
// generates the task document, followed by validation. An unusable document
// is fatal; the loop must not start without work to do.
func (o *Orchestrator) Plan(ctx context.Context) error {
	o.renderer.Planning(o.store.TaskFile())

	prompt := o.prompts.Build(agent.PromptRequest{
		TaskFile: o.store.TaskFile(),
		Planning: true,
	})

	res, err := o.invoker.Invoke(ctx, o.invokeConfig(o.cfg.Model), prompt)
	if err != nil {
		return fmt.Errorf("planning invocation failed: %w", err)
	}
	if res.TimedOut {
		return fmt.Errorf("planning invocation timed out after %s", o.cfg.TaskTimeout.Std())
	}

	doc, err := o.store.Load()
	if err != nil {
		return fmt.Errorf("planning produced no readable task document: %w", err)
	}

	ok, warnings := o.store.Validate(doc)
	for _, w := range warnings {
		o.log.Warn("task document warning", "warning", w)
	}
	if !ok {
		return fmt.Errorf("generated task document has no pending tasks")
	}

	o.log.Info("task document generated", "tasks", len(doc.Tasks))
	return nil
}

// Run executes the iteration loop until an exit condition is met.
func (o *Orchestrator) Run(ctx context.Context) Result {
	if o.startTime.IsZero() {
		o.startTime = time.Now()
	}

	if err := o.store.InsertCheckpoints(o.cfg.CheckpointInterval); err != nil {
		return Result{Reason: ExitReasonFatal, Err: err}
	}

	iteration := 0
	for {
		if ctx.Err() != nil {
			return Result{Reason: ExitReasonInterrupted, Iterations: iteration}
		}

		if max := o.cfg.MaxDuration.Std(); max > 0 && time.Since(o.startTime) >= max {
			return o.finish(ExitReasonMaxDuration, iteration)
		}

		doc, err := o.store.Load()
		if err != nil {
			return Result{Reason: ExitReasonFatal, Iterations: iteration, Err: err}
		}

		pending := doc.CountByState(tasklist.StatePending)
		if pending == 0 {
			if doc.CountByState(tasklist.StateBlocked) > 0 {
				return o.finish(ExitReasonBlocked, iteration)
			}
			return o.finish(ExitReasonDone, iteration)
		}

		// The stage for this iteration comes from the count measured at
		// the previous check.
		o.tracker.Observe(pending)
		stage := o.tracker.Stage()
		if stage == StageCircuitBreak {
			o.renderer.CircuitBreaker(o.tracker.Count(), o.failures.Path())
			return Result{Reason: ExitReasonCircuitBreaker, Iterations: iteration}
		}

		if iteration >= o.cfg.MaxIterations {
			return o.finish(ExitReasonMaxIterations, iteration)
		}
		iteration++

		if o.cfg.DryRun {
			o.dryRun(iteration, doc, stage)
			return Result{Reason: ExitReasonDryRun, Iterations: iteration}
		}

		if err := o.runIteration(ctx, iteration, doc, pending, stage); err != nil {
			return Result{Reason: ExitReasonFatal, Iterations: iteration, Err: err}
		}
	}
}

// runIteration executes a single agent invocation and applies the verdict
// policy. Iteration-level failures are absorbed; only infrastructure errors
// (unreadable document, broken git) propagate.
func (o *Orchestrator) runIteration(ctx context.Context, iteration int, before *tasklist.Document, prePending int, stage Stage) error {
	task := ""
	if next := before.NextPending(); next != nil {
		task = next.Title
	}

	if stage != StageNormal {
		o.log.Info("stagnation recovery active", "stage", stage.String(), "stagnant", o.tracker.Count())
	}

	model := o.cfg.Model
	if stage == StageEscalate && o.cfg.EscalationModel != "" {
		model = o.cfg.EscalationModel
	}

	prompt := o.prompts.Build(agent.PromptRequest{
		TaskFile:    o.store.TaskFile(),
		Instruction: stage.Instruction(),
		AvoidTasks:  o.avoidTasks(),
	})

	preFingerprint, err := o.git.Fingerprint()
	if err != nil {
		return fmt.Errorf("failed to fingerprint workspace: %w", err)
	}

	res, err := o.invoker.Invoke(ctx, o.invokeConfig(model), prompt)
	if err != nil {
		// The invocation never produced a result; absorb and carry on.
		o.log.Error("agent invocation failed", "iteration", iteration, "error", err)
		o.recordFailure(iteration, task, ledger.CategoryCrash, err.Error())
		o.renderer.Iteration(iteration, o.cfg.MaxIterations, VerdictUnknown, task, 0, "invocation failed")
		o.appendIteration(iteration, task, VerdictUnknown, "invocation failed", err.Error(), 0)
		return nil
	}

	// Repair a truncated document before reading post-state.
	if _, err := o.store.RecoverIfCorrupted(); err != nil {
		o.log.Warn("corruption check failed", "error", err)
	}

	after, err := o.store.Load()
	if err != nil {
		return fmt.Errorf("failed to read task document after iteration: %w", err)
	}

	postFingerprint, err := o.git.Fingerprint()
	if err != nil {
		return fmt.Errorf("failed to fingerprint workspace: %w", err)
	}

	signals := Collect(
		res.Output, res.ExitCode,
		preFingerprint, postFingerprint,
		prePending, after.CountByState(tasklist.StatePending),
	)
	verdict := Resolve(signals)

	// Best-effort attribution: prefer the checkbox that actually flipped
	// over the task the agent was pointed at.
	if title, outcome := tasklist.DetectNewlyCompleted(before, after); outcome == tasklist.DetectFound {
		task = title
	}

	note := o.applyVerdict(iteration, verdict, task, res)

	o.renderer.Iteration(iteration, o.cfg.MaxIterations, verdict, task, res.Duration, note)
	o.appendIteration(iteration, task, verdict, note, errorTail(verdict, res.Output), res.Duration)
	return nil
}

// applyVerdict runs the commit / revert / failure-ledger policy for the
// verdict and returns the note for the iteration line.
func (o *Orchestrator) applyVerdict(iteration int, verdict Verdict, task string, res *agent.Result) string {
	switch verdict {
	case VerdictVerified, VerdictCompleted, VerdictPartial:
		if !o.cfg.AutoCommit {
			return "auto-commit off"
		}
		committed, err := o.git.Commit(commitMessage(verdict, task, iteration), o.cfg.SkipHooks)
		if err != nil {
			o.log.Error("commit failed", "iteration", iteration, "error", err)
			return "commit error"
		}
		if !committed {
			return "nothing committed"
		}
		return "committed"

	case VerdictSuspicious:
		o.recordFailure(iteration, task, ledger.CategorySuspicious, "completion claimed without workspace changes")
		return "failure recorded"

	case VerdictNoProgress:
		o.recordFailure(iteration, task, ledger.CategoryNoProgress, "no workspace changes and no task marked done")
		return "failure recorded"

	case VerdictTimeout:
		o.recordFailure(iteration, task, ledger.CategoryTimeout,
			fmt.Sprintf("invocation exceeded %s", o.cfg.TaskTimeout.Std()))
		stashed, err := o.git.Revert(iteration, "agent timed out")
		if err != nil {
			o.log.Error("revert failed", "iteration", iteration, "error", err)
			return "revert error"
		}
		if stashed {
			return "work stashed"
		}
		return "nothing to revert"

	case VerdictIncomplete:
		// Partial evidence without a clear claim; the agent may have
		// crashed mid-edit. Retried without penalty.
		return "will retry"

	case VerdictBlocked:
		return "task blocked"
	}
	return ""
}

// dryRun prints what the next iteration would do without invoking anything.
func (o *Orchestrator) dryRun(iteration int, doc *tasklist.Document, stage Stage) {
	task := ""
	if next := doc.NextPending(); next != nil {
		task = next.Title
	}
	model := o.cfg.Model
	if stage == StageEscalate && o.cfg.EscalationModel != "" {
		model = o.cfg.EscalationModel
	}
	o.renderer.Iteration(iteration, o.cfg.MaxIterations, VerdictUnknown, task, 0,
		fmt.Sprintf("dry run: would invoke %s", model))
}

// finish prints the run summary and builds the final Result.
func (o *Orchestrator) finish(reason ExitReason, iterations int) Result {
	res := Result{Reason: reason, Iterations: iterations}
	if doc, err := o.store.Load(); err == nil {
		done, total := doc.Progress()
		o.renderer.Summary(res, done, total)
	}
	return res
}

func (o *Orchestrator) invokeConfig(model string) agent.InvokeConfig {
	return agent.InvokeConfig{
		Model:   model,
		Dir:     o.dir,
		Timeout: o.cfg.TaskTimeout.Std(),
	}
}

// avoidTasks maps recently failed tasks to their latest failure reason for
// prompt injection. Advisory only.
func (o *Orchestrator) avoidTasks() map[string]string {
	summary, err := o.failures.Summary()
	if err != nil {
		o.log.Warn("failed to read failure ledger", "error", err)
		return nil
	}
	if len(summary) == 0 {
		return nil
	}

	avoid := make(map[string]string, len(summary))
	for task, rec := range summary {
		avoid[task] = rec.Reason
	}
	return avoid
}

func (o *Orchestrator) recordFailure(iteration int, task, category, reason string) {
	if err := o.failures.Record(iteration, task, category, reason); err != nil {
		o.log.Error("failed to record failure", "error", err)
		return
	}

	offenders, err := o.failures.RepeatOffenders(o.cfg.MaxStagnant)
	if err == nil && len(offenders) > 0 {
		o.log.Warn("tasks failing repeatedly; consider blocking them with [~]",
			"tasks", strings.Join(offenders, ", "))
	}
}

func (o *Orchestrator) appendIteration(iteration int, task string, verdict Verdict, notes, errTail string, d time.Duration) {
	rec := ledger.IterationRecord{
		Run:       o.runID,
		Iteration: iteration,
		Timestamp: time.Now().UTC(),
		Task:      task,
		Verdict:   verdict.String(),
		Notes:     notes,
		ErrorTail: errTail,
		Duration:  d,
	}
	if err := o.iterations.Append(rec); err != nil {
		o.log.Error("failed to append iteration record", "error", err)
	}
}

func commitMessage(verdict Verdict, task string, iteration int) string {
	switch {
	case verdict == VerdictPartial && task != "":
		return fmt.Sprintf("ralph: partial progress on %s", task)
	case task != "":
		return fmt.Sprintf("ralph: %s", task)
	default:
		return fmt.Sprintf("ralph: iteration %d progress", iteration)
	}
}

// errorTail keeps the last lines of agent output for verdicts that need
// diagnosing later.
func errorTail(verdict Verdict, output string) string {
	switch verdict {
	case VerdictTimeout, VerdictSuspicious, VerdictNoProgress, VerdictUnknown:
	default:
		return ""
	}

	lines := strings.Split(strings.TrimRight(output, "\n"), "\n")
	const keep = 20
	if len(lines) > keep {
		lines = lines[len(lines)-keep:]
	}
	return strings.Join(lines, "\n")
}
