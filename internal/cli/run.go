package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/thruflo/ralph/internal/agent"
	"github.com/thruflo/ralph/internal/config"
	"github.com/thruflo/ralph/internal/ledger"
	"github.com/thruflo/ralph/internal/logging"
	"github.com/thruflo/ralph/internal/loop"
	"github.com/thruflo/ralph/internal/tasklist"
	"github.com/thruflo/ralph/internal/vcs"
)

var (
	runModel         string
	runDir           string
	runMaxIterations int
	runMaxStagnant   int
	runTaskTimeout   time.Duration
	runAutoCommit    bool
	runSkipHooks     bool
	runTwoPhase      bool
	runDryRun        bool
	runVerbose       bool
	runDebug         bool
)

// gitClient is the version-control surface the run command wires up.
// *vcs.Git implements it; tests substitute a fake.
type gitClient interface {
	IsRepo() bool
	HasCommits() bool
	ShowFile(ref, path string) ([]byte, error)
	loop.Workspace
}

// Overridable collaborators for tests.
var (
	runInvoker agent.Invoker
	newGit     = func(dir string) gitClient { return vcs.New(dir) }
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the iteration loop",
	Long: `Runs the iteration loop against the task document in the workspace.

The loop exits 0 when every task is done, 1 when an iteration or duration
budget is exhausted with work remaining, and 2 on a circuit-breaker halt
after sustained stagnation.

Example:
  ralph run
  ralph run --dir ~/src/project --max-iterations 20
  ralph run --two-phase --model opus
  ralph run --dry-run`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runModel, "model", "m", "", "execution model (default from config)")
	runCmd.Flags().StringVarP(&runDir, "dir", "d", ".", "workspace directory")
	runCmd.Flags().IntVar(&runMaxIterations, "max-iterations", 0, "iteration budget (default from config)")
	runCmd.Flags().IntVar(&runMaxStagnant, "max-stagnant", 0, "stagnant iterations before model escalation (default from config)")
	runCmd.Flags().DurationVar(&runTaskTimeout, "task-timeout", 0, "per-invocation time budget (default from config)")
	runCmd.Flags().BoolVar(&runAutoCommit, "auto-commit", true, "commit verified work after each iteration")
	runCmd.Flags().BoolVar(&runSkipHooks, "skip-hooks", false, "pass --no-verify to git commit")
	runCmd.Flags().BoolVar(&runTwoPhase, "two-phase", false, "generate the task document first when it is missing")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "show what the next iteration would do without running anything")
	runCmd.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "verbose logging")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "debug logging")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	logging.SetVerbosity(runVerbose, runDebug)

	workspace, err := filepath.Abs(runDir)
	if err != nil {
		return fmt.Errorf("failed to resolve workspace directory: %w", err)
	}

	cfg, err := config.Load(workspace)
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := executeRun(ctx, workspace, cfg)
	if err != nil {
		return err
	}
	if res.Err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", res.Err)
	}

	if code := res.ExitCode(); code != 0 {
		// The run summary has already been printed; the error only
		// carries the status code back to main.
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		return &ExitError{Code: code, Reason: res.Reason.String()}
	}
	return nil
}

// applyRunFlags layers explicitly set flags over the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	f := cmd.Flags()
	if f.Changed("model") {
		cfg.Model = runModel
	}
	if f.Changed("max-iterations") {
		cfg.MaxIterations = runMaxIterations
	}
	if f.Changed("max-stagnant") {
		cfg.MaxStagnant = runMaxStagnant
	}
	if f.Changed("task-timeout") {
		cfg.TaskTimeout = config.Duration(runTaskTimeout)
	}
	if f.Changed("auto-commit") {
		cfg.AutoCommit = runAutoCommit
	}
	if f.Changed("skip-hooks") {
		cfg.SkipHooks = runSkipHooks
	}
	if f.Changed("two-phase") {
		cfg.TwoPhase = runTwoPhase
	}
	cfg.DryRun = runDryRun
}

// executeRun checks prerequisites, assembles the collaborators and runs the
// loop. Prerequisite failures (no git repository, no agent binary, no task
// document) are fatal before the first iteration.
func executeRun(ctx context.Context, workspace string, cfg *config.Config) (loop.Result, error) {
	invoker := runInvoker
	if invoker == nil {
		local := &agent.LocalInvoker{Command: agent.DefaultCommand}
		if err := local.Available(); err != nil {
			return loop.Result{}, err
		}
		invoker = local
	}

	git := newGit(workspace)
	if !git.IsRepo() {
		return loop.Result{}, fmt.Errorf("%s is not a git repository", workspace)
	}

	store := tasklist.NewStore(workspace, cfg.TaskFile)
	if git.HasCommits() {
		store.SetRestorer(git)
	}

	if !store.Exists() && !cfg.TwoPhase {
		return loop.Result{}, fmt.Errorf("task document %s not found; create it or pass --two-phase", cfg.TaskFile)
	}

	snapshot := config.NewSnapshot(workspace, *cfg)
	if !cfg.DryRun {
		if err := snapshot.Write(); err != nil {
			return loop.Result{}, err
		}
	}

	stateDir := filepath.Join(workspace, cfg.StateDir)
	o := loop.New(loop.Options{
		Config:     cfg,
		Dir:        workspace,
		Store:      store,
		Git:        git,
		Invoker:    invoker,
		Failures:   ledger.NewFailureLedger(filepath.Join(stateDir, "failures.jsonl")),
		Iterations: ledger.NewIterationLog(filepath.Join(stateDir, "iterations.jsonl"), cfg.MaxLogLines),
		RunID:      snapshot.RunID,
	})

	if !store.Exists() {
		if cfg.DryRun {
			return loop.Result{}, fmt.Errorf("cannot dry-run without a task document")
		}
		if err := o.Plan(ctx); err != nil {
			return loop.Result{}, err
		}
	}

	return o.Run(ctx), nil
}
