// Package agent is the boundary to the external code-generation agent. The
// agent itself is a black box: ralph hands it a prompt and a typed invocation
// config, and observes only its output text and exit status.
package agent

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Completion marker tokens the agent emits on their own line, matched
// verbatim and case-sensitively.
const (
	TokenTaskDone    = "<ralph>TASK_DONE</ralph>"
	TokenTaskBlocked = "<ralph>TASK_BLOCKED</ralph>"
)

// TimeoutExitCode is the reserved exit status reported when the watchdog
// terminated the invocation. It is distinguishable from any exit code the
// agent process produces on its own termination paths ralph cares about.
const TimeoutExitCode = 124

// DefaultCommand is the agent binary invoked for each iteration.
const DefaultCommand = "claude"

// InvokeConfig is the typed configuration for one agent invocation. Prompt
// text stays separate: the config says how to run, the prompt says what.
type InvokeConfig struct {
	Model     string
	Dir       string
	Timeout   time.Duration
	ExtraArgs []string
}

// Result is the observable outcome of one invocation.
type Result struct {
	Output   string
	ExitCode int
	TimedOut bool
	Duration time.Duration
}

// ContainsToken reports whether output contains the given marker token on
// its own line. Leading and trailing whitespace on the line is ignored;
// tokens embedded in surrounding prose do not match.
func ContainsToken(output, token string) bool {
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == token {
			return true
		}
	}
	return false
}

// ContainsToken reports whether the output contains the given marker token
// on its own line.
func (r *Result) ContainsToken(token string) bool {
	return ContainsToken(r.Output, token)
}

// Invoker runs the external agent. Implementations must honor the timeout
// in the config and report watchdog termination via Result.TimedOut.
type Invoker interface {
	Invoke(ctx context.Context, cfg InvokeConfig, prompt string) (*Result, error)
}

// Observer receives streamed output lines from an in-flight invocation. It
// is decorative: observer behavior must never affect control-flow outcomes.
// Close is called exactly once on every exit path of the invocation.
type Observer interface {
	Observe(line string)
	Close()
}

// LocalInvoker executes the agent as a local subprocess with a watchdog
// timer. A watchdog expiry forcibly terminates the process and maps to
// TimeoutExitCode, distinguishable from other abnormal terminations.
type LocalInvoker struct {
	Command  string
	Observer Observer
}

// NewLocalInvoker creates a LocalInvoker for the default agent command.
func NewLocalInvoker() *LocalInvoker {
	return &LocalInvoker{Command: DefaultCommand}
}

// Available checks that the agent binary can be found. Callers treat a
// failure here as fatal at startup.
func (l *LocalInvoker) Available() error {
	command := l.Command
	if command == "" {
		command = DefaultCommand
	}
	if _, err := exec.LookPath(command); err != nil {
		return fmt.Errorf("agent command %q not found: %w", command, err)
	}
	return nil
}

// Invoke runs one agent invocation, streaming output line by line. The
// observer, when set, is torn down on every exit path.
func (l *LocalInvoker) Invoke(ctx context.Context, cfg InvokeConfig, prompt string) (*Result, error) {
	command := l.Command
	if command == "" {
		command = DefaultCommand
	}

	invokeCtx := ctx
	var cancel context.CancelFunc
	if cfg.Timeout > 0 {
		invokeCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	if l.Observer != nil {
		defer l.Observer.Close()
	}

	args := []string{"-p", prompt, "--dangerously-skip-permissions"}
	if cfg.Model != "" {
		args = append(args, "--model", cfg.Model)
	}
	args = append(args, cfg.ExtraArgs...)

	cmd := exec.CommandContext(invokeCtx, command, args...)
	cmd.Dir = cfg.Dir
	// Orphaned grandchildren can hold the output pipes open after the
	// watchdog kills the agent; bound how long that can stall the drain.
	cmd.WaitDelay = 5 * time.Second

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start agent: %w", err)
	}

	var mu sync.Mutex
	var output strings.Builder

	collect := func(r *bufio.Scanner) {
		// Long JSON lines need a larger buffer than the scanner default.
		buf := make([]byte, 64*1024)
		r.Buffer(buf, 1024*1024)

		for r.Scan() {
			line := r.Text()
			mu.Lock()
			output.WriteString(line)
			output.WriteByte('\n')
			mu.Unlock()

			if l.Observer != nil {
				l.Observer.Observe(line)
			}
		}
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		collect(bufio.NewScanner(stdout))
	}()
	go func() {
		defer wg.Done()
		collect(bufio.NewScanner(stderr))
	}()

	// The collectors must hit EOF before Wait runs: Wait closes the pipe
	// read ends, discarding any buffered tail, and the completion tokens
	// are usually the last lines written. When something keeps the pipes
	// open past the watchdog, WaitDelay forces them closed after the
	// context fires, so the drain stays bounded.
	wg.Wait()
	waitErr := cmd.Wait()
	duration := time.Since(start)

	result := &Result{
		Output:   output.String(),
		Duration: duration,
	}

	// Watchdog expiry wins over whatever exit status the kill produced.
	if invokeCtx.Err() != nil && errors.Is(invokeCtx.Err(), context.DeadlineExceeded) {
		result.TimedOut = true
		result.ExitCode = TimeoutExitCode
		return result, nil
	}

	if waitErr != nil {
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("agent invocation failed: %w", waitErr)
	}

	return result, nil
}
