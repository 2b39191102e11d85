// Package vcs wraps the version-controlled workspace behind a small command
// runner so the loop can observe and persist workspace state. The system git
// binary is used directly: commits must run the repository's own hooks and
// stashes must behave exactly as they would for a human operator.
package vcs

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os/exec"
	"strings"

	"github.com/thruflo/ralph/internal/logging"
)

// Runner executes a git subcommand and returns its combined output.
// Tests substitute a fake; production uses CommandRunner.
type Runner interface {
	Run(args ...string) ([]byte, error)
}

// CommandRunner runs git against a workspace directory.
type CommandRunner struct {
	dir string
}

// NewCommandRunner creates a runner rooted at the given workspace.
func NewCommandRunner(dir string) *CommandRunner {
	return &CommandRunner{dir: dir}
}

// Run executes git with the given arguments.
func (r *CommandRunner) Run(args ...string) ([]byte, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = r.dir

	out, err := cmd.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("git %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return out, nil
}

// Git exposes the workspace operations the loop needs.
type Git struct {
	runner Runner
	log    *logging.Logger
}

// New creates a Git client for the given workspace directory.
func New(dir string) *Git {
	return NewWithRunner(NewCommandRunner(dir))
}

// NewWithRunner creates a Git client over an explicit runner.
func NewWithRunner(r Runner) *Git {
	return &Git{
		runner: r,
		log:    logging.With("component", "vcs"),
	}
}

// IsRepo reports whether the workspace is inside a git work tree.
func (g *Git) IsRepo() bool {
	out, err := g.runner.Run("rev-parse", "--is-inside-work-tree")
	return err == nil && strings.TrimSpace(string(out)) == "true"
}

// HasCommits reports whether the repository has at least one commit.
func (g *Git) HasCommits() bool {
	_, err := g.runner.Run("rev-parse", "--verify", "HEAD")
	return err == nil
}

// Head returns the current HEAD commit hash.
func (g *Git) Head() (string, error) {
	out, err := g.runner.Run("rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// ShowFile returns the contents of a file at the given ref.
func (g *Git) ShowFile(ref, path string) ([]byte, error) {
	return g.runner.Run("show", ref+":"+path)
}

// Fingerprint computes a digest over the workspace's uncommitted state: the
// unstaged diff, the staged diff, and the untracked file listing. Equal
// fingerprints imply no observable workspace change.
func (g *Git) Fingerprint() (string, error) {
	h := sha256.New()

	for _, args := range [][]string{
		{"diff"},
		{"diff", "--cached"},
		{"ls-files", "--others", "--exclude-standard"},
	} {
		out, err := g.runner.Run(args...)
		if err != nil {
			return "", fmt.Errorf("fingerprint failed: %w", err)
		}
		h.Write(out)
		h.Write([]byte{0})
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// stagedFiles lists the paths currently staged for commit.
func (g *Git) stagedFiles() ([]string, error) {
	out, err := g.runner.Run("diff", "--cached", "--name-only")
	if err != nil {
		return nil, err
	}

	var files []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			files = append(files, line)
		}
	}
	return files, nil
}

// Commit stages all changes, unstages sensitive and build-artifact paths,
// and commits what remains. It returns (false, nil) when there was nothing
// left to commit or when the pre-commit hook rejected the commit; in the
// hook case the changes stay staged for inspection. Calling Commit with a
// clean tree is a safe no-op.
func (g *Git) Commit(message string, skipHooks bool) (bool, error) {
	if _, err := g.runner.Run("add", "-A"); err != nil {
		return false, fmt.Errorf("failed to stage changes: %w", err)
	}

	staged, err := g.stagedFiles()
	if err != nil {
		return false, fmt.Errorf("failed to list staged files: %w", err)
	}

	remaining := 0
	for _, path := range staged {
		if !ExcludedFromCommit(path) {
			remaining++
			continue
		}
		if _, err := g.runner.Run("reset", "-q", "HEAD", "--", path); err != nil {
			return false, fmt.Errorf("failed to unstage %s: %w", path, err)
		}
		g.log.Debug("excluded path from commit", "path", path)
	}

	if remaining == 0 {
		g.log.Debug("nothing to commit")
		return false, nil
	}

	args := []string{"commit", "-m", message}
	if skipHooks {
		args = append(args, "--no-verify")
	}

	if out, err := g.runner.Run(args...); err != nil {
		// Hook rejections and other commit failures are absorbed: the
		// changes stay staged and the loop carries on.
		g.log.Warn("commit failed; changes left staged", "error", err, "output", strings.TrimSpace(string(out)))
		return false, nil
	}

	return true, nil
}

// Revert preserves the workspace's uncommitted state by stashing it with a
// descriptive message. Nothing is ever discarded. Calling Revert on a clean
// tree is a safe no-op.
func (g *Git) Revert(iteration int, reason string) (bool, error) {
	if _, err := g.runner.Run("add", "-A"); err != nil {
		return false, fmt.Errorf("failed to stage changes: %w", err)
	}

	out, err := g.runner.Run("status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("failed to check workspace status: %w", err)
	}
	if strings.TrimSpace(string(out)) == "" {
		return false, nil
	}

	message := fmt.Sprintf("ralph: iteration %d reverted (%s)", iteration, reason)
	if _, err := g.runner.Run("stash", "push", "-m", message); err != nil {
		return false, fmt.Errorf("failed to stash changes: %w", err)
	}

	g.log.Warn("stashed uncommitted work", "iteration", iteration, "reason", reason)
	return true, nil
}
