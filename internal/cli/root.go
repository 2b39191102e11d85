// Package cli wires the ralph commands together.
package cli

import (
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "ralph",
	Short: "Autonomous task loop for coding agents",
	Long: `Ralph drives an external coding agent through a markdown task checklist.
Each iteration points the agent at one pending task, verifies progress from
independent signals (checkbox edits, completion tokens, workspace changes),
commits verified work, and steers the agent out of stagnation until the
checklist is done or the circuit breaker halts the run.`,
}

func init() {
	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("ralph version {{.Version}}\n")
}

// ExitError carries a non-zero process exit status out of a command so the
// actual os.Exit happens in main, after deferred cleanup has run. Commands
// return it instead of exiting directly.
type ExitError struct {
	Code   int
	Reason string
}

func (e *ExitError) Error() string { return e.Reason }

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
