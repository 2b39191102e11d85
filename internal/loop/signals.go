// Package loop is the iteration control and verification engine: it drives
// the external agent over the task document, reconciles the independent
// progress signals each iteration produces into a single verdict, and keeps
// an unreliable worker moving via the stagnation recovery stages.
package loop

import (
	"github.com/thruflo/ralph/internal/agent"
)

// Signals is the tuple of independent progress observations collected around
// one agent invocation.
type Signals struct {
	// PromiseDone means the output contained the completion marker token.
	PromiseDone bool

	// PromiseBlocked means the output contained the blocked marker token.
	PromiseBlocked bool

	// TaskMarkedDone means the pending-task count dropped across the
	// invocation. The checkbox edit is the strongest signal: it is an
	// explicit, task-specific claim.
	TaskMarkedDone bool

	// FilesChanged means the workspace fingerprint differs across the
	// invocation. The weakest signal: any edit, not necessarily completion.
	FilesChanged bool

	// TimedOut means the watchdog terminated the invocation.
	TimedOut bool
}

// Collect derives the signal tuple from the raw observations of one
// invocation. Pure transformation, no side effects.
func Collect(output string, exitCode int, preFingerprint, postFingerprint string, prePending, postPending int) Signals {
	return Signals{
		PromiseDone:    agent.ContainsToken(output, agent.TokenTaskDone),
		PromiseBlocked: agent.ContainsToken(output, agent.TokenTaskBlocked),
		TaskMarkedDone: postPending < prePending,
		FilesChanged:   postFingerprint != preFingerprint,
		TimedOut:       exitCode == agent.TimeoutExitCode,
	}
}
