package agent

import (
	"fmt"
	"strings"
)

// PromptRequest carries the typed inputs the prompt is built from. The
// prompt wording itself is collaborator territory; the loop only supplies
// these fields.
type PromptRequest struct {
	// TaskFile is the task document path relative to the workspace.
	TaskFile string

	// Instruction is an optional stagnation-stage directive ("try a
	// different approach", "skip the stuck task").
	Instruction string

	// AvoidTasks lists tasks with their most recent failure reason, for
	// the agent to steer around. Advisory only.
	AvoidTasks map[string]string

	// Planning requests a task-generation prompt instead of an iteration
	// prompt (two-phase mode, first phase).
	Planning bool
}

// PromptBuilder renders a PromptRequest into prompt text.
type PromptBuilder interface {
	Build(req PromptRequest) string
}

// DefaultPromptBuilder is the stock iteration prompt.
type DefaultPromptBuilder struct{}

// Build renders the prompt.
func (DefaultPromptBuilder) Build(req PromptRequest) string {
	if req.Planning {
		return fmt.Sprintf(`Read the project in the current directory and write an implementation
checklist to %s. Use exactly this format for each task:

- [ ] **<Title>** [effort: low|medium|high]
  - Description: <text>
  - Files: <comma-separated paths or "(none)">
  - Acceptance: <verifiable criterion>

Order tasks so earlier ones unblock later ones. Do not implement anything yet.`, req.TaskFile)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `Open %s and work on exactly one pending task (checkbox "[ ]"), the first
one unless instructed otherwise. Implement it completely, run the project's
checks, then update its checkbox: "[x]" when done, "[~]" if you are blocked.

When you finish the task, print this line on its own:
%s

If you cannot complete it, mark it "[~]" and print this line on its own:
%s
`, req.TaskFile, TokenTaskDone, TokenTaskBlocked)

	if req.Instruction != "" {
		fmt.Fprintf(&sb, "\nIMPORTANT: %s\n", req.Instruction)
	}

	if len(req.AvoidTasks) > 0 {
		sb.WriteString("\nThese tasks failed recently; avoid them unless you have a genuinely new approach:\n")
		for title, reason := range req.AvoidTasks {
			fmt.Fprintf(&sb, "- %s (%s)\n", title, reason)
		}
	}

	return sb.String()
}
