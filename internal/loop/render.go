package loop

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Verdict line styles.
var (
	goodStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	badStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	blockedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("213")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))
)

func styleFor(v Verdict) lipgloss.Style {
	switch v {
	case VerdictVerified, VerdictCompleted:
		return goodStyle
	case VerdictPartial, VerdictIncomplete:
		return warnStyle
	case VerdictBlocked:
		return blockedStyle
	default:
		return badStyle
	}
}

// Renderer prints the per-iteration verdict lines and the final summaries.
// Styling is applied only when writing to a terminal. Rendering is
// decorative; control flow never depends on it.
type Renderer struct {
	out    io.Writer
	styled bool
}

// NewRenderer creates a renderer for the given writer.
func NewRenderer(out io.Writer) *Renderer {
	styled := false
	if f, ok := out.(*os.File); ok {
		styled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return &Renderer{out: out, styled: styled}
}

func (r *Renderer) render(style lipgloss.Style, s string) string {
	if !r.styled {
		return s
	}
	return style.Render(s)
}

// Iteration prints the one-line verdict for an iteration: enough detail to
// diagnose the iteration without opening the raw logs.
func (r *Renderer) Iteration(iteration, max int, verdict Verdict, task string, d time.Duration, note string) {
	label := r.render(styleFor(verdict), fmt.Sprintf("%-11s", verdict.String()))
	line := fmt.Sprintf("iter %2d/%d  %s", iteration, max, label)
	if task != "" {
		line += "  " + task
	}
	line += "  " + r.render(dimStyle, fmt.Sprintf("(%s)", d.Round(time.Second)))
	if note != "" {
		line += "  " + r.render(dimStyle, note)
	}
	fmt.Fprintln(r.out, line)
}

// Planning prints the two-phase first-stage banner.
func (r *Renderer) Planning(taskFile string) {
	fmt.Fprintf(r.out, "planning: generating %s\n", taskFile)
}

// CircuitBreaker prints remediation guidance before a circuit-breaker exit.
func (r *Renderer) CircuitBreaker(stagnant int, failuresPath string) {
	fmt.Fprintln(r.out, r.render(badStyle, "circuit breaker: halting after sustained stagnation"))
	fmt.Fprintf(r.out, "  %d consecutive iterations made no progress.\n", stagnant)
	fmt.Fprintf(r.out, "  Review the failure ledger at %s, fix or block the stuck tasks\n", failuresPath)
	fmt.Fprintln(r.out, "  by editing their checkboxes to [~], then start a new run.")
}

// Summary prints the final run outcome line.
func (r *Renderer) Summary(res Result, done, total int) {
	fmt.Fprintf(r.out, "%s after %d iteration(s): %d/%d tasks done\n",
		res.Reason, res.Iterations, done, total)
}
