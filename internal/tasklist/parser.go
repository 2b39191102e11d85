package tasklist

import (
	"fmt"
	"strings"
)

// Checkpoint task text. Checkpoint tasks carry no files hint; their whole
// point is re-verifying work that already landed.
const (
	checkpointTitle      = "Checkpoint: full regression verification"
	checkpointDesc       = "Run the complete verification suite and fix any regressions before continuing."
	checkpointFiles      = "(none - verification only)"
	checkpointAcceptance = "All project checks pass with no regressions from previously completed tasks."
)

// Parse reads the task document text into a typed task sequence. It is a
// line-oriented parser for the wire format:
//
//	- [ ] **<Title>** [effort: low|medium|high]
//	  - Description: <text>
//	  - Files: <paths>
//	  - Acceptance: <criterion>
//
// Lines that are not task lines or detail lines (headings, prose, blanks)
// are ignored. Detail lines before any task line are an error.
func Parse(text string) ([]Task, error) {
	var tasks []Task

	for i, line := range strings.Split(text, "\n") {
		lineNum := i + 1

		if task, ok := parseTaskLine(line); ok {
			task.Line = lineNum
			tasks = append(tasks, task)
			continue
		}

		key, value, ok := parseDetailLine(line)
		if !ok {
			continue
		}
		if len(tasks) == 0 {
			return nil, fmt.Errorf("line %d: %s detail before any task", lineNum, key)
		}

		current := &tasks[len(tasks)-1]
		switch key {
		case "Description":
			current.Description = value
		case "Files":
			current.Files = value
		case "Acceptance":
			current.Acceptance = value
		}
	}

	return tasks, nil
}

// parseTaskLine parses a checkbox line, returning ok=false for anything else.
func parseTaskLine(line string) (Task, bool) {
	trimmed := strings.TrimSpace(line)

	// Detail lines are also list items; require the checkbox marker.
	if len(trimmed) < len("- [ ] ") || !strings.HasPrefix(trimmed, "- [") {
		return Task{}, false
	}
	if trimmed[4] != ']' || trimmed[5] != ' ' {
		return Task{}, false
	}

	var state State
	switch trimmed[3] {
	case ' ':
		state = StatePending
	case 'x', 'X':
		state = StateDone
	case '~':
		state = StateBlocked
	default:
		return Task{}, false
	}

	rest := strings.TrimSpace(trimmed[6:])

	title, remainder, ok := parseBoldTitle(rest)
	if !ok || title == "" {
		return Task{}, false
	}

	task := Task{
		Title:  title,
		State:  state,
		Effort: parseEffortTag(remainder),
	}
	if title == checkpointTitle || strings.HasPrefix(title, checkpointTitle+" #") {
		task.Checkpoint = true
	}
	return task, true
}

// parseBoldTitle extracts the **bold** title from the start of s.
func parseBoldTitle(s string) (title, remainder string, ok bool) {
	if !strings.HasPrefix(s, "**") {
		return "", "", false
	}
	end := strings.Index(s[2:], "**")
	if end < 0 {
		return "", "", false
	}
	return strings.TrimSpace(s[2 : 2+end]), strings.TrimSpace(s[2+end+2:]), true
}

// parseEffortTag reads an optional "[effort: low]" suffix.
func parseEffortTag(s string) Effort {
	start := strings.Index(s, "[effort:")
	if start < 0 {
		return EffortUnspecified
	}
	end := strings.Index(s[start:], "]")
	if end < 0 {
		return EffortUnspecified
	}

	value := strings.TrimSpace(s[start+len("[effort:") : start+end])
	switch Effort(value) {
	case EffortLow, EffortMedium, EffortHigh:
		return Effort(value)
	default:
		return EffortUnspecified
	}
}

// parseDetailLine parses an indented "- Key: value" line for the known keys.
func parseDetailLine(line string) (key, value string, ok bool) {
	// Detail lines are indented under their task line.
	if !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
		return "", "", false
	}

	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "- ") {
		return "", "", false
	}
	trimmed = trimmed[2:]

	for _, k := range []string{"Description", "Files", "Acceptance"} {
		if strings.HasPrefix(trimmed, k+":") {
			return k, strings.TrimSpace(trimmed[len(k)+1:]), true
		}
	}
	return "", "", false
}

// renderTask formats a task back into document lines.
func renderTask(t Task) []string {
	var checkbox string
	switch t.State {
	case StateDone:
		checkbox = "- [x]"
	case StateBlocked:
		checkbox = "- [~]"
	default:
		checkbox = "- [ ]"
	}

	head := fmt.Sprintf("%s **%s**", checkbox, t.Title)
	if t.Effort != EffortUnspecified && t.Effort != "" {
		head += fmt.Sprintf(" [effort: %s]", t.Effort)
	}

	lines := []string{head}
	if t.Description != "" {
		lines = append(lines, "  - Description: "+t.Description)
	}
	if t.Files != "" {
		lines = append(lines, "  - Files: "+t.Files)
	}
	if t.Acceptance != "" {
		lines = append(lines, "  - Acceptance: "+t.Acceptance)
	}
	return lines
}
