package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/pipewright/pipewright/internal/events"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("33"))
	failureStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	skippedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// eventRenderer formats the progress stream for the terminal. Styling is
// dropped when stdout is not a TTY so piped output stays clean.
type eventRenderer struct {
	tty bool
}

func (r eventRenderer) paint(style lipgloss.Style, s string) string {
	if !r.tty {
		return s
	}
	return style.Render(s)
}

func (r eventRenderer) render(ev events.ExecutionEvent) string {
	switch ev.Type {
	case events.PipelineStarted, events.PipelineResumed:
		return r.paint(titleStyle, fmt.Sprintf("▶ pipeline %s (%v)", verb(ev.Type), ev.Data["mode"]))
	case events.PipelineCompleted:
		return r.paint(successStyle, fmt.Sprintf("✔ pipeline completed (%v tokens)", ev.Data["total_tokens"]))
	case events.PipelineFailed:
		return r.paint(failureStyle, fmt.Sprintf("✘ pipeline failed: %v", ev.Data["error"]))
	case events.PipelinePaused:
		return r.paint(skippedStyle, "⏸ pipeline paused")
	case events.PipelineCancelled:
		return r.paint(skippedStyle, "■ pipeline cancelled")
	case events.StepStarted:
		return r.paint(runningStyle, fmt.Sprintf("● %s started (attempt %v)", ev.StepID, ev.Data["attempt"]))
	case events.StepCompleted:
		return r.paint(successStyle, fmt.Sprintf("✔ %s completed (%v tokens, %v)", ev.StepID, ev.Data["tokens_used"], ev.Data["duration"]))
	case events.StepFailed:
		return r.paint(failureStyle, fmt.Sprintf("✘ %s failed: %v", ev.StepID, ev.Data["error"]))
	case events.StepRetrying:
		return r.paint(runningStyle, fmt.Sprintf("↻ %s retrying (attempt %v)", ev.StepID, ev.Data["next_attempt"]))
	case events.StepSkipped:
		return r.paint(skippedStyle, fmt.Sprintf("→ %s skipped", ev.StepID))
	case events.VariablesUpdated:
		return r.paint(dimStyle, fmt.Sprintf("  variables updated from %s", ev.StepID))
	}
	return r.paint(dimStyle, string(ev.Type))
}

func verb(t events.Type) string {
	if t == events.PipelineResumed {
		return "resumed"
	}
	return "started"
}
