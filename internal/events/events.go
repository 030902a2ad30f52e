package events

import (
	"time"

	"github.com/pipewright/pipewright/internal/template"
)

// Type identifies the kind of execution event.
type Type string

const (
	PipelineStarted   Type = "pipeline_started"
	PipelinePaused    Type = "pipeline_paused"
	PipelineResumed   Type = "pipeline_resumed"
	PipelineCompleted Type = "pipeline_completed"
	PipelineFailed    Type = "pipeline_failed"
	PipelineCancelled Type = "pipeline_cancelled"
	StepStarted       Type = "step_started"
	StepCompleted     Type = "step_completed"
	StepFailed        Type = "step_failed"
	StepRetrying      Type = "step_retrying"
	StepSkipped       Type = "step_skipped"
	VariablesUpdated  Type = "variables_updated"
)

// ExecutionEvent is one entry in a run's progress stream. Events are emitted
// in causal order relative to the state transition they describe.
type ExecutionEvent struct {
	Type      Type
	RunID     string
	StepID    template.StepID
	Data      map[string]any
	Timestamp time.Time
}

// New constructs a pipeline-level event.
func New(eventType Type, runID string, data map[string]any) ExecutionEvent {
	return ExecutionEvent{
		Type:      eventType,
		RunID:     runID,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// NewStep constructs a step-level event.
func NewStep(eventType Type, runID string, stepID template.StepID, data map[string]any) ExecutionEvent {
	event := New(eventType, runID, data)
	event.StepID = stepID
	return event
}

// IsPipelineEvent reports whether the event describes the run as a whole.
func (e ExecutionEvent) IsPipelineEvent() bool {
	return e.StepID == ""
}

// IsTerminalEvent reports whether the event ends the stream.
func (e ExecutionEvent) IsTerminalEvent() bool {
	switch e.Type {
	case PipelineCompleted, PipelineFailed, PipelineCancelled, PipelinePaused:
		return true
	}
	return false
}
