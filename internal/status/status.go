package status

import (
	pwerrors "github.com/pipewright/pipewright/pkg/errors"
)

// PipelineStatus is the lifecycle state of a pipeline run.
type PipelineStatus string

const (
	PipelineCreated   PipelineStatus = "created"
	PipelineQueued    PipelineStatus = "queued"
	PipelineRunning   PipelineStatus = "running"
	PipelinePaused    PipelineStatus = "paused"
	PipelineCompleted PipelineStatus = "completed"
	PipelineFailed    PipelineStatus = "failed"
	PipelineCancelled PipelineStatus = "cancelled"
	PipelineTimeout   PipelineStatus = "timeout"
)

// StepStatus is the lifecycle state of a single step execution attempt.
type StepStatus string

const (
	StepPending      StepStatus = "pending"
	StepRunning      StepStatus = "running"
	StepWaitingInput StepStatus = "waiting_input"
	StepCompleted    StepStatus = "completed"
	StepFailed       StepStatus = "failed"
	StepSkipped      StepStatus = "skipped"
	StepCancelled    StepStatus = "cancelled"
	StepTimeout      StepStatus = "timeout"
)

// Terminal states have no outgoing transitions.
var validPipelineTransitions = map[PipelineStatus][]PipelineStatus{
	PipelineCreated: {PipelineQueued, PipelineRunning, PipelineCancelled},
	PipelineQueued:  {PipelineRunning, PipelineCancelled},
	PipelineRunning: {PipelinePaused, PipelineCompleted, PipelineFailed, PipelineCancelled, PipelineTimeout},
	PipelinePaused:  {PipelineRunning, PipelineCancelled},
}

var validStepTransitions = map[StepStatus][]StepStatus{
	StepPending:      {StepRunning, StepSkipped, StepCancelled},
	StepRunning:      {StepWaitingInput, StepCompleted, StepFailed, StepCancelled, StepTimeout},
	StepWaitingInput: {StepRunning, StepCancelled, StepTimeout},
}

// IsPipelineTerminal reports whether s has no outgoing transitions.
func IsPipelineTerminal(s PipelineStatus) bool {
	_, ok := validPipelineTransitions[s]
	return !ok
}

// IsPipelineActive reports whether the run is currently in flight.
func IsPipelineActive(s PipelineStatus) bool {
	return s == PipelineRunning || s == PipelinePaused
}

// IsPipelineFailed reports whether s represents a failure outcome.
func IsPipelineFailed(s PipelineStatus) bool {
	return s == PipelineFailed || s == PipelineTimeout
}

// IsStepTerminal reports whether s has no outgoing transitions.
func IsStepTerminal(s StepStatus) bool {
	_, ok := validStepTransitions[s]
	return !ok
}

// IsStepFailed reports whether s represents a failure outcome.
func IsStepFailed(s StepStatus) bool {
	return s == StepFailed || s == StepTimeout
}

// IsStepSatisfied reports whether downstream steps may treat s as a satisfied
// dependency. Skipped counts: partial completion still unblocks dependents.
func IsStepSatisfied(s StepStatus) bool {
	return s == StepCompleted || s == StepSkipped
}

// ValidPipelineTransitions returns the permitted next states from s.
func ValidPipelineTransitions(s PipelineStatus) []PipelineStatus {
	return append([]PipelineStatus(nil), validPipelineTransitions[s]...)
}

// ValidStepTransitions returns the permitted next states from s.
func ValidStepTransitions(s StepStatus) []StepStatus {
	return append([]StepStatus(nil), validStepTransitions[s]...)
}

// ValidatePipelineTransition checks from -> to against the transition table.
func ValidatePipelineTransition(from, to PipelineStatus) error {
	for _, allowed := range validPipelineTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return pwerrors.NewTransitionError("pipeline", string(from), string(to), pipelineStatusStrings(validPipelineTransitions[from]))
}

// ValidateStepTransition checks from -> to against the transition table.
func ValidateStepTransition(from, to StepStatus) error {
	for _, allowed := range validStepTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return pwerrors.NewTransitionError("step", string(from), string(to), stepStatusStrings(validStepTransitions[from]))
}

func pipelineStatusStrings(statuses []PipelineStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

func stepStatusStrings(statuses []StepStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}
