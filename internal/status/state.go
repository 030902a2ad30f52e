package status

import (
	"fmt"
	"time"

	pwerrors "github.com/pipewright/pipewright/pkg/errors"
)

// PipelineState is an immutable snapshot of a pipeline run's status. Every
// transition produces a new value; instances are never mutated in place.
type PipelineState struct {
	Status       PipelineStatus
	ChangedAt    time.Time
	ErrorMessage string
	Metadata     map[string]any
}

// NewPipelineState constructs a PipelineState enforcing the error-message
// invariant: a message is required exactly for failed statuses.
func NewPipelineState(s PipelineStatus, errorMessage string) (PipelineState, error) {
	if err := checkErrorMessage("pipeline", string(s), IsPipelineFailed(s), errorMessage); err != nil {
		return PipelineState{}, err
	}
	return PipelineState{Status: s, ChangedAt: time.Now().UTC(), ErrorMessage: errorMessage}, nil
}

// Transition returns a new state after validating the status change.
func (ps PipelineState) Transition(to PipelineStatus, errorMessage string) (PipelineState, error) {
	if err := ValidatePipelineTransition(ps.Status, to); err != nil {
		return PipelineState{}, err
	}
	return NewPipelineState(to, errorMessage)
}

// Terminal reports whether the state permits no further transitions.
func (ps PipelineState) Terminal() bool { return IsPipelineTerminal(ps.Status) }

// Active reports whether the run is in flight.
func (ps PipelineState) Active() bool { return IsPipelineActive(ps.Status) }

// Failed reports whether the state represents a failure outcome.
func (ps PipelineState) Failed() bool { return IsPipelineFailed(ps.Status) }

// StepState is an immutable snapshot of a step execution's status.
type StepState struct {
	Status       StepStatus
	ChangedAt    time.Time
	ErrorMessage string
	Metadata     map[string]any
}

// NewStepState constructs a StepState enforcing the error-message invariant.
func NewStepState(s StepStatus, errorMessage string) (StepState, error) {
	if err := checkErrorMessage("step", string(s), IsStepFailed(s), errorMessage); err != nil {
		return StepState{}, err
	}
	return StepState{Status: s, ChangedAt: time.Now().UTC(), ErrorMessage: errorMessage}, nil
}

// Transition returns a new state after validating the status change.
func (ss StepState) Transition(to StepStatus, errorMessage string) (StepState, error) {
	if err := ValidateStepTransition(ss.Status, to); err != nil {
		return StepState{}, err
	}
	return NewStepState(to, errorMessage)
}

// Terminal reports whether the state permits no further transitions.
func (ss StepState) Terminal() bool { return IsStepTerminal(ss.Status) }

// Failed reports whether the state represents a failure outcome.
func (ss StepState) Failed() bool { return IsStepFailed(ss.Status) }

// Satisfied reports whether dependents may treat this step as done.
func (ss StepState) Satisfied() bool { return IsStepSatisfied(ss.Status) }

func checkErrorMessage(entity, s string, failed bool, errorMessage string) error {
	if failed && errorMessage == "" {
		return pwerrors.NewValidationError(entity, fmt.Sprintf("status %q requires an error message", s), nil)
	}
	if !failed && errorMessage != "" {
		return pwerrors.NewValidationError(entity, fmt.Sprintf("status %q must not carry an error message", s), nil)
	}
	return nil
}
