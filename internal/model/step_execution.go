package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pipewright/pipewright/internal/status"
	"github.com/pipewright/pipewright/internal/template"
	pwerrors "github.com/pipewright/pipewright/pkg/errors"
)

// StepExecution is the runtime record of one step attempt within a run.
type StepExecution struct {
	ID          string
	RunID       string
	StepID      template.StepID
	State       status.StepState
	Inputs      map[string]any
	Outputs     map[string]any
	StartedAt   *time.Time
	CompletedAt *time.Time
	RetryCount  int
	MaxRetries  int
	TokensUsed  int
}

// NewStepExecution creates a pending execution record for one step.
func NewStepExecution(runID string, stepID template.StepID, maxRetries int, inputs map[string]any) StepExecution {
	state, _ := status.NewStepState(status.StepPending, "")
	return StepExecution{
		ID:         uuid.NewString(),
		RunID:      runID,
		StepID:     stepID,
		State:      state,
		Inputs:     inputs,
		MaxRetries: maxRetries,
	}
}

// Status returns the current lifecycle status.
func (e StepExecution) Status() status.StepStatus { return e.State.Status }

// Error returns the failure message, empty unless the attempt failed.
func (e StepExecution) Error() string { return e.State.ErrorMessage }

// WithStatus returns a copy of the execution transitioned to the given
// status, maintaining the started/completed timestamps.
func (e StepExecution) WithStatus(to status.StepStatus, errorMessage string) (StepExecution, error) {
	next, err := e.State.Transition(to, errorMessage)
	if err != nil {
		return StepExecution{}, err
	}

	updated := e
	updated.State = next

	now := time.Now().UTC()
	if to == status.StepRunning && updated.StartedAt == nil {
		updated.StartedAt = &now
	}
	if status.IsStepTerminal(to) {
		updated.CompletedAt = &now
	}

	return updated, nil
}

// WithOutputs returns a copy of the execution carrying the step outputs and
// token usage reported by the executor.
func (e StepExecution) WithOutputs(outputs map[string]any, tokens int) StepExecution {
	updated := e
	updated.Outputs = outputs
	updated.TokensUsed = tokens
	return updated
}

// CanRetry reports whether another attempt is permitted.
func (e StepExecution) CanRetry() bool {
	return e.State.Failed() && e.RetryCount < e.MaxRetries
}

// ResetForRetry returns a fresh pending attempt of a failed execution with
// the retry counter incremented and timestamps, outputs, and error cleared.
func (e StepExecution) ResetForRetry() (StepExecution, error) {
	if !e.State.Failed() {
		return StepExecution{}, pwerrors.NewExecutionError(string(e.StepID), fmt.Errorf("cannot retry step in status %q", e.Status()))
	}
	if e.RetryCount >= e.MaxRetries {
		return StepExecution{}, pwerrors.NewExecutionError(string(e.StepID), fmt.Errorf("retries exhausted after %d attempts", e.RetryCount+1))
	}

	state, _ := status.NewStepState(status.StepPending, "")
	updated := e
	updated.State = state
	updated.StartedAt = nil
	updated.CompletedAt = nil
	updated.Outputs = nil
	updated.TokensUsed = 0
	updated.RetryCount++
	return updated, nil
}

// Duration returns the wall-clock time of this attempt, zero when unknown.
func (e StepExecution) Duration() time.Duration {
	if e.StartedAt == nil || e.CompletedAt == nil {
		return 0
	}
	return e.CompletedAt.Sub(*e.StartedAt)
}
