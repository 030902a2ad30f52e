package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/pipewright/pipewright/internal/status"
)

// PipelineRun is the run-level aggregate for one pipeline execution.
// All mutation happens through With-style builders returning a new value so
// shared instances are never modified in place.
type PipelineRun struct {
	ID                 string
	PipelineID         string
	Workspace          string
	State              status.PipelineState
	Inputs             map[string]any
	Outputs            map[string]any
	StartedAt          *time.Time
	CompletedAt        *time.Time
	TotalTokensUsed    int
	TotalExecutionTime time.Duration
}

// NewPipelineRun creates a run in the created state.
func NewPipelineRun(pipelineID, workspace string, inputs map[string]any) PipelineRun {
	state, _ := status.NewPipelineState(status.PipelineCreated, "")
	return PipelineRun{
		ID:         uuid.NewString(),
		PipelineID: pipelineID,
		Workspace:  workspace,
		State:      state,
		Inputs:     inputs,
	}
}

// Status returns the current lifecycle status.
func (r PipelineRun) Status() status.PipelineStatus { return r.State.Status }

// Error returns the failure message, empty unless the run failed.
func (r PipelineRun) Error() string { return r.State.ErrorMessage }

// WithStatus returns a copy of the run transitioned to the given status.
// Timestamps are maintained to uphold the run invariants: entering an active
// status sets StartedAt, entering a terminal status sets CompletedAt.
func (r PipelineRun) WithStatus(to status.PipelineStatus, errorMessage string) (PipelineRun, error) {
	next, err := r.State.Transition(to, errorMessage)
	if err != nil {
		return PipelineRun{}, err
	}

	updated := r
	updated.State = next

	now := time.Now().UTC()
	if status.IsPipelineActive(to) && updated.StartedAt == nil {
		updated.StartedAt = &now
	}
	if status.IsPipelineTerminal(to) {
		updated.CompletedAt = &now
		if updated.StartedAt != nil {
			updated.TotalExecutionTime = now.Sub(*updated.StartedAt)
		}
	}

	return updated, nil
}

// WithOutputs returns a copy of the run carrying the aggregated outputs.
func (r PipelineRun) WithOutputs(outputs map[string]any) PipelineRun {
	updated := r
	updated.Outputs = outputs
	return updated
}

// AddTokens returns a copy of the run with tokens accumulated onto the total.
func (r PipelineRun) AddTokens(tokens int) PipelineRun {
	updated := r
	updated.TotalTokensUsed += tokens
	return updated
}
