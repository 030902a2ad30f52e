package errors

import (
	"fmt"
	"strings"
)

// ValidationError captures template or input validation issues.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError constructs a ValidationError.
func NewValidationError(field, message string, err error) error {
	return &ValidationError{Field: field, Message: message, Err: err}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Field != "" {
		return fmt.Sprintf("validation error: %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ValidationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// CircularDependencyError reports one or more dependency cycles found in a
// pipeline template. Graph construction fails closed on it.
type CircularDependencyError struct {
	Cycles [][]string
}

// NewCircularDependencyError constructs a CircularDependencyError.
func NewCircularDependencyError(cycles [][]string) error {
	return &CircularDependencyError{Cycles: cycles}
}

func (e *CircularDependencyError) Error() string {
	if e == nil {
		return ""
	}
	rendered := make([]string, 0, len(e.Cycles))
	for _, cycle := range e.Cycles {
		rendered = append(rendered, strings.Join(cycle, " -> "))
	}
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(rendered, "; "))
}

// InvalidDependencyError reports a dependency that references a step absent
// from the template.
type InvalidDependencyError struct {
	StepID    string
	DependsOn string
}

// NewInvalidDependencyError constructs an InvalidDependencyError.
func NewInvalidDependencyError(stepID, dependsOn string) error {
	return &InvalidDependencyError{StepID: stepID, DependsOn: dependsOn}
}

func (e *InvalidDependencyError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("invalid dependency: step %q depends on unknown step %q", e.StepID, e.DependsOn)
}

// TransitionError reports an execution-status transition outside the
// transition table. Valid lists the permitted next states.
type TransitionError struct {
	Entity string
	From   string
	To     string
	Valid  []string
}

// NewTransitionError constructs a TransitionError.
func NewTransitionError(entity, from, to string, valid []string) error {
	return &TransitionError{Entity: entity, From: from, To: to, Valid: valid}
}

func (e *TransitionError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Valid) == 0 {
		return fmt.Sprintf("invalid %s transition: %q is terminal, cannot transition to %q", e.Entity, e.From, e.To)
	}
	return fmt.Sprintf("invalid %s transition: %q -> %q (valid: %s)", e.Entity, e.From, e.To, strings.Join(e.Valid, ", "))
}

// NotFoundError indicates a repository lookup miss.
type NotFoundError struct {
	Kind      string
	ID        string
	Workspace string
}

// NewNotFoundError constructs a NotFoundError.
func NewNotFoundError(kind, id, workspace string) error {
	return &NotFoundError{Kind: kind, ID: id, Workspace: workspace}
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return ""
	}
	if e.Workspace != "" {
		return fmt.Sprintf("%s %q not found in workspace %q", e.Kind, e.ID, e.Workspace)
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// ExecutionError represents a runtime failure while executing a step.
type ExecutionError struct {
	StepID string
	Err    error
}

// NewExecutionError constructs an ExecutionError.
func NewExecutionError(stepID string, err error) error {
	return &ExecutionError{StepID: stepID, Err: err}
}

func (e *ExecutionError) Error() string {
	if e == nil {
		return ""
	}
	if e.StepID != "" {
		return fmt.Sprintf("execution error on step %s: %v", e.StepID, e.Err)
	}
	return fmt.Sprintf("execution error: %v", e.Err)
}

// Unwrap exposes the root error.
func (e *ExecutionError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ExecutorError indicates issues locating or running a step executor.
type ExecutorError struct {
	StepType string
	Message  string
	Err      error
}

// NewExecutorError constructs an ExecutorError for the given step type.
func NewExecutorError(stepType string, err error) error {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &ExecutorError{StepType: stepType, Message: message, Err: err}
}

func (e *ExecutorError) Error() string {
	if e == nil {
		return ""
	}
	if e.StepType != "" {
		return fmt.Sprintf("executor error [%s]: %s", e.StepType, e.Message)
	}
	return fmt.Sprintf("executor error: %s", e.Message)
}

// Unwrap exposes the underlying error.
func (e *ExecutorError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// DeadlockError reports a scheduling tick where steps remain outstanding but
// none is ready. Distinct from a cycle, which is caught at graph build time.
type DeadlockError struct {
	Remaining []string
}

// NewDeadlockError constructs a DeadlockError.
func NewDeadlockError(remaining []string) error {
	return &DeadlockError{Remaining: remaining}
}

func (e *DeadlockError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("scheduling deadlock: no runnable step among remaining steps: %s", strings.Join(e.Remaining, ", "))
}
