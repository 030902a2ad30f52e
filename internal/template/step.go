package template

import (
	"fmt"
	"regexp"
	"sort"

	pwerrors "github.com/pipewright/pipewright/pkg/errors"
)

var stepIDPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*(\.[a-zA-Z0-9][a-zA-Z0-9_-]*)*$`)

// StepID is an opaque validated step identifier used as graph node key.
// Identifiers are 2-32 characters of alphanumerics plus "-_." with an
// optional dot-separated hierarchy.
type StepID string

// ParseStepID validates raw and returns it as a StepID.
func ParseStepID(raw string) (StepID, error) {
	if len(raw) < 2 || len(raw) > 32 {
		return "", pwerrors.NewValidationError("step_id", fmt.Sprintf("step id %q must be 2-32 characters", raw), nil)
	}
	if !stepIDPattern.MatchString(raw) {
		return "", pwerrors.NewValidationError("step_id", fmt.Sprintf("step id %q must contain only alphanumerics, '-', '_' and '.'", raw), nil)
	}
	return StepID(raw), nil
}

func (id StepID) String() string { return string(id) }

// StepType enumerates supported pipeline step types.
type StepType string

const (
	StepTypeLLMGenerate StepType = "llm_generate"
	StepTypeUserInput   StepType = "user_input"
	StepTypeTransform   StepType = "transform"
	StepTypeValidate    StepType = "validate"
	StepTypeConditional StepType = "conditional"
)

var validStepTypes = []StepType{
	StepTypeLLMGenerate,
	StepTypeUserInput,
	StepTypeTransform,
	StepTypeValidate,
	StepTypeConditional,
}

func isValidStepType(st StepType) bool {
	for _, candidate := range validStepTypes {
		if st == candidate {
			return true
		}
	}
	return false
}

// RetryConfig bounds the retry policy of a single step.
type RetryConfig struct {
	MaxRetries int `yaml:"max_retries" validate:"min=0,max=10"`
}

// StepTemplate is the immutable declarative definition of one pipeline step.
type StepTemplate struct {
	ID             StepID         `yaml:"-"`
	Name           string         `yaml:"name,omitempty"`
	Type           StepType       `yaml:"type" validate:"required"`
	Prompt         string         `yaml:"prompt,omitempty"`
	DependsOn      []StepID       `yaml:"depends_on,omitempty"`
	Parallel       bool           `yaml:"parallel,omitempty"`
	Retry          RetryConfig    `yaml:"retry,omitempty"`
	TimeoutSeconds int            `yaml:"timeout_seconds,omitempty" validate:"min=0,max=3600"`
	Model          string         `yaml:"model,omitempty"`
	Config         map[string]any `yaml:"config,omitempty"`
}

// Validate checks the step definition independent of its siblings.
func (s StepTemplate) Validate() error {
	if _, err := ParseStepID(string(s.ID)); err != nil {
		return err
	}
	if s.Type == "" {
		return pwerrors.NewValidationError(fmt.Sprintf("steps.%s.type", s.ID), "step type is required", nil)
	}
	if !isValidStepType(s.Type) {
		return pwerrors.NewValidationError(fmt.Sprintf("steps.%s.type", s.ID), fmt.Sprintf("unknown step type %q, expected one of %v", s.Type, validStepTypes), nil)
	}
	if s.TimeoutSeconds < 0 {
		return pwerrors.NewValidationError(fmt.Sprintf("steps.%s.timeout_seconds", s.ID), "timeout must be non-negative", nil)
	}
	if s.Retry.MaxRetries < 0 {
		return pwerrors.NewValidationError(fmt.Sprintf("steps.%s.retry.max_retries", s.ID), "max_retries must be non-negative", nil)
	}
	return nil
}

// HasDependency reports whether the step declares a dependency on id.
func (s StepTemplate) HasDependency(id StepID) bool {
	for _, dep := range s.DependsOn {
		if dep == id {
			return true
		}
	}
	return false
}

// SortedDependencies returns a sorted copy of the declared dependencies.
func (s StepTemplate) SortedDependencies() []StepID {
	deps := append([]StepID(nil), s.DependsOn...)
	sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })
	return deps
}
