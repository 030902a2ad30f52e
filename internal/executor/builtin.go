package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pipewright/pipewright/internal/template"
)

// TransformExecutor serves transform steps: it reshapes the rendered prompt
// according to the step's configured operation.
type TransformExecutor struct{}

// CanHandle implements StepExecutor.
func (TransformExecutor) CanHandle(stepType string) bool {
	return stepType == string(template.StepTypeTransform)
}

// Execute implements StepExecutor.
func (TransformExecutor) Execute(_ context.Context, step template.StepTemplate, inputs map[string]any) (*Result, error) {
	start := time.Now()
	text, _ := inputs["prompt"].(string)

	operation, _ := step.Config["operation"].(string)
	switch operation {
	case "", "identity":
	case "uppercase":
		text = strings.ToUpper(text)
	case "lowercase":
		text = strings.ToLower(text)
	case "trim":
		text = strings.TrimSpace(text)
	default:
		return nil, fmt.Errorf("unknown transform operation %q", operation)
	}

	return &Result{
		Success:       true,
		Outputs:       map[string]any{"text": text},
		ExecutionTime: time.Since(start),
	}, nil
}

// ValidateExecutor serves validate steps: it checks the rendered content
// against the configured constraints and fails the step when they are not
// met, which makes the step eligible for retry like any other failure.
type ValidateExecutor struct{}

// CanHandle implements StepExecutor.
func (ValidateExecutor) CanHandle(stepType string) bool {
	return stepType == string(template.StepTypeValidate)
}

// Execute implements StepExecutor.
func (ValidateExecutor) Execute(_ context.Context, step template.StepTemplate, inputs map[string]any) (*Result, error) {
	start := time.Now()
	text, _ := inputs["prompt"].(string)

	var violations []string
	if min, ok := intConfig(step.Config, "min_length"); ok && len(text) < min {
		violations = append(violations, fmt.Sprintf("content length %d below minimum %d", len(text), min))
	}
	if max, ok := intConfig(step.Config, "max_length"); ok && len(text) > max {
		violations = append(violations, fmt.Sprintf("content length %d above maximum %d", len(text), max))
	}
	if terms, ok := step.Config["required_terms"].([]any); ok {
		for _, term := range terms {
			if s, ok := term.(string); ok && !strings.Contains(strings.ToLower(text), strings.ToLower(s)) {
				violations = append(violations, fmt.Sprintf("missing required term %q", s))
			}
		}
	}

	if len(violations) > 0 {
		return &Result{
			Success:       false,
			ErrorMessage:  strings.Join(violations, "; "),
			ExecutionTime: time.Since(start),
		}, nil
	}

	return &Result{
		Success:       true,
		Outputs:       map[string]any{"valid": true, "text": text},
		ExecutionTime: time.Since(start),
	}, nil
}

// ConditionalExecutor serves conditional steps whose condition held. The
// orchestrator skips the step before dispatch when the condition is falsy,
// so reaching Execute means the branch was taken.
type ConditionalExecutor struct{}

// CanHandle implements StepExecutor.
func (ConditionalExecutor) CanHandle(stepType string) bool {
	return stepType == string(template.StepTypeConditional)
}

// Execute implements StepExecutor.
func (ConditionalExecutor) Execute(_ context.Context, step template.StepTemplate, inputs map[string]any) (*Result, error) {
	start := time.Now()
	text, _ := inputs["prompt"].(string)

	outputs := map[string]any{"matched": true}
	if text != "" {
		outputs["text"] = text
	}
	return &Result{
		Success:       true,
		Outputs:       outputs,
		ExecutionTime: time.Since(start),
	}, nil
}

// UserInputExecutor serves user_input steps from pre-supplied values.
// Interactive collection is a presentation concern; the orchestration core
// only resolves the value from the run inputs or the step's default.
type UserInputExecutor struct{}

// CanHandle implements StepExecutor.
func (UserInputExecutor) CanHandle(stepType string) bool {
	return stepType == string(template.StepTypeUserInput)
}

// Execute implements StepExecutor.
func (UserInputExecutor) Execute(_ context.Context, step template.StepTemplate, inputs map[string]any) (*Result, error) {
	start := time.Now()

	if value, ok := inputs["value"]; ok && value != nil {
		return &Result{
			Success:       true,
			Outputs:       map[string]any{"value": value},
			ExecutionTime: time.Since(start),
		}, nil
	}
	if value, ok := step.Config["default"]; ok && value != nil {
		return &Result{
			Success:       true,
			Outputs:       map[string]any{"value": value},
			ExecutionTime: time.Since(start),
		}, nil
	}

	return nil, fmt.Errorf("no value supplied for user input step %s", step.ID)
}

func intConfig(config map[string]any, key string) (int, bool) {
	switch v := config[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}
