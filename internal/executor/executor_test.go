package executor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pipewright/pipewright/internal/logger"
	"github.com/pipewright/pipewright/internal/template"
	pwerrors "github.com/pipewright/pipewright/pkg/errors"
)

func TestRegistryFindsFirstMatch(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(TransformExecutor{}, ValidateExecutor{})
	registry.Register(NewLLMExecutor(LocalClient{}, logger.Nop()))

	found, err := registry.Find("llm_generate")
	require.NoError(t, err)
	require.IsType(t, &LLMExecutor{}, found)

	found, err = registry.Find("transform")
	require.NoError(t, err)
	require.IsType(t, TransformExecutor{}, found)
}

func TestRegistryMissIsExecutorError(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	_, err := registry.Find("llm_generate")
	require.Error(t, err)

	var executorErr *pwerrors.ExecutorError
	require.ErrorAs(t, err, &executorErr)
	require.Equal(t, "llm_generate", executorErr.StepType)
}

func TestLLMExecutorGeneratesFromPrompt(t *testing.T) {
	t.Parallel()

	exec := NewLLMExecutor(LocalClient{}, logger.Nop())
	step := template.StepTemplate{ID: "outline", Type: template.StepTypeLLMGenerate}

	result, err := exec.Execute(context.Background(), step, map[string]any{"prompt": "Write an outline about AI ethics"})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Contains(t, result.Outputs["text"].(string), "outline")
	require.Positive(t, result.TokensUsed)
}

func TestLLMExecutorRequiresPrompt(t *testing.T) {
	t.Parallel()

	exec := NewLLMExecutor(LocalClient{}, logger.Nop())
	_, err := exec.Execute(context.Background(), template.StepTemplate{ID: "outline"}, map[string]any{})
	require.Error(t, err)
}

func TestTransformExecutorOperations(t *testing.T) {
	t.Parallel()

	cases := []struct {
		operation string
		input     string
		want      string
	}{
		{"uppercase", "hello", "HELLO"},
		{"lowercase", "HeLLo", "hello"},
		{"trim", "  spaced  ", "spaced"},
		{"", "as-is", "as-is"},
	}

	for _, tc := range cases {
		step := template.StepTemplate{
			ID:     "shape",
			Type:   template.StepTypeTransform,
			Config: map[string]any{"operation": tc.operation},
		}
		result, err := TransformExecutor{}.Execute(context.Background(), step, map[string]any{"prompt": tc.input})
		require.NoError(t, err)
		require.Equal(t, tc.want, result.Outputs["text"])
	}
}

func TestTransformExecutorRejectsUnknownOperation(t *testing.T) {
	t.Parallel()

	step := template.StepTemplate{ID: "shape", Config: map[string]any{"operation": "reverse-polish"}}
	_, err := TransformExecutor{}.Execute(context.Background(), step, map[string]any{"prompt": "x"})
	require.Error(t, err)
}

func TestValidateExecutorReportsViolations(t *testing.T) {
	t.Parallel()

	step := template.StepTemplate{
		ID:   "review",
		Type: template.StepTypeValidate,
		Config: map[string]any{
			"min_length":     100,
			"required_terms": []any{"ethics"},
		},
	}

	result, err := ValidateExecutor{}.Execute(context.Background(), step, map[string]any{"prompt": "too short"})
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Contains(t, result.ErrorMessage, "below minimum")
	require.Contains(t, result.ErrorMessage, "ethics")
}

func TestValidateExecutorPasses(t *testing.T) {
	t.Parallel()

	step := template.StepTemplate{
		ID:     "review",
		Type:   template.StepTypeValidate,
		Config: map[string]any{"min_length": 5},
	}

	result, err := ValidateExecutor{}.Execute(context.Background(), step, map[string]any{"prompt": "long enough content"})
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, true, result.Outputs["valid"])
}

func TestUserInputExecutorPrefersSuppliedValue(t *testing.T) {
	t.Parallel()

	step := template.StepTemplate{
		ID:     "approve",
		Type:   template.StepTypeUserInput,
		Config: map[string]any{"default": "no"},
	}

	result, err := UserInputExecutor{}.Execute(context.Background(), step, map[string]any{"value": "yes"})
	require.NoError(t, err)
	require.Equal(t, "yes", result.Outputs["value"])

	result, err = UserInputExecutor{}.Execute(context.Background(), step, map[string]any{})
	require.NoError(t, err)
	require.Equal(t, "no", result.Outputs["value"])
}

func TestUserInputExecutorFailsWithoutValue(t *testing.T) {
	t.Parallel()

	step := template.StepTemplate{ID: "approve", Type: template.StepTypeUserInput}
	_, err := UserInputExecutor{}.Execute(context.Background(), step, map[string]any{})
	require.Error(t, err)
}
