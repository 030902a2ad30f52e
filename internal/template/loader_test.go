package template

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	pwerrors "github.com/pipewright/pipewright/pkg/errors"
)

const sampleTemplate = `
id: blog-post
version: "1.0"
name: Blog post pipeline
inputs:
  - name: topic
    type: string
    required: true
steps:
  outline:
    type: llm_generate
    prompt: "Write an outline about ${inputs.topic}"
    timeout_seconds: 120
    retry:
      max_retries: 2
  content:
    type: llm_generate
    prompt: "Expand ${steps.outline.text}"
    depends_on: [outline]
    parallel: true
  review:
    type: validate
    depends_on: [content]
    config:
      min_length: 100
`

func TestParseValidTemplate(t *testing.T) {
	t.Parallel()

	tmpl, err := Parse([]byte(sampleTemplate))
	require.NoError(t, err)

	require.Equal(t, "blog-post", tmpl.ID)
	require.Len(t, tmpl.Steps, 3)

	outline, ok := tmpl.Step("outline")
	require.True(t, ok)
	require.Equal(t, StepTypeLLMGenerate, outline.Type)
	require.Equal(t, 2, outline.Retry.MaxRetries)

	content, ok := tmpl.Step("content")
	require.True(t, ok)
	require.True(t, content.Parallel)
	require.Equal(t, []StepID{"outline"}, content.DependsOn)
}

func TestParseRejectsMissingVersion(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("id: x\nsteps:\n  outline:\n    type: llm_generate\n"))
	require.Error(t, err)

	var validationErr *pwerrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
}

func TestParseRejectsBadVersion(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("id: x\nversion: not-semver\nsteps:\n  outline:\n    type: llm_generate\n"))
	require.Error(t, err)
}

func TestParseRejectsUnknownStepType(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("id: x\nversion: \"1.0\"\nsteps:\n  outline:\n    type: teleport\n"))
	require.Error(t, err)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	t.Parallel()

	_, err := Parse([]byte("steps: ["))
	require.Error(t, err)
}

func TestLoadFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "blog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleTemplate), 0o644))

	tmpl, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "blog-post", tmpl.ID)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
