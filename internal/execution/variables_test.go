package execution

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVariablesLookup(t *testing.T) {
	t.Parallel()

	vars := NewVariables(map[string]any{"topic": "go", "count": 3})
	vars.SetStepOutputs("outline", map[string]any{"text": "the outline"})

	value, ok := vars.Lookup("inputs.topic")
	require.True(t, ok)
	require.Equal(t, "go", value)

	value, ok = vars.Lookup("steps.outline.text")
	require.True(t, ok)
	require.Equal(t, "the outline", value)

	_, ok = vars.Lookup("steps.outline.missing")
	require.False(t, ok)

	_, ok = vars.Lookup("steps.unknown.text")
	require.False(t, ok)
}

func TestVariablesLookupPrefersLongestStepID(t *testing.T) {
	t.Parallel()

	vars := NewVariables(nil)
	vars.SetStepOutputs("research", map[string]any{"web": "shadowed"})
	vars.SetStepOutputs("research.web", map[string]any{"summary": "findings"})

	value, ok := vars.Lookup("steps.research.web.summary")
	require.True(t, ok)
	require.Equal(t, "findings", value)

	// The whole-id key wins over traversing into "research".
	value, ok = vars.Lookup("steps.research.web")
	require.True(t, ok)
	require.Equal(t, map[string]any{"summary": "findings"}, value)
}

func TestVariablesRender(t *testing.T) {
	t.Parallel()

	vars := NewVariables(map[string]any{"topic": "go", "publish": true})
	vars.SetStepOutputs("outline", map[string]any{"text": "1. intro", "words": 12})

	rendered := vars.Render("Write about ${inputs.topic} from ${steps.outline.text} (${steps.outline.words} words)")
	require.Equal(t, "Write about go from 1. intro (12 words)", rendered)

	// Unresolved placeholders survive instead of vanishing.
	require.Equal(t, "x ${steps.missing.text} y", vars.Render("x ${steps.missing.text} y"))
	require.Equal(t, "plain text", vars.Render("plain text"))
	require.Equal(t, "true", vars.Render("${inputs.publish}"))
}
