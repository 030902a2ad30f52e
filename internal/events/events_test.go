package events

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewStepEventCarriesStepID(t *testing.T) {
	t.Parallel()

	event := NewStep(StepStarted, "run-1", "outline", map[string]any{"attempt": 1})
	require.Equal(t, StepStarted, event.Type)
	require.Equal(t, "run-1", event.RunID)
	require.Equal(t, "outline", string(event.StepID))
	require.False(t, event.IsPipelineEvent())
	require.False(t, event.Timestamp.IsZero())
}

func TestPipelineEventHasNoStepID(t *testing.T) {
	t.Parallel()

	event := New(PipelineStarted, "run-1", nil)
	require.True(t, event.IsPipelineEvent())
}

func TestTerminalEvents(t *testing.T) {
	t.Parallel()

	require.True(t, New(PipelineCompleted, "r", nil).IsTerminalEvent())
	require.True(t, New(PipelineFailed, "r", nil).IsTerminalEvent())
	require.True(t, New(PipelineCancelled, "r", nil).IsTerminalEvent())
	require.True(t, New(PipelinePaused, "r", nil).IsTerminalEvent())
	require.False(t, New(PipelineStarted, "r", nil).IsTerminalEvent())
	require.False(t, NewStep(StepCompleted, "r", "s", nil).IsTerminalEvent())
}
