package model

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pipewright/pipewright/internal/status"
)

func TestPipelineRunLifecycleTimestamps(t *testing.T) {
	t.Parallel()

	run := NewPipelineRun("blog-post", "acme", map[string]any{"topic": "AI ethics"})
	require.Equal(t, status.PipelineCreated, run.Status())
	require.Nil(t, run.StartedAt)
	require.Nil(t, run.CompletedAt)
	require.NotEmpty(t, run.ID)

	running, err := run.WithStatus(status.PipelineRunning, "")
	require.NoError(t, err)
	require.NotNil(t, running.StartedAt)
	require.Nil(t, running.CompletedAt)
	require.Equal(t, status.PipelineCreated, run.Status(), "original run must be unchanged")

	completed, err := running.WithStatus(status.PipelineCompleted, "")
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)
	require.True(t, completed.State.Terminal())
}

func TestPipelineRunFailureRequiresError(t *testing.T) {
	t.Parallel()

	run := NewPipelineRun("blog-post", "acme", nil)
	running, err := run.WithStatus(status.PipelineRunning, "")
	require.NoError(t, err)

	_, err = running.WithStatus(status.PipelineFailed, "")
	require.Error(t, err)

	failed, err := running.WithStatus(status.PipelineFailed, "step exhausted retries")
	require.NoError(t, err)
	require.Equal(t, "step exhausted retries", failed.Error())
	require.NotNil(t, failed.CompletedAt)
}

func TestPipelineRunRejectsInvalidTransition(t *testing.T) {
	t.Parallel()

	run := NewPipelineRun("blog-post", "acme", nil)
	_, err := run.WithStatus(status.PipelineCompleted, "")
	require.Error(t, err)
}

func TestPipelineRunTokenAccumulation(t *testing.T) {
	t.Parallel()

	run := NewPipelineRun("blog-post", "acme", nil)
	run = run.AddTokens(120)
	run = run.AddTokens(80)
	require.Equal(t, 200, run.TotalTokensUsed)
}

func TestStepExecutionLifecycle(t *testing.T) {
	t.Parallel()

	exec := NewStepExecution("run-1", "outline", 3, map[string]any{"prompt": "x"})
	require.Equal(t, status.StepPending, exec.Status())

	running, err := exec.WithStatus(status.StepRunning, "")
	require.NoError(t, err)
	require.NotNil(t, running.StartedAt)

	completed, err := running.WithStatus(status.StepCompleted, "")
	require.NoError(t, err)
	require.NotNil(t, completed.CompletedAt)
	require.GreaterOrEqual(t, completed.Duration().Nanoseconds(), int64(0))
}

func TestStepExecutionRetryReset(t *testing.T) {
	t.Parallel()

	exec := NewStepExecution("run-1", "outline", 2, nil)
	running, err := exec.WithStatus(status.StepRunning, "")
	require.NoError(t, err)
	failed, err := running.WithStatus(status.StepFailed, "rate limited")
	require.NoError(t, err)
	require.True(t, failed.CanRetry())

	fresh, err := failed.ResetForRetry()
	require.NoError(t, err)
	require.Equal(t, status.StepPending, fresh.Status())
	require.Equal(t, 1, fresh.RetryCount)
	require.Nil(t, fresh.StartedAt)
	require.Nil(t, fresh.CompletedAt)
	require.Empty(t, fresh.Error())
}

func TestStepExecutionRetryExhaustion(t *testing.T) {
	t.Parallel()

	exec := NewStepExecution("run-1", "outline", 1, nil)

	fail := func(e StepExecution) StepExecution {
		running, err := e.WithStatus(status.StepRunning, "")
		require.NoError(t, err)
		failed, err := running.WithStatus(status.StepFailed, "always fails")
		require.NoError(t, err)
		return failed
	}

	failed := fail(exec)
	retried, err := failed.ResetForRetry()
	require.NoError(t, err)

	failedAgain := fail(retried)
	require.False(t, failedAgain.CanRetry())
	_, err = failedAgain.ResetForRetry()
	require.Error(t, err)
}

func TestStepExecutionCannotRetryFromNonFailedState(t *testing.T) {
	t.Parallel()

	exec := NewStepExecution("run-1", "outline", 3, nil)
	_, err := exec.ResetForRetry()
	require.Error(t, err)
}
