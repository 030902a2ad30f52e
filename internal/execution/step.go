package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pipewright/pipewright/internal/events"
	"github.com/pipewright/pipewright/internal/executor"
	"github.com/pipewright/pipewright/internal/model"
	"github.com/pipewright/pipewright/internal/status"
	"github.com/pipewright/pipewright/internal/template"
	pwerrors "github.com/pipewright/pipewright/pkg/errors"
)

// materializeInputs renders the step's prompt against the current variables
// namespace and assembles the executor inputs. Called from the orchestrator
// goroutine before dispatch so step goroutines never touch shared state.
func materializeInputs(ec *ExecutionContext, step template.StepTemplate) map[string]any {
	inputs := map[string]any{
		"prompt": ec.Variables.Render(step.Prompt),
	}
	if step.Model != "" {
		inputs["model"] = step.Model
	}
	if step.Type == template.StepTypeUserInput {
		if value, ok := ec.Variables.Input(string(step.ID)); ok {
			inputs["value"] = value
		}
	}
	return inputs
}

// trySkipConditional settles a conditional step whose condition renders
// falsy without dispatching it. Returns true when the step was skipped.
func (s *Service) trySkipConditional(ctx context.Context, ec *ExecutionContext, id template.StepID, stream *Stream) (bool, error) {
	step, ok := ec.Graph.Step(id)
	if !ok || step.Type != template.StepTypeConditional {
		return false, nil
	}
	condition, _ := step.Config["condition"].(string)
	if condition == "" || conditionHolds(ec.Variables, condition) {
		return false, nil
	}

	exec := model.NewStepExecution(ec.Run.ID, id, s.maxRetriesFor(step), nil)
	exec, err := exec.WithStatus(status.StepSkipped, "")
	if err != nil {
		return false, err
	}
	if err := s.steps.Save(ctx, exec, ec.Run.Workspace); err != nil {
		return false, err
	}

	ec.record(exec, true)
	stream.emit(ctx, events.NewStep(events.StepSkipped, ec.Run.ID, id, map[string]any{
		"reason": "condition not met",
	}))
	s.log.WithRun(ec.Run.ID).WithStep(string(id)).Info("step skipped")
	return true, nil
}

// conditionHolds renders the condition expression and reports whether the
// result is truthy. Unresolved placeholders are falsy so a condition on a
// skipped upstream's output skips the branch too.
func conditionHolds(vars *Variables, condition string) bool {
	rendered := strings.TrimSpace(vars.Render(condition))
	if strings.Contains(rendered, "${") {
		return false
	}
	switch strings.ToLower(rendered) {
	case "", "false", "0", "no", "null", "none":
		return false
	}
	return true
}

// runStepInline executes one step in the orchestrator goroutine and folds
// its outcome. Used by sequential mode and single-member frontiers.
func (s *Service) runStepInline(ctx context.Context, ec *ExecutionContext, id template.StepID, stream *Stream) error {
	step, ok := ec.Graph.Step(id)
	if !ok {
		return pwerrors.NewNotFoundError("step", string(id), ec.Run.Workspace)
	}
	exec := model.NewStepExecution(ec.Run.ID, id, s.maxRetriesFor(step), materializeInputs(ec, step))
	done, err := s.runStep(ctx, ec.Run.Workspace, step, exec, stream)
	s.fold(ctx, ec, done, stream)
	return err
}

// runStep drives one step through its attempt loop: run, retry on failure
// while the budget allows, settle as completed or failed. Every status
// change is persisted before the matching event is emitted. Safe to call
// from step goroutines; it only touches its own execution record.
func (s *Service) runStep(ctx context.Context, workspace string, step template.StepTemplate, exec model.StepExecution, stream *Stream) (model.StepExecution, error) {
	log := s.log.WithRun(exec.RunID).WithStep(string(exec.StepID))

	if err := s.steps.Save(ctx, exec, workspace); err != nil {
		return exec, err
	}

	for {
		next, err := exec.WithStatus(status.StepRunning, "")
		if err != nil {
			return exec, err
		}
		exec = next
		if err := s.steps.Save(ctx, exec, workspace); err != nil {
			return exec, err
		}
		stream.emit(ctx, events.NewStep(events.StepStarted, exec.RunID, exec.StepID, map[string]any{
			"attempt": exec.RetryCount + 1,
		}))
		log.Debug("step attempt starting")

		result, execErr := s.invoke(ctx, step, exec.Inputs)

		if execErr == nil && result != nil && result.Success {
			exec = exec.WithOutputs(result.Outputs, result.TokensUsed)
			exec, err = exec.WithStatus(status.StepCompleted, "")
			if err != nil {
				return exec, err
			}
			if err := s.steps.Save(ctx, exec, workspace); err != nil {
				return exec, err
			}
			stream.emit(ctx, events.NewStep(events.StepCompleted, exec.RunID, exec.StepID, map[string]any{
				"tokens_used": exec.TokensUsed,
				"duration":    exec.Duration().String(),
			}))
			log.Info("step completed")
			return exec, nil
		}

		message := failureMessage(result, execErr)
		exec, err = exec.WithStatus(status.StepFailed, message)
		if err != nil {
			return exec, err
		}
		if err := s.steps.Save(ctx, exec, workspace); err != nil {
			return exec, err
		}
		stream.emit(ctx, events.NewStep(events.StepFailed, exec.RunID, exec.StepID, map[string]any{
			"error":   message,
			"attempt": exec.RetryCount + 1,
		}))
		log.Warn("step attempt failed")

		if ctx.Err() != nil {
			return exec, ctx.Err()
		}

		// A missing executor is a configuration error, never retried.
		var executorErr *pwerrors.ExecutorError
		if errors.As(execErr, &executorErr) {
			return exec, execErr
		}

		if !exec.CanRetry() {
			return exec, pwerrors.NewExecutionError(string(exec.StepID), errors.New(message))
		}

		stream.emit(ctx, events.NewStep(events.StepRetrying, exec.RunID, exec.StepID, map[string]any{
			"next_attempt": exec.RetryCount + 2,
		}))
		exec, err = exec.ResetForRetry()
		if err != nil {
			return exec, err
		}
		if err := s.steps.Save(ctx, exec, workspace); err != nil {
			return exec, err
		}
	}
}

// invoke looks up the executor for the step type and runs one attempt under
// the step's timeout. A timeout surfaces as an ordinary failure so the retry
// policy applies to it.
func (s *Service) invoke(ctx context.Context, step template.StepTemplate, inputs map[string]any) (*executor.Result, error) {
	exe, err := s.registry.Find(string(step.Type))
	if err != nil {
		return nil, err
	}

	timeout := s.cfg.StepTimeout
	if step.TimeoutSeconds > 0 {
		timeout = time.Duration(step.TimeoutSeconds) * time.Second
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type attempt struct {
		result *executor.Result
		err    error
	}
	done := make(chan attempt, 1)
	go func() {
		result, err := exe.Execute(stepCtx, step, inputs)
		done <- attempt{result: result, err: err}
	}()

	select {
	case a := <-done:
		return a.result, a.err
	case <-stepCtx.Done():
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("step timed out after %s", timeout)
	}
}

func failureMessage(result *executor.Result, err error) string {
	if err != nil {
		return err.Error()
	}
	if result != nil && result.ErrorMessage != "" {
		return result.ErrorMessage
	}
	return "step failed"
}
