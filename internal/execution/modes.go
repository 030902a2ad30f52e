package execution

import (
	"context"
	"sync"

	"github.com/pipewright/pipewright/internal/graph"
	"github.com/pipewright/pipewright/internal/model"
	"github.com/pipewright/pipewright/internal/template"
	pwerrors "github.com/pipewright/pipewright/pkg/errors"
)

// stepOutcome is what a step goroutine reports back to the orchestrator.
type stepOutcome struct {
	id   template.StepID
	exec model.StepExecution
	err  error
}

// runSequential walks the topological order, one step at a time, failing
// fast on the first exhausted step.
func (s *Service) runSequential(ctx context.Context, ec *ExecutionContext, stream *Stream) error {
	order, err := ec.Graph.TopologicalSort()
	if err != nil {
		return err
	}

	for _, id := range order {
		if ec.Settled(id) {
			continue
		}
		if err := s.checkRun(ctx, ec); err != nil {
			return err
		}
		if skipped, err := s.trySkipConditional(ctx, ec, id, stream); err != nil {
			return err
		} else if skipped {
			continue
		}
		if err := s.runStepInline(ctx, ec, id, stream); err != nil {
			return err
		}
	}
	return nil
}

// runParallel executes the planner's groups in order, members of a group
// concurrently. A failing member does not cancel its siblings; the run
// aborts once the whole group has settled.
func (s *Service) runParallel(ctx context.Context, ec *ExecutionContext, stream *Stream) error {
	level := s.cfg.Optimization
	if level == graph.OptimizationConservative {
		// Explicit parallel mode with one-step groups would be sequential
		// in disguise; honor the parallel flags instead.
		level = graph.OptimizationModerate
	}
	plan, err := graph.CreateParallelPlan(ec.Graph, level)
	if err != nil {
		return err
	}

	for _, group := range plan.Groups {
		var runnable []template.StepID
		for _, id := range group {
			if ec.Settled(id) {
				continue
			}
			if skipped, err := s.trySkipConditional(ctx, ec, id, stream); err != nil {
				return err
			} else if skipped {
				continue
			}
			runnable = append(runnable, id)
		}
		if len(runnable) == 0 {
			continue
		}
		if err := s.checkRun(ctx, ec); err != nil {
			return err
		}

		if len(runnable) == 1 {
			if err := s.runStepInline(ctx, ec, runnable[0], stream); err != nil {
				return err
			}
			continue
		}

		var failure error
		for _, outcome := range s.runGroup(ctx, ec, runnable, stream) {
			s.fold(ctx, ec, outcome.exec, stream)
			if outcome.err != nil && failure == nil {
				failure = outcome.err
			}
		}
		if failure != nil {
			return failure
		}
	}
	return nil
}

// runGroup dispatches the group members concurrently, bounded by the run's
// parallelism semaphore, and waits for all of them. Outcomes come back in
// member order so folding stays deterministic.
func (s *Service) runGroup(ctx context.Context, ec *ExecutionContext, ids []template.StepID, stream *Stream) []stepOutcome {
	outcomes := make([]stepOutcome, len(ids))
	var wg sync.WaitGroup

	for i, id := range ids {
		step, _ := ec.Graph.Step(id)
		exec := model.NewStepExecution(ec.Run.ID, id, s.maxRetriesFor(step), materializeInputs(ec, step))

		wg.Add(1)
		go func(i int, step template.StepTemplate, exec model.StepExecution) {
			defer wg.Done()
			if err := ec.sem.Acquire(ctx, 1); err != nil {
				outcomes[i] = stepOutcome{id: exec.StepID, exec: exec, err: err}
				return
			}
			defer ec.sem.Release(1)
			done, err := s.runStep(ctx, ec.Run.Workspace, step, exec, stream)
			outcomes[i] = stepOutcome{id: exec.StepID, exec: done, err: err}
		}(i, step, exec)
	}

	wg.Wait()
	return outcomes
}

// runAdaptive schedules from the live ready frontier. Steps are dispatched
// as their dependencies resolve, tracked in an in-flight set so nothing is
// scheduled twice; each completion re-opens the frontier. On failure or a
// stop request the loop stops launching and drains what is in flight.
func (s *Service) runAdaptive(ctx context.Context, ec *ExecutionContext, stream *Stream) error {
	results := make(chan stepOutcome)
	inFlight := map[template.StepID]bool{}
	var failure error

	launch := func(id template.StepID) {
		step, _ := ec.Graph.Step(id)
		exec := model.NewStepExecution(ec.Run.ID, id, s.maxRetriesFor(step), materializeInputs(ec, step))
		inFlight[id] = true
		go func() {
			if err := ec.sem.Acquire(ctx, 1); err != nil {
				results <- stepOutcome{id: id, exec: exec, err: err}
				return
			}
			defer ec.sem.Release(1)
			done, err := s.runStep(ctx, ec.Run.Workspace, step, exec, stream)
			results <- stepOutcome{id: id, exec: done, err: err}
		}()
	}

	for {
		if failure != nil {
			for len(inFlight) > 0 {
				outcome := <-results
				delete(inFlight, outcome.id)
				s.fold(ctx, ec, outcome.exec, stream)
			}
			return failure
		}

		if err := s.checkRun(ctx, ec); err != nil {
			failure = err
			continue
		}

		outstanding := ec.Outstanding()
		if len(outstanding) == 0 && len(inFlight) == 0 {
			return nil
		}

		ready := make([]template.StepID, 0, len(outstanding))
		skippedAny := false
		for _, id := range ec.ReadySteps() {
			if inFlight[id] {
				continue
			}
			if skipped, err := s.trySkipConditional(ctx, ec, id, stream); err != nil {
				failure = err
				break
			} else if skipped {
				skippedAny = true
				continue
			}
			ready = append(ready, id)
		}
		if failure != nil || skippedAny {
			// Skips may have unblocked dependents; recompute the frontier.
			continue
		}

		if len(ready) == 0 && len(inFlight) == 0 {
			return pwerrors.NewDeadlockError(stepIDStrings(outstanding))
		}

		if len(inFlight) == 0 && len(ready) > 0 && (len(ready) == 1 || ec.Strategy == StrategyImmediate) {
			if err := s.runStepInline(ctx, ec, ready[0], stream); err != nil {
				failure = err
			}
			continue
		}

		budget := s.cfg.MaxParallelSteps - len(inFlight)
		for _, id := range ready {
			if budget <= 0 {
				break
			}
			launch(id)
			budget--
		}

		if len(inFlight) == 0 {
			continue
		}

		outcome := <-results
		delete(inFlight, outcome.id)
		s.fold(ctx, ec, outcome.exec, stream)
		if outcome.err != nil {
			failure = outcome.err
		}
	}
}
