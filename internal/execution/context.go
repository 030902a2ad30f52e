package execution

import (
	"golang.org/x/sync/semaphore"

	"github.com/pipewright/pipewright/internal/graph"
	"github.com/pipewright/pipewright/internal/model"
	"github.com/pipewright/pipewright/internal/status"
	"github.com/pipewright/pipewright/internal/template"
)

// Mode selects the scheduling discipline for a run.
type Mode string

const (
	// ModeSequential executes steps one at a time in topological order.
	ModeSequential Mode = "sequential"
	// ModeParallel executes the planner's groups, members of a group
	// concurrently.
	ModeParallel Mode = "parallel"
	// ModeAdaptive schedules from the live ready frontier, dispatching as
	// dependencies resolve. It is the default.
	ModeAdaptive Mode = "adaptive"
)

// Strategy tunes adaptive scheduling.
type Strategy string

const (
	// StrategyConcurrent lets adaptive mode dispatch every ready step up to
	// the parallelism bound.
	StrategyConcurrent Strategy = "concurrent"
	// StrategyImmediate runs ready steps one at a time even when several are
	// ready, trading throughput for strict ordering.
	StrategyImmediate Strategy = "immediate"
)

// ExecutionContext is the orchestrator's working state for one run: the run
// aggregate, the dependency graph, the shared variables namespace, and the
// bookkeeping of which steps are settled. Only the orchestrator goroutine
// mutates it; step goroutines receive value copies and report back through
// outcomes.
type ExecutionContext struct {
	Run       model.PipelineRun
	Template  *template.Template
	Graph     *graph.Graph
	Mode      Mode
	Strategy  Strategy
	Variables *Variables

	sem        *semaphore.Weighted
	executions map[template.StepID]model.StepExecution
	satisfied  map[template.StepID]bool
	failed     map[template.StepID]bool
}

func newExecutionContext(run model.PipelineRun, tmpl *template.Template, g *graph.Graph, mode Mode, strategy Strategy, maxParallel int) *ExecutionContext {
	if mode == "" {
		mode = ModeAdaptive
	}
	if strategy == "" {
		strategy = StrategyConcurrent
	}
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &ExecutionContext{
		Run:        run,
		Template:   tmpl,
		Graph:      g,
		Mode:       mode,
		Strategy:   strategy,
		Variables:  NewVariables(run.Inputs),
		sem:        semaphore.NewWeighted(int64(maxParallel)),
		executions: map[template.StepID]model.StepExecution{},
		satisfied:  map[template.StepID]bool{},
		failed:     map[template.StepID]bool{},
	}
}

// record folds a settled step execution into the context. Satisfied steps
// publish their outputs into the variables namespace; countTokens is false
// when replaying persisted records on resume, whose tokens are already part
// of the run totals.
func (c *ExecutionContext) record(exec model.StepExecution, countTokens bool) {
	c.executions[exec.StepID] = exec

	switch {
	case status.IsStepSatisfied(exec.Status()):
		c.satisfied[exec.StepID] = true
		c.Variables.SetStepOutputs(exec.StepID, exec.Outputs)
		if countTokens {
			c.Run = c.Run.AddTokens(exec.TokensUsed)
		}
	case status.IsStepFailed(exec.Status()):
		c.failed[exec.StepID] = true
	}
}

// Execution returns the recorded execution for id, if any.
func (c *ExecutionContext) Execution(id template.StepID) (model.StepExecution, bool) {
	exec, ok := c.executions[id]
	return exec, ok
}

// Satisfied reports whether id completed or was skipped.
func (c *ExecutionContext) Satisfied(id template.StepID) bool { return c.satisfied[id] }

// Settled reports whether id has reached any final disposition.
func (c *ExecutionContext) Settled(id template.StepID) bool {
	return c.satisfied[id] || c.failed[id]
}

// Done reports whether every step in the graph is satisfied.
func (c *ExecutionContext) Done() bool {
	return len(c.satisfied) == c.Graph.Size()
}

// Outstanding returns the steps not yet settled, in id order.
func (c *ExecutionContext) Outstanding() []template.StepID {
	var out []template.StepID
	for _, id := range c.Graph.StepIDs() {
		if !c.Settled(id) {
			out = append(out, id)
		}
	}
	return out
}

// ReadySteps returns the outstanding steps whose dependencies, declared and
// inferred alike, are all satisfied. Order is deterministic by step id.
func (c *ExecutionContext) ReadySteps() []template.StepID {
	var ready []template.StepID
	for _, id := range c.Outstanding() {
		ok := true
		for _, dep := range c.Graph.DependenciesOf(id) {
			if !c.satisfied[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, id)
		}
	}
	return ready
}
