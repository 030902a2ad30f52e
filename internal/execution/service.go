package execution

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/pipewright/pipewright/internal/events"
	"github.com/pipewright/pipewright/internal/executor"
	"github.com/pipewright/pipewright/internal/graph"
	"github.com/pipewright/pipewright/internal/logger"
	"github.com/pipewright/pipewright/internal/model"
	"github.com/pipewright/pipewright/internal/repository"
	"github.com/pipewright/pipewright/internal/status"
	"github.com/pipewright/pipewright/internal/template"
	pwerrors "github.com/pipewright/pipewright/pkg/errors"
)

const (
	// DefaultMaxParallelSteps bounds concurrent step dispatch per run.
	DefaultMaxParallelSteps = 5
	// DefaultStepTimeout applies when a step declares no timeout_seconds.
	DefaultStepTimeout = 300 * time.Second
	// DefaultMaxRetries applies when a step declares no retry policy.
	DefaultMaxRetries = 3
)

// Sentinels used to unwind the mode loops when a cooperative stop is
// observed between scheduling ticks.
var (
	errRunPaused    = errors.New("run paused")
	errRunCancelled = errors.New("run cancelled")
)

// Config tunes the execution service. Zero values take the defaults above.
type Config struct {
	MaxParallelSteps int
	StepTimeout      time.Duration
	MaxRetries       int
	Optimization     graph.OptimizationLevel
}

func (c Config) withDefaults() Config {
	if c.MaxParallelSteps <= 0 {
		c.MaxParallelSteps = DefaultMaxParallelSteps
	}
	if c.StepTimeout <= 0 {
		c.StepTimeout = DefaultStepTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	if c.Optimization == "" {
		c.Optimization = graph.OptimizationConservative
	}
	return c
}

// Service orchestrates pipeline runs: it loads templates, builds dependency
// graphs, schedules steps through the registered executors, and persists run
// and step state ahead of every emitted event.
type Service struct {
	templates repository.TemplateRepository
	runs      repository.RunRepository
	steps     repository.StepExecutionRepository
	registry  *executor.Registry
	log       *logger.Logger
	cfg       Config
}

// NewService wires an execution service from its collaborators.
func NewService(
	templates repository.TemplateRepository,
	runs repository.RunRepository,
	steps repository.StepExecutionRepository,
	registry *executor.Registry,
	log *logger.Logger,
	cfg Config,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		templates: templates,
		runs:      runs,
		steps:     steps,
		registry:  registry,
		log:       log,
		cfg:       cfg.withDefaults(),
	}
}

// Request describes one pipeline execution.
type Request struct {
	TemplateID string
	Workspace  string
	Inputs     map[string]any
	Mode       Mode
	Strategy   Strategy
}

// ResumeRequest continues a paused run.
type ResumeRequest struct {
	RunID     string
	Workspace string
	Mode      Mode
	Strategy  Strategy
}

// ExecutePipeline validates the request, persists a new run, and starts
// driving it on a background goroutine. The returned Stream reports progress;
// validation and lookup failures are returned immediately instead.
func (s *Service) ExecutePipeline(ctx context.Context, req Request) (*Stream, error) {
	tmpl, err := s.templates.GetByID(ctx, req.TemplateID, req.Workspace)
	if err != nil {
		return nil, err
	}

	inputs := tmpl.ApplyInputDefaults(req.Inputs)
	if problems := tmpl.ValidateInputs(inputs); len(problems) > 0 {
		return nil, pwerrors.NewValidationError("inputs", strings.Join(problems, "; "), nil)
	}

	g, err := graph.Build(tmpl)
	if err != nil {
		return nil, err
	}

	run := model.NewPipelineRun(tmpl.ID, req.Workspace, inputs)
	if err := s.runs.Save(ctx, run); err != nil {
		return nil, err
	}
	run, err = run.WithStatus(status.PipelineRunning, "")
	if err != nil {
		return nil, err
	}
	if err := s.runs.Save(ctx, run); err != nil {
		return nil, err
	}

	ec := newExecutionContext(run, tmpl, g, req.Mode, req.Strategy, s.cfg.MaxParallelSteps)
	stream := newStream(run.ID)
	go s.drive(ctx, ec, stream, events.PipelineStarted)
	return stream, nil
}

// ResumePipeline restarts a paused run from its persisted step records.
// Settled steps are replayed into the context, so an already-finished run
// completes again without re-executing anything.
func (s *Service) ResumePipeline(ctx context.Context, req ResumeRequest) (*Stream, error) {
	run, err := s.runs.GetByID(ctx, req.RunID, req.Workspace)
	if err != nil {
		return nil, err
	}
	if run.Status() != status.PipelinePaused {
		return nil, pwerrors.NewValidationError("run", "only paused runs can be resumed", nil)
	}

	tmpl, err := s.templates.GetByID(ctx, run.PipelineID, req.Workspace)
	if err != nil {
		return nil, err
	}
	g, err := graph.Build(tmpl)
	if err != nil {
		return nil, err
	}
	records, err := s.steps.ListByRunID(ctx, req.RunID, req.Workspace)
	if err != nil {
		return nil, err
	}

	run, err = run.WithStatus(status.PipelineRunning, "")
	if err != nil {
		return nil, err
	}
	if err := s.runs.Save(ctx, run); err != nil {
		return nil, err
	}

	ec := newExecutionContext(run, tmpl, g, req.Mode, req.Strategy, s.cfg.MaxParallelSteps)
	for _, record := range records {
		ec.record(record, false)
	}

	stream := newStream(run.ID)
	go s.drive(ctx, ec, stream, events.PipelineResumed)
	return stream, nil
}

// PausePipeline requests a cooperative pause. The orchestrator observes the
// persisted status between scheduling ticks; steps already in flight finish
// first.
func (s *Service) PausePipeline(ctx context.Context, runID, workspace string) error {
	run, err := s.runs.GetByID(ctx, runID, workspace)
	if err != nil {
		return err
	}
	run, err = run.WithStatus(status.PipelinePaused, "")
	if err != nil {
		return err
	}
	return s.runs.Save(ctx, run)
}

// CancelPipeline requests a cooperative cancellation, valid from any
// non-terminal run status.
func (s *Service) CancelPipeline(ctx context.Context, runID, workspace string) error {
	run, err := s.runs.GetByID(ctx, runID, workspace)
	if err != nil {
		return err
	}
	run, err = run.WithStatus(status.PipelineCancelled, "")
	if err != nil {
		return err
	}
	return s.runs.Save(ctx, run)
}

// GetRun loads the persisted run record.
func (s *Service) GetRun(ctx context.Context, runID, workspace string) (model.PipelineRun, error) {
	return s.runs.GetByID(ctx, runID, workspace)
}

// drive runs the selected mode to a terminal state, persisting the run
// before emitting the matching terminal event.
func (s *Service) drive(ctx context.Context, ec *ExecutionContext, stream *Stream, opening events.Type) {
	log := s.log.WithRun(ec.Run.ID)
	log.Info("pipeline execution starting")

	stream.emit(ctx, events.New(opening, ec.Run.ID, map[string]any{
		"pipeline_id": ec.Run.PipelineID,
		"mode":        string(ec.Mode),
	}))

	err := s.runMode(ctx, ec, stream)

	// Persistence during teardown must survive caller cancellation.
	saveCtx := context.WithoutCancel(ctx)

	// A stop request persisted after the last status check must not be
	// overwritten by the terminal save; re-read the record before sealing.
	if latest, lerr := s.runs.GetByID(saveCtx, ec.Run.ID, ec.Run.Workspace); lerr == nil {
		switch {
		case latest.Status() == status.PipelineCancelled:
			err = errRunCancelled
		case latest.Status() == status.PipelinePaused && err == nil:
			err = errRunPaused
		}
	}

	switch {
	case err == nil:
		run := ec.Run.WithOutputs(aggregateOutputs(ec))
		run, terr := run.WithStatus(status.PipelineCompleted, "")
		if terr != nil {
			s.failRun(ctx, saveCtx, ec, stream, terr)
			return
		}
		ec.Run = run
		if serr := s.runs.Save(saveCtx, run); serr != nil {
			log.Error(serr, "saving completed run")
		}
		stream.emit(ctx, events.New(events.PipelineCompleted, run.ID, map[string]any{
			"total_tokens": run.TotalTokensUsed,
			"steps":        ec.Graph.Size(),
		}))
		log.Info("pipeline completed")
		stream.finish(nil)

	case errors.Is(err, errRunPaused):
		if run, terr := ec.Run.WithStatus(status.PipelinePaused, ""); terr == nil {
			ec.Run = run
			if serr := s.runs.Save(saveCtx, run); serr != nil {
				log.Error(serr, "saving paused run")
			}
		}
		stream.emit(ctx, events.New(events.PipelinePaused, ec.Run.ID, nil))
		log.Info("pipeline paused")
		stream.finish(nil)

	case errors.Is(err, errRunCancelled), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		if run, terr := ec.Run.WithStatus(status.PipelineCancelled, ""); terr == nil {
			ec.Run = run
			if serr := s.runs.Save(saveCtx, run); serr != nil {
				log.Error(serr, "saving cancelled run")
			}
		}
		stream.emit(ctx, events.New(events.PipelineCancelled, ec.Run.ID, nil))
		log.Info("pipeline cancelled")
		stream.finish(nil)

	default:
		s.failRun(ctx, saveCtx, ec, stream, err)
	}
}

// failRun saves on saveCtx but emits on the run context, so an abandoned
// consumer cannot block the orchestrator goroutine on the failure path.
func (s *Service) failRun(ctx, saveCtx context.Context, ec *ExecutionContext, stream *Stream, cause error) {
	if run, terr := ec.Run.WithStatus(status.PipelineFailed, cause.Error()); terr == nil {
		ec.Run = run
		if serr := s.runs.Save(saveCtx, run); serr != nil {
			s.log.WithRun(ec.Run.ID).Error(serr, "saving failed run")
		}
	}
	stream.emit(ctx, events.New(events.PipelineFailed, ec.Run.ID, map[string]any{
		"error": cause.Error(),
	}))
	s.log.WithRun(ec.Run.ID).Error(cause, "pipeline failed")
	stream.finish(cause)
}

func (s *Service) runMode(ctx context.Context, ec *ExecutionContext, stream *Stream) error {
	switch ec.Mode {
	case ModeSequential:
		return s.runSequential(ctx, ec, stream)
	case ModeParallel:
		return s.runParallel(ctx, ec, stream)
	default:
		return s.runAdaptive(ctx, ec, stream)
	}
}

// checkRun observes pause and cancel requests persisted by other callers.
func (s *Service) checkRun(ctx context.Context, ec *ExecutionContext) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	run, err := s.runs.GetByID(ctx, ec.Run.ID, ec.Run.Workspace)
	if err != nil {
		s.log.WithRun(ec.Run.ID).Warn("run status check failed, continuing")
		return nil
	}
	switch run.Status() {
	case status.PipelineCancelled:
		return errRunCancelled
	case status.PipelinePaused:
		return errRunPaused
	}
	return nil
}

// fold settles one step outcome in the orchestrator goroutine: the context
// is updated first, then the variables event is emitted.
func (s *Service) fold(ctx context.Context, ec *ExecutionContext, exec model.StepExecution, stream *Stream) {
	ec.record(exec, true)
	if exec.Status() == status.StepCompleted {
		stream.emit(ctx, events.NewStep(events.VariablesUpdated, ec.Run.ID, exec.StepID, map[string]any{
			"outputs": outputKeys(exec.Outputs),
		}))
	}
}

func (s *Service) maxRetriesFor(step template.StepTemplate) int {
	if step.Retry.MaxRetries > 0 {
		return step.Retry.MaxRetries
	}
	return s.cfg.MaxRetries
}

func aggregateOutputs(ec *ExecutionContext) map[string]any {
	out := map[string]any{}
	for _, id := range ec.Graph.StepIDs() {
		if outputs := ec.Variables.StepOutputs(id); outputs != nil {
			out[string(id)] = outputs
		}
	}
	return out
}

func outputKeys(outputs map[string]any) []string {
	keys := make([]string, 0, len(outputs))
	for key := range outputs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func stepIDStrings(ids []template.StepID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}
