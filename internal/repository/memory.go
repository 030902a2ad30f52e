package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/pipewright/pipewright/internal/model"
	"github.com/pipewright/pipewright/internal/template"
	pwerrors "github.com/pipewright/pipewright/pkg/errors"
)

// MemoryTemplateRepository holds registered templates in memory, keyed by
// (workspace, id).
type MemoryTemplateRepository struct {
	mu        sync.RWMutex
	templates map[string]*template.Template
}

// NewMemoryTemplateRepository creates an empty template repository.
func NewMemoryTemplateRepository() *MemoryTemplateRepository {
	return &MemoryTemplateRepository{templates: make(map[string]*template.Template)}
}

// Register stores a template for the workspace.
func (r *MemoryTemplateRepository) Register(workspace string, tmpl *template.Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.templates[workspace+"/"+tmpl.ID] = tmpl
}

// GetByID implements TemplateRepository.
func (r *MemoryTemplateRepository) GetByID(_ context.Context, id, workspace string) (*template.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tmpl, ok := r.templates[workspace+"/"+id]
	if !ok {
		return nil, pwerrors.NewNotFoundError("template", id, workspace)
	}
	return tmpl, nil
}

// MemoryRunRepository stores pipeline runs in memory.
type MemoryRunRepository struct {
	mu   sync.RWMutex
	runs map[string]model.PipelineRun
}

// NewMemoryRunRepository creates an empty run repository.
func NewMemoryRunRepository() *MemoryRunRepository {
	return &MemoryRunRepository{runs: make(map[string]model.PipelineRun)}
}

// Save implements RunRepository.
func (r *MemoryRunRepository) Save(_ context.Context, run model.PipelineRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs[run.Workspace+"/"+run.ID] = run
	return nil
}

// GetByID implements RunRepository.
func (r *MemoryRunRepository) GetByID(_ context.Context, id, workspace string) (model.PipelineRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[workspace+"/"+id]
	if !ok {
		return model.PipelineRun{}, pwerrors.NewNotFoundError("pipeline run", id, workspace)
	}
	return run, nil
}

// MemoryStepExecutionRepository stores step executions in memory, newest
// write wins per execution id.
type MemoryStepExecutionRepository struct {
	mu    sync.RWMutex
	execs map[string]map[string]model.StepExecution
}

// NewMemoryStepExecutionRepository creates an empty step execution repository.
func NewMemoryStepExecutionRepository() *MemoryStepExecutionRepository {
	return &MemoryStepExecutionRepository{execs: make(map[string]map[string]model.StepExecution)}
}

// Save implements StepExecutionRepository.
func (r *MemoryStepExecutionRepository) Save(_ context.Context, exec model.StepExecution, workspace string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := workspace + "/" + exec.RunID
	if r.execs[key] == nil {
		r.execs[key] = make(map[string]model.StepExecution)
	}
	r.execs[key][exec.ID] = exec
	return nil
}

// ListByRunID implements StepExecutionRepository.
func (r *MemoryStepExecutionRepository) ListByRunID(_ context.Context, runID, workspace string) ([]model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored := r.execs[workspace+"/"+runID]
	out := make([]model.StepExecution, 0, len(stored))
	for _, exec := range stored {
		out = append(out, exec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StepID < out[j].StepID
	})
	return out, nil
}
