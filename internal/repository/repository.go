package repository

import (
	"context"

	"github.com/pipewright/pipewright/internal/model"
	"github.com/pipewright/pipewright/internal/template"
)

// TemplateRepository loads pipeline templates by id within a workspace.
type TemplateRepository interface {
	GetByID(ctx context.Context, id, workspace string) (*template.Template, error)
}

// RunRepository persists pipeline runs. Save must be safe to call from
// concurrent step goroutines of the same run.
type RunRepository interface {
	Save(ctx context.Context, run model.PipelineRun) error
	GetByID(ctx context.Context, id, workspace string) (model.PipelineRun, error)
}

// StepExecutionRepository persists per-step execution records. ListByRunID
// returns every attempt recorded for a run and is used on resume.
type StepExecutionRepository interface {
	Save(ctx context.Context, exec model.StepExecution, workspace string) error
	ListByRunID(ctx context.Context, runID, workspace string) ([]model.StepExecution, error)
}
