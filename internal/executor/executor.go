package executor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pipewright/pipewright/internal/template"
	pwerrors "github.com/pipewright/pipewright/pkg/errors"
)

// Result is the outcome of one step execution attempt.
type Result struct {
	Success       bool
	Outputs       map[string]any
	ErrorMessage  string
	ExecutionTime time.Duration
	TokensUsed    int
}

// StepExecutor performs the actual work of one step type. Implementations
// must be safe for concurrent use: the orchestrator may dispatch several
// steps of the same type at once.
type StepExecutor interface {
	// CanHandle reports whether this executor serves the given step type.
	CanHandle(stepType string) bool

	// Execute runs the step against the materialized inputs. The rendered
	// prompt is available under inputs["prompt"]. A business failure is
	// reported through Result.Success, an infrastructure failure through the
	// returned error; both are retried the same way.
	Execute(ctx context.Context, step template.StepTemplate, inputs map[string]any) (*Result, error)
}

// Registry holds the registered executors. Lookup is a linear scan matching
// the first executor whose CanHandle accepts the step type.
type Registry struct {
	mu        sync.RWMutex
	executors []StepExecutor
}

// NewRegistry creates a registry pre-populated with the given executors.
func NewRegistry(executors ...StepExecutor) *Registry {
	return &Registry{executors: executors}
}

// Register appends an executor to the scan order.
func (r *Registry) Register(e StepExecutor) {
	if e == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors = append(r.executors, e)
}

// Find returns the first executor handling stepType. A miss is a fatal
// configuration error, never retried.
func (r *Registry) Find(stepType string) (StepExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, e := range r.executors {
		if e.CanHandle(stepType) {
			return e, nil
		}
	}
	return nil, pwerrors.NewExecutorError(stepType, fmt.Errorf("no executor registered"))
}
