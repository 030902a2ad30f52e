package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pipewright/pipewright/internal/logger"
	"github.com/pipewright/pipewright/internal/template"
)

// GenerateRequest is one completion request to a language model backend.
type GenerateRequest struct {
	Prompt  string
	Model   string
	Options map[string]any
}

// GenerateResponse carries the model output and its token accounting.
type GenerateResponse struct {
	Text       string
	TokensUsed int
}

// Client abstracts the language model backend. Real clients live outside the
// orchestration core and are injected at wiring time.
type Client interface {
	Generate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error)
}

// LLMExecutor serves llm_generate steps by delegating to a Client.
type LLMExecutor struct {
	client Client
	log    *logger.Logger
}

// NewLLMExecutor creates an executor around the given client.
func NewLLMExecutor(client Client, log *logger.Logger) *LLMExecutor {
	return &LLMExecutor{client: client, log: log}
}

// CanHandle implements StepExecutor.
func (e *LLMExecutor) CanHandle(stepType string) bool {
	return stepType == string(template.StepTypeLLMGenerate)
}

// Execute implements StepExecutor.
func (e *LLMExecutor) Execute(ctx context.Context, step template.StepTemplate, inputs map[string]any) (*Result, error) {
	prompt, _ := inputs["prompt"].(string)
	if prompt == "" {
		return nil, fmt.Errorf("step %s has no prompt to send", step.ID)
	}

	start := time.Now()
	resp, err := e.client.Generate(ctx, GenerateRequest{
		Prompt:  prompt,
		Model:   step.Model,
		Options: step.Config,
	})
	if err != nil {
		return nil, err
	}

	e.log.WithStep(string(step.ID)).Debug("llm generation finished")

	return &Result{
		Success:       true,
		Outputs:       map[string]any{"text": resp.Text},
		ExecutionTime: time.Since(start),
		TokensUsed:    resp.TokensUsed,
	}, nil
}

// LocalClient is a deterministic Client used by tests and dry runs. It
// answers every request with a digest of the prompt.
type LocalClient struct{}

// Generate implements Client.
func (LocalClient) Generate(_ context.Context, req GenerateRequest) (*GenerateResponse, error) {
	words := strings.Fields(req.Prompt)
	preview := words
	if len(preview) > 8 {
		preview = preview[:8]
	}
	return &GenerateResponse{
		Text:       fmt.Sprintf("[generated] %s", strings.Join(preview, " ")),
		TokensUsed: len(words) + 8,
	}, nil
}
