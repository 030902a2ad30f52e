package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pipewright/pipewright/internal/execution"
	"github.com/pipewright/pipewright/internal/executor"
	"github.com/pipewright/pipewright/internal/logger"
	"github.com/pipewright/pipewright/internal/repository"
	"github.com/pipewright/pipewright/internal/template"
)

type runOptions struct {
	TemplatePath string
	TemplatesDir string
	Mode         string
	Strategy     string
	Inputs       []string
	MaxParallel  int
}

func newRunCmd(root *rootFlags) *cobra.Command {
	opts := runOptions{}

	cmd := &cobra.Command{
		Use:   "run [template-id]",
		Short: "Execute a pipeline template and stream its progress",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd, root, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.TemplatePath, "template", "t", "", "Path to pipeline template file")
	cmd.Flags().StringVar(&opts.TemplatesDir, "templates-dir", "", "Directory of pipeline templates; pass the template id as the argument")
	cmd.Flags().StringVarP(&opts.Mode, "mode", "m", string(execution.ModeAdaptive), "Execution mode: sequential, parallel, or adaptive")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", string(execution.StrategyConcurrent), "Adaptive strategy: concurrent or immediate")
	cmd.Flags().StringArrayVarP(&opts.Inputs, "input", "i", nil, "Pipeline input as key=value, repeatable")
	cmd.Flags().IntVar(&opts.MaxParallel, "max-parallel", execution.DefaultMaxParallelSteps, "Maximum concurrently running steps")
	cmd.MarkFlagsMutuallyExclusive("template", "templates-dir")

	return cmd
}

// resolveTemplates picks the template source: a single file loaded into a
// memory repository, or a directory served lazily with the id taken from the
// positional argument.
func resolveTemplates(root *rootFlags, opts runOptions, args []string) (repository.TemplateRepository, string, error) {
	switch {
	case opts.TemplatePath != "":
		tmpl, err := template.Load(opts.TemplatePath)
		if err != nil {
			return nil, "", err
		}
		templates := repository.NewMemoryTemplateRepository()
		templates.Register(root.workspace, tmpl)
		return templates, tmpl.ID, nil
	case opts.TemplatesDir != "":
		if len(args) != 1 {
			return nil, "", fmt.Errorf("--templates-dir requires a template id argument")
		}
		return repository.NewDirTemplateRepository(opts.TemplatesDir), args[0], nil
	default:
		return nil, "", fmt.Errorf("either --template or --templates-dir is required")
	}
}

func runPipeline(cmd *cobra.Command, root *rootFlags, opts runOptions, args []string) error {
	mode, err := parseMode(opts.Mode)
	if err != nil {
		return err
	}
	strategy, err := parseStrategy(opts.Strategy)
	if err != nil {
		return err
	}
	inputs, err := parseInputValues(opts.Inputs)
	if err != nil {
		return err
	}

	templates, templateID, err := resolveTemplates(root, opts, args)
	if err != nil {
		return err
	}

	tty := term.IsTerminal(int(os.Stdout.Fd()))
	level := "info"
	if root.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Options{Level: level, HumanReadable: tty})
	if err != nil {
		return err
	}

	svc := execution.NewService(
		templates,
		repository.NewMemoryRunRepository(),
		repository.NewMemoryStepExecutionRepository(),
		executor.NewRegistry(
			executor.NewLLMExecutor(executor.LocalClient{}, log),
			executor.TransformExecutor{},
			executor.ValidateExecutor{},
			executor.ConditionalExecutor{},
			executor.UserInputExecutor{},
		),
		log,
		execution.Config{MaxParallelSteps: opts.MaxParallel},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	stream, err := svc.ExecutePipeline(ctx, execution.Request{
		TemplateID: templateID,
		Workspace:  root.workspace,
		Inputs:     inputs,
		Mode:       mode,
		Strategy:   strategy,
	})
	if err != nil {
		return err
	}

	renderer := eventRenderer{tty: tty}
	for ev := range stream.Events() {
		fmt.Fprintln(cmd.OutOrStdout(), renderer.render(ev))
	}
	return stream.Err()
}

func parseMode(raw string) (execution.Mode, error) {
	switch execution.Mode(raw) {
	case execution.ModeSequential, execution.ModeParallel, execution.ModeAdaptive:
		return execution.Mode(raw), nil
	}
	return "", fmt.Errorf("unknown execution mode %q", raw)
}

func parseStrategy(raw string) (execution.Strategy, error) {
	switch execution.Strategy(raw) {
	case execution.StrategyConcurrent, execution.StrategyImmediate:
		return execution.Strategy(raw), nil
	}
	return "", fmt.Errorf("unknown strategy %q", raw)
}

// parseInputValues turns repeated key=value flags into typed inputs.
// Booleans and numbers are recognized so template input types match.
func parseInputValues(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	inputs := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid input %q, expected key=value", pair)
		}
		inputs[key] = coerceValue(value)
	}
	return inputs, nil
}

func coerceValue(raw string) any {
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return raw
}
