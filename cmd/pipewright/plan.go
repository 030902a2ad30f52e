package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pipewright/pipewright/internal/graph"
	"github.com/pipewright/pipewright/internal/template"
)

func newPlanCmd(root *rootFlags) *cobra.Command {
	var templatePath string
	var level string

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the parallel execution plan for a pipeline template",
		RunE: func(cmd *cobra.Command, args []string) error {
			optimization, err := parseOptimization(level)
			if err != nil {
				return err
			}

			tmpl, err := template.Load(templatePath)
			if err != nil {
				return err
			}
			g, err := graph.Build(tmpl)
			if err != nil {
				return err
			}
			plan, err := graph.CreateParallelPlan(g, optimization)
			if err != nil {
				return err
			}

			renderer := eventRenderer{tty: term.IsTerminal(int(os.Stdout.Fd()))}
			fmt.Fprintln(cmd.OutOrStdout(), renderer.paint(titleStyle, fmt.Sprintf("Plan for %s (%s)", tmpl.ID, optimization)))
			fmt.Fprintln(cmd.OutOrStdout(), plan.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Path to pipeline template file")
	cmd.Flags().StringVarP(&level, "level", "l", string(graph.OptimizationModerate), "Optimization level: conservative, moderate, or aggressive")
	cmd.MarkFlagRequired("template") //nolint:errcheck

	return cmd
}

func parseOptimization(raw string) (graph.OptimizationLevel, error) {
	switch graph.OptimizationLevel(raw) {
	case graph.OptimizationConservative, graph.OptimizationModerate, graph.OptimizationAggressive:
		return graph.OptimizationLevel(raw), nil
	}
	return "", fmt.Errorf("unknown optimization level %q", raw)
}
