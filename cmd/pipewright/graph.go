package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pipewright/pipewright/internal/graph"
	"github.com/pipewright/pipewright/internal/template"
)

func newGraphCmd(root *rootFlags) *cobra.Command {
	var templatePath string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Analyze the dependency graph of a pipeline template",
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := template.Load(templatePath)
			if err != nil {
				return err
			}
			g, err := graph.Build(tmpl)
			if err != nil {
				return err
			}
			report, err := graph.Analyze(g)
			if err != nil {
				return err
			}

			renderer := eventRenderer{tty: term.IsTerminal(int(os.Stdout.Fd()))}
			fmt.Fprintln(cmd.OutOrStdout(), renderer.paint(titleStyle, fmt.Sprintf("Dependency graph for %s", tmpl.ID)))
			fmt.Fprintln(cmd.OutOrStdout(), report.String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Path to pipeline template file")
	cmd.MarkFlagRequired("template") //nolint:errcheck

	return cmd
}
