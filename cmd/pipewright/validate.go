package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pipewright/pipewright/internal/graph"
	"github.com/pipewright/pipewright/internal/template"
)

func newValidateCmd(root *rootFlags) *cobra.Command {
	var templatePath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a pipeline template without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			tmpl, err := template.Load(templatePath)
			if err != nil {
				return err
			}
			// Inferred edges can introduce cycles the declared graph does not
			// have; a full build surfaces them before any run does.
			g, err := graph.Build(tmpl)
			if err != nil {
				return err
			}

			renderer := eventRenderer{tty: term.IsTerminal(int(os.Stdout.Fd()))}
			fmt.Fprintln(cmd.OutOrStdout(), renderer.paint(successStyle,
				fmt.Sprintf("✔ %s %s is valid: %d steps, %d dependencies", tmpl.ID, tmpl.Version, g.Size(), len(g.Dependencies()))))
			return nil
		},
	}

	cmd.Flags().StringVarP(&templatePath, "template", "t", "", "Path to pipeline template file")
	cmd.MarkFlagRequired("template") //nolint:errcheck

	return cmd
}
