package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	verbose   bool
	workspace string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "pipewright",
		Short:         "Pipewright runs multi-step content generation pipelines from declarative templates",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().StringVarP(&flags.workspace, "workspace", "w", "default", "Workspace scoping runs and templates")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newPlanCmd(flags))
	cmd.AddCommand(newGraphCmd(flags))
	cmd.AddCommand(newValidateCmd(flags))
	cmd.AddCommand(newVersionCmd())

	return cmd
}
