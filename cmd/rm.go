package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-tasks/pkg/service"
)

func NewRemoveCmd(svc **service.Service) *cobra.Command {
	var recursive bool

	cmd := &cobra.Command{
		Use:     "rm <task>",
		Aliases: []string{"delete"},
		Short:   "Delete a task",
		Long: `Delete a task file from the server.

A task with subtasks is only deleted with --recursive, in which case the
subtasks are removed first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			if err := refreshOrCached(cmd.Context(), s); err != nil {
				return err
			}

			deleted, err := s.DeleteTask(cmd.Context(), args[0], recursive)
			for _, id := range deleted {
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
			}
			return err
		},
	}

	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "Also delete subtasks")

	return cmd
}
