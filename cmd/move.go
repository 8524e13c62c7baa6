package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-tasks/pkg/service"
)

func NewMoveCmd(svc **service.Service) *cobra.Command {
	var (
		toRoot bool
		index  int
	)

	cmd := &cobra.Command{
		Use:   "move <task> [parent]",
		Short: "Move a task and its subtasks",
		Long: `Move a task, with all of its subtasks, under a new parent.

Each file is renamed on the server, parent first. If some renames fail the
rest are still attempted and the forest is reloaded from the server.

Examples:
  tasks move 0b7e 6f1c        # Make 0b7e a subtask of 6f1c
  tasks move 0b7e --root      # Move 0b7e to the top level
  tasks move 0b7e 6f1c -i 0   # Insert as the first subtask`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc

			parent := ""
			switch {
			case len(args) == 2 && toRoot:
				return fmt.Errorf("give either a parent or --root, not both")
			case len(args) == 2:
				parent = args[1]
			case !toRoot:
				return fmt.Errorf("missing parent (use --root to move to the top level)")
			}

			if err := refreshOrCached(cmd.Context(), s); err != nil {
				return err
			}

			res, err := s.MoveTask(cmd.Context(), args[0], parent, index)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Moved %d file(s)\n", len(res.Moved))
			for _, f := range res.Failed {
				fmt.Fprintf(out, "  failed %s: %v\n", f.OldPath, f.Err)
			}
			if len(res.Skipped) > 0 {
				fmt.Fprintf(out, "  skipped %d file(s) below failed moves\n", len(res.Skipped))
			}
			if res.Partial() {
				return fmt.Errorf("move was only partly applied")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&toRoot, "root", false, "Move to the top level")
	cmd.Flags().IntVarP(&index, "index", "i", -1, "Position among the new siblings (default last)")

	return cmd
}
