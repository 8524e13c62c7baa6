package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-tasks/pkg/service"
	"github.com/mattsolo1/grove-tasks/pkg/task"
)

func NewStatusCmd(svc **service.Service) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <task> [kind]",
		Short: "Show or change the status of a task",
		Long: `Show or change the status of a task.

Without a kind, the current status and the statuses it may move to are
printed. Kinds: todo, in_progress, waiting, blocked, on_hold, done, canceled.

Examples:
  tasks status 0b7e              # Show current status
  tasks status 0b7e in_progress  # Start working on it
  tasks status 0b7e done         # Finish it`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			if err := refreshOrCached(cmd.Context(), s); err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				t, err := s.LoadTask(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				next := task.NextOptions(t.Status)
				labels := make([]string, len(next))
				for i, k := range next {
					labels[i] = string(k)
				}
				fmt.Fprintf(out, "%s: %s\n", t.Title, task.Label(t.Status.Kind()))
				if len(labels) > 0 {
					fmt.Fprintf(out, "  next: %s\n", strings.Join(labels, ", "))
				}
				return nil
			}

			kind, err := task.ParseKind(args[1])
			if err != nil {
				return err
			}
			t, err := s.SetStatus(cmd.Context(), args[0], kind, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: %s\n", t.Title, task.Label(t.Status.Kind()))
			return nil
		},
	}

	return cmd
}
