package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-tasks/pkg/service"
	"github.com/mattsolo1/grove-tasks/pkg/task"
)

func NewShowCmd(svc **service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "show <task>",
		Short: "Show a task",
		Long: `Show the content of a single task.

The task may be given as a full id, a unique id prefix, or its path.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			if err := refreshOrCached(cmd.Context(), s); err != nil {
				return err
			}

			t, err := s.LoadTask(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rec, _ := s.Store.Node(t.UUID)

			var b strings.Builder
			fmt.Fprintf(&b, "%s\n", t.Title)
			fmt.Fprintf(&b, "  ID:         %s\n", t.UUID)
			fmt.Fprintf(&b, "  Path:       %s\n", rec.Path)
			fmt.Fprintf(&b, "  Status:     %s\n", task.Label(t.Status.Kind()))
			fmt.Fprintf(&b, "  Progress:   %d%%\n", t.Progress)
			fmt.Fprintf(&b, "  Importance: %d  Urgency: %d\n", t.Importance, t.Urgency)
			if len(t.Tags) > 0 {
				fmt.Fprintf(&b, "  Tags:       %s\n", strings.Join(t.Tags, ", "))
			}
			if t.DueBy != "" {
				fmt.Fprintf(&b, "  Due:        %s\n", t.DueBy)
			}
			if t.Deadline != "" {
				fmt.Fprintf(&b, "  Deadline:   %s\n", t.Deadline)
			}
			if children := s.Store.ChildrenOf(t.UUID); len(children) > 0 {
				fmt.Fprintf(&b, "  Subtasks:\n")
				for _, c := range children {
					fmt.Fprintf(&b, "    - %s\n", c.DisplayTitle())
				}
			}
			if note := strings.TrimSpace(t.Note); note != "" {
				fmt.Fprintf(&b, "\n%s\n", note)
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), b.String())
			return err
		},
	}
}
