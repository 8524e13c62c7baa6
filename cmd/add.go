package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-tasks/pkg/service"
)

func NewAddCmd(svc **service.Service) *cobra.Command {
	var (
		parent string
		tags   []string
		note   string
	)

	cmd := &cobra.Command{
		Use:   "add <title>",
		Short: "Create a task",
		Long: `Create a new todo task.

Examples:
  tasks add "Renew passport"
  tasks add "Book flights" --parent 6f1c -t travel
  tasks add "Call the bank" --note "Ask about the transfer limit"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			if err := refreshOrCached(cmd.Context(), s); err != nil {
				return err
			}

			opts := []service.CreateOption{service.WithTags(tags...), service.WithNote(note)}
			if parent != "" {
				opts = append(opts, service.UnderParent(parent))
			}

			t, err := s.CreateTask(cmd.Context(), strings.Join(args, " "), opts...)
			if err != nil {
				return err
			}
			rec, _ := s.Store.Node(t.UUID)
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s\n  %s\n", t.UUID, rec.Path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&parent, "parent", "p", "", "Parent task")
	cmd.Flags().StringSliceVarP(&tags, "tag", "t", nil, "Tags (repeatable)")
	cmd.Flags().StringVar(&note, "note", "", "Task body")

	return cmd
}
