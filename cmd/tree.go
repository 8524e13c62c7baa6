package cmd

import (
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-tasks/pkg/service"
	"github.com/mattsolo1/grove-tasks/pkg/tree"
)

func NewTreeCmd(svc **service.Service) *cobra.Command {
	var (
		flat     bool
		showIDs  bool
		showTags bool
		offline  bool
	)

	cmd := &cobra.Command{
		Use:     "tree",
		Aliases: []string{"ls"},
		Short:   "Show the task forest",
		Long: `Show the task forest.

Root tasks without children are collected under their first tag, with
untagged ones last. Use --flat to show the plain hierarchy.

Examples:
  tasks tree              # Grouped view
  tasks tree --flat --ids # Plain hierarchy with task ids`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc

			if !offline {
				if err := refreshOrCached(cmd.Context(), s); err != nil {
					return err
				}
			}

			nodes := s.GroupedForest()
			if flat {
				nodes = s.Store.Forest()
			}
			return tree.Render(cmd.OutOrStdout(), tree.FromForest(nodes), tree.Options{
				ShowIDs:  showIDs,
				ShowTags: showTags,
			})
		},
	}

	cmd.Flags().BoolVar(&flat, "flat", false, "Do not group root tasks by tag")
	cmd.Flags().BoolVar(&showIDs, "ids", false, "Show task ids")
	cmd.Flags().BoolVar(&showTags, "tags", true, "Show task tags")
	cmd.Flags().BoolVar(&offline, "offline", false, "Use the cached forest without contacting the server")

	return cmd
}
