package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-tasks/pkg/service"
)

func NewTagsCmd(svc **service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List tags with their task counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			if err := refreshOrCached(cmd.Context(), s); err != nil {
				return err
			}

			counts, err := s.Index.Tags()
			if err != nil {
				return err
			}
			tags := make([]string, 0, len(counts))
			for tag := range counts {
				tags = append(tags, tag)
			}
			sort.Strings(tags)

			for _, tag := range tags {
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %d\n", tag, counts[tag])
			}
			return nil
		},
	}
}
