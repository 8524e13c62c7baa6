package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-tasks/pkg/service"
)

func NewSearchCmd(svc **service.Service) *cobra.Command {
	var (
		searchTag   string
		searchLimit int
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search tasks",
		Long: `Search task titles and paths in the local index.

The index is rebuilt whenever the forest changes on refresh.

Examples:
  tasks search passport
  tasks search --tag travel
  tasks search flights -t travel`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			if len(args) == 0 && searchTag == "" {
				return fmt.Errorf("give a query or --tag")
			}
			if err := refreshOrCached(cmd.Context(), s); err != nil {
				return err
			}

			query := strings.Join(args, " ")
			results, err := s.Search(query, service.WithTag(searchTag), service.WithLimit(searchLimit))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No results found")
				return nil
			}
			fmt.Fprintf(out, "Found %d results:\n\n", len(results))
			for i, r := range results {
				fmt.Fprintf(out, "%d. %s\n   %s\n", i+1, r.Title, r.Path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&searchTag, "tag", "t", "", "Only tasks with this tag")
	cmd.Flags().IntVar(&searchLimit, "limit", 50, "Maximum results")

	return cmd
}
