package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-tasks/pkg/service"
)

func NewDoctorCmd(svc **service.Service) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the task forest for inconsistencies",
		Long: `The doctor command reloads the forest and checks the local indices:
every child has a matching parent link, paths are unique and agree with
the task hierarchy, and there are no cycles.

Tasks found outside their parent's folder are usually left over from an
interrupted move; moving them again repairs them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			out := cmd.OutOrStdout()

			if err := refreshOrCached(cmd.Context(), s); err != nil {
				return err
			}
			fmt.Fprintf(out, "Checking %d tasks...\n", s.Store.Len())

			if err := s.Store.Validate(); err != nil {
				fmt.Fprintf(out, "Problem found: %v\n", err)
				return fmt.Errorf("forest is inconsistent")
			}
			fmt.Fprintln(out, "No problems found")
			return nil
		},
	}
}
