package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-tasks/pkg/service"
	tasksync "github.com/mattsolo1/grove-tasks/pkg/sync"
)

func NewScanCmd(svc **service.Service) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Create tasks from TODO markers in notes",
		Long: `Scan notes on the server for TODO, FIXME, BUG and similar markers and
unchecked checkboxes, and create a task for each.

Which notes are scanned is controlled by the scan section of the config
file (file_patterns, skip_tags, include_completed, max_issues_per_file).
Created tasks are tagged auto-created, so scanning never picks up its own
output.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc

			report, err := s.Scan(cmd.Context(), dryRun)
			if report != nil {
				printReport(cmd.OutOrStdout(), report, dryRun)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only list what would be created")

	return cmd
}

func printReport(out io.Writer, r *tasksync.Report, dryRun bool) {
	fmt.Fprintf(out, "Scanned %d notes (%d skipped)\n", r.Scanned, r.Skipped)

	if dryRun {
		for _, is := range r.Detected {
			fmt.Fprintf(out, "  [%s] %s  (%s:%d)\n", is.Priority, is.Title, is.SourceFile, is.Line)
		}
		fmt.Fprintf(out, "%d tasks would be created\n", len(r.Detected))
		return
	}

	for _, c := range r.Created {
		fmt.Fprintf(out, "  + %s  (%s)\n", c.Title, c.From)
	}
	for _, e := range r.Errors {
		fmt.Fprintf(out, "  ! %v\n", e)
	}
	fmt.Fprintf(out, "Created %d tasks, %d failed\n", len(r.Created), r.Failed)
}
