package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/mattsolo1/grove-tasks/pkg/models"
	"github.com/mattsolo1/grove-tasks/pkg/service"
)

type exportDoc struct {
	ETag   string             `json:"etag"`
	Count  int                `json:"count"`
	Forest []*models.TreeNode `json:"forest"`
}

func NewExportCmd(svc **service.Service) *cobra.Command {
	var (
		grouped bool
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Export the task forest as JSON",
		Long: `Export the task forest as JSON, to stdout or to a file.

Files are replaced atomically, so a reader never sees a partial export.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s := *svc
			if !offline {
				if err := refreshOrCached(cmd.Context(), s); err != nil {
					return err
				}
			}

			doc := exportDoc{ETag: s.Store.ETag(), Count: s.Store.Len(), Forest: s.Store.Forest()}
			if grouped {
				doc.Forest = s.GroupedForest()
			}
			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return fmt.Errorf("encode forest: %w", err)
			}
			data = append(data, '\n')

			if len(args) == 0 {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := atomic.WriteFile(args[0], bytes.NewReader(data)); err != nil {
				return fmt.Errorf("write %s: %w", args[0], err)
			}
			s.Logger().WithField("file", args[0]).WithField("tasks", doc.Count).Info("exported forest")
			return nil
		},
	}

	cmd.Flags().BoolVar(&grouped, "grouped", false, "Export with root tasks grouped by tag")
	cmd.Flags().BoolVar(&offline, "offline", false, "Export the cached forest without contacting the server")

	return cmd
}
