package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oatdump/internal/repository"
	apperrors "github.com/oatdump/pkg/errors"
	"github.com/oatdump/pkg/model"
	"github.com/oatdump/pkg/writer"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit  int
		asJSON bool
	)

	c := &cobra.Command{
		Use:   "history [FILE]",
		Short: "List recorded dumps",
		Long: `List the dump summaries recorded with --record, newest first. With a
FILE argument only the dumps of that artifact are listed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				abs, err := filepath.Abs(args[0])
				if err != nil {
					return apperrors.Wrap(apperrors.CodeInvalidInput, "invalid path", err)
				}
				path = abs
			}

			repos, err := repository.Open(&a.cfg.Database)
			if err != nil {
				return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to open history database", err)
			}
			defer repos.Close()

			summaries, err := repos.Dump.List(cmd.Context(), path, limit)
			if err != nil {
				return err
			}

			if asJSON {
				return writer.NewPrettyJSONWriter[[]*model.DumpSummary]().Write(summaries, cmd.OutOrStdout())
			}
			writeHistory(cmd.OutOrStdout(), summaries)
			return nil
		},
	}
	c.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of records")
	c.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return c
}

func writeHistory(w io.Writer, summaries []*model.DumpSummary) {
	if len(summaries) == 0 {
		fmt.Fprintln(w, "no dumps recorded")
		return
	}

	fmt.Fprintf(w, "%-20s %-5s %-8s %10s %10s %8s  %s\n",
		"CREATED", "KIND", "CHECKSUM", "FILE", "OBJECTS", "CLASSES", "ARTIFACT")
	for _, s := range summaries {
		var fileBytes, objects, classes int64
		if s.Image != nil {
			fileBytes = s.Image.FileBytes
			objects = s.Image.ObjectCount
		}
		if s.Oat != nil {
			classes = s.Oat.Classes
		}
		fmt.Fprintf(w, "%-20s %-5s %08x %10d %10d %8d  %s\n",
			s.CreatedAt.Format("2006-01-02 15:04:05"), s.Kind, s.Checksum,
			fileBytes, objects, classes, s.ArtifactPath)
	}
}
