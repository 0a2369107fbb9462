package cmd

import (
	"github.com/spf13/cobra"

	apperrors "github.com/oatdump/pkg/errors"
	"github.com/oatdump/pkg/model"
)

func newOatCmd(a *app) *cobra.Command {
	var oatFile string

	c := &cobra.Command{
		Use:   "oat [FILE]",
		Short: "Dump an oat file",
		Long: `Dump the header of an oat file, then every class and method of each
embedded dex file. Dex files are looked up by their on-device location,
with --host-prefix prepended; a missing dex file is reported as NOT FOUND
and the dump continues.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := artifactPath(oatFile, args, "--oat-file")
			if err != nil {
				return err
			}
			return a.runDump(cmd, model.ArtifactKindOat, path)
		},
	}
	c.Flags().StringVar(&oatFile, "oat-file", "", "Oat file to dump")
	return c
}

// artifactPath takes the artifact from its flag or the single positional argument.
func artifactPath(flagValue string, args []string, flagName string) (string, error) {
	switch {
	case flagValue != "" && len(args) > 0:
		return "", apperrors.Newf(apperrors.CodeInvalidInput, "give the artifact either as %s or as an argument, not both", flagName)
	case flagValue != "":
		return flagValue, nil
	case len(args) == 1:
		return args[0], nil
	default:
		return "", apperrors.Newf(apperrors.CodeInvalidInput, "%s is required", flagName)
	}
}
