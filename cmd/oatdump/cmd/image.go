package cmd

import (
	"github.com/spf13/cobra"

	"github.com/oatdump/pkg/model"
)

func newImageCmd(a *app) *cobra.Command {
	var imageFile string

	c := &cobra.Command{
		Use:   "image [FILE]",
		Short: "Dump a boot or app image and its oat file",
		Long: `Dump an image header, its roots and every object it contains, then
the byte accounting of the image. The oat file named by the image is then
looked up (with --host-prefix) and dumped with the image's oat begin
address. App images resolve boot classes through --boot-image.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := artifactPath(imageFile, args, "--image")
			if err != nil {
				return err
			}
			return a.runDump(cmd, model.ArtifactKindImage, path)
		},
	}
	c.Flags().StringVar(&imageFile, "image", "", "Image file to dump")
	return c
}
