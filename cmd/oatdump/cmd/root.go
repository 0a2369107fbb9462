// Package cmd implements the oatdump command line.
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/oatdump/pkg/config"
	apperrors "github.com/oatdump/pkg/errors"
	"github.com/oatdump/pkg/model"
	"github.com/oatdump/pkg/telemetry"
	"github.com/oatdump/pkg/utils"
)

// app carries the state shared by every subcommand of one invocation.
type app struct {
	configFile string
	verbose    bool
	logFormat  string

	oatFile   string
	imageFile string
	dump      dumpOptions

	cfg      *config.Config
	logger   utils.Logger
	shutdown telemetry.ShutdownFunc
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	root, _ := newRootCmd()
	return root
}

func newRootCmd() (*cobra.Command, *app) {
	a := &app{logger: &utils.NullLogger{}}

	root := &cobra.Command{
		Use:   "oatdump",
		Short: "Dump compiled-code (oat) and heap-snapshot (image) artifacts",
		Long: `oatdump decodes an oat file or a boot/app image and prints a
human-readable report: headers, every class and method of the embedded dex
files, every object of an image, and byte-accounting statistics that
attribute the whole file to headers, objects, alignment and code.`,
		Args:              cobra.NoArgs,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		RunE:              a.runRoot,
	}

	binName := BinName()
	root.Example = `  # Dump an oat file, looking dex files up under a host sysroot
  ` + binName + ` --oat-file=out/system/framework/boot.oat --host-prefix=out

  # Dump a boot image and its oat file
  ` + binName + ` image out/system/framework/boot.art --host-prefix=out

  # Dump an app image on top of the boot image, recording the stats
  ` + binName + ` image app.art --boot-image=boot.art --record

  # Show the recorded history of an artifact
  ` + binName + ` history boot.art`

	root.PersistentFlags().StringVar(&a.configFile, "config", "", "Path to configuration file")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose output")
	root.PersistentFlags().StringVar(&a.logFormat, "log-format", "", "Log format: text or json")

	root.Flags().StringVar(&a.oatFile, "oat-file", "", "Oat file to dump")
	root.Flags().StringVar(&a.imageFile, "image", "", "Image file to dump")
	a.dump.register(root.PersistentFlags())

	root.AddCommand(newOatCmd(a), newImageCmd(a), newHistoryCmd(a), newVersionCmd())
	return root, a
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	root, a := newRootCmd()
	err := root.ExecuteContext(context.Background())
	a.close()
	if err != nil {
		a.reportError(root.ErrOrStderr(), err)
		os.Exit(1)
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConfigError, "failed to load configuration", err)
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}

	level := utils.ParseLogLevel(cfg.Log.Level)
	if a.verbose {
		level = utils.LevelDebug
	}
	a.logger = utils.NewLogger(level, cfg.Log.Format, cmd.ErrOrStderr())
	utils.SetGlobalLogger(a.logger)

	if err := a.dump.apply(cmd.Flags(), &cfg.Dump); err != nil {
		return err
	}
	a.cfg = cfg

	shutdown, err := telemetry.Init(cmd.Context())
	if err != nil {
		a.logger.Warn("Telemetry disabled: %v", err)
		return nil
	}
	a.shutdown = shutdown
	return nil
}

func (a *app) close() {
	if a.shutdown == nil {
		return
	}
	if err := a.shutdown(context.Background()); err != nil {
		a.logger.Warn("Failed to flush telemetry: %v", err)
	}
	a.shutdown = nil
}

func (a *app) reportError(w io.Writer, err error) {
	if _, ok := a.logger.(*utils.NullLogger); ok {
		fmt.Fprintf(w, "%s: %v\n", BinName(), err)
		return
	}
	a.logger.WithField("code", apperrors.GetErrorCode(err)).Error("%v", err)
}

func (a *app) runRoot(cmd *cobra.Command, _ []string) error {
	switch {
	case a.oatFile != "" && a.imageFile != "":
		_ = cmd.Usage()
		return apperrors.New(apperrors.CodeInvalidInput, "--oat-file and --image are mutually exclusive")
	case a.oatFile != "":
		return a.runDump(cmd, model.ArtifactKindOat, a.oatFile)
	case a.imageFile != "":
		return a.runDump(cmd, model.ArtifactKindImage, a.imageFile)
	default:
		_ = cmd.Usage()
		return apperrors.New(apperrors.CodeInvalidInput, "either --oat-file or --image must be specified")
	}
}

// BinName returns the base name of the current executable
func BinName() string {
	return filepath.Base(os.Args[0])
}
