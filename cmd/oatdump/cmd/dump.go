package cmd

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/oatdump/internal/dump"
	"github.com/oatdump/internal/formatter"
	"github.com/oatdump/internal/repository"
	"github.com/oatdump/internal/resolver"
	"github.com/oatdump/internal/storage"
	"github.com/oatdump/pkg/compression"
	"github.com/oatdump/pkg/config"
	apperrors "github.com/oatdump/pkg/errors"
	"github.com/oatdump/pkg/model"
	"github.com/oatdump/pkg/utils"
	"github.com/oatdump/pkg/writer"
)

// dumpOptions mirrors config.DumpConfig. Flags given on the command line
// override the configuration file.
type dumpOptions struct {
	hostPrefix  string
	bootImage   string
	output      string
	compress    string
	disassemble bool
	summaryJSON string
	record      bool
	publish     string
	timing      bool
}

func (o *dumpOptions) register(fs *pflag.FlagSet) {
	fs.StringVar(&o.hostPrefix, "host-prefix", "", "Prefix prepended to every on-device location when looking up companion files")
	fs.StringVar(&o.bootImage, "boot-image", "", "Boot image to map below an app image")
	fs.StringVarP(&o.output, "output", "o", "", "Report destination (default stdout)")
	fs.StringVar(&o.compress, "compress", "", "Report compression: none, gzip or zstd")
	fs.BoolVar(&o.disassemble, "disassemble", false, "Disassemble compiled method code")
	fs.StringVar(&o.summaryJSON, "summary-json", "", "Write the dump summary as JSON to this path")
	fs.BoolVar(&o.record, "record", false, "Record the dump summary in the history database")
	fs.StringVar(&o.publish, "publish", "", "Upload the report to the storage backend under this key")
	fs.BoolVar(&o.timing, "timing", false, "Log per-phase timing")
}

func (o *dumpOptions) apply(fs *pflag.FlagSet, cfg *config.DumpConfig) error {
	set := func(name string, apply func()) {
		if f := fs.Lookup(name); f != nil && f.Changed {
			apply()
		}
	}
	set("host-prefix", func() { cfg.HostPrefix = o.hostPrefix })
	set("boot-image", func() { cfg.BootImage = o.bootImage })
	set("output", func() { cfg.Output = o.output })
	set("compress", func() { cfg.Compress = o.compress })
	set("disassemble", func() { cfg.Disassemble = o.disassemble })
	set("summary-json", func() { cfg.SummaryJSON = o.summaryJSON })
	set("record", func() { cfg.Record = o.record })
	set("publish", func() { cfg.Publish = o.publish })
	set("timing", func() { cfg.Timing = o.timing })

	if _, err := compression.ParseType(cfg.Compress); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "invalid --compress", err)
	}
	return nil
}

// runDump dumps one artifact to the configured sink and runs the
// post-dump steps: summary export, history record and report publish.
func (a *app) runDump(cmd *cobra.Command, kind model.ArtifactKind, path string) error {
	ctx := cmd.Context()
	cfg := a.cfg

	// Records are keyed by absolute path.
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	log := a.logger.WithFields(map[string]interface{}{
		"artifact": path,
		"kind":     string(kind),
	})

	store, err := storage.NewStorage(&cfg.Storage)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeConfigError, "failed to create storage", err)
	}
	res := resolver.New(store, cfg.Dump.HostPrefix, log)

	sink, closeSink, err := openOutput(cmd.OutOrStdout(), cfg.Dump.Output)
	if err != nil {
		return err
	}
	defer closeSink()

	var report *bytes.Buffer
	out := sink
	if cfg.Dump.Publish != "" {
		report = &bytes.Buffer{}
		out = io.MultiWriter(sink, report)
	}

	ctype, _ := compression.ParseType(cfg.Dump.Compress)
	cw, err := compression.NewWriter(out, ctype, compression.LevelDefault)
	if err != nil {
		return err
	}

	renderer := formatter.NewTextRenderer(cw)
	timer := utils.NewTimer("oatdump", utils.WithLogger(log), utils.WithEnabled(cfg.Dump.Timing))
	dumper := dump.NewDumper(dump.Options{
		BootImage:   cfg.Dump.BootImage,
		Disassemble: cfg.Dump.Disassemble,
	}, res, renderer, dump.WithLogger(log), dump.WithTimer(timer))

	var summary *model.DumpSummary
	if kind == model.ArtifactKindImage {
		summary, err = dumper.DumpImage(ctx, path)
	} else {
		summary, err = dumper.DumpOat(ctx, path)
	}

	// Whatever was rendered before a failure still reaches the sink.
	flushErr := renderer.Flush()
	closeErr := cw.Close()
	if err != nil {
		return err
	}
	if flushErr != nil {
		return fmt.Errorf("failed to write report: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to finish report: %w", closeErr)
	}

	timer.PrintSummary()
	formatter.LogSummary(summary, log)

	if cfg.Dump.SummaryJSON != "" {
		if err := writer.NewPrettyJSONWriter[*model.DumpSummary]().WriteToFile(summary, cfg.Dump.SummaryJSON); err != nil {
			return err
		}
		log.Info("Summary written to %s", cfg.Dump.SummaryJSON)
	}

	if cfg.Dump.Record {
		if err := a.record(cmd, summary, log); err != nil {
			return err
		}
	}

	if report != nil {
		if err := store.Upload(ctx, cfg.Dump.Publish, report); err != nil {
			return err
		}
		log.Info("Report published to %s", store.GetURL(cfg.Dump.Publish))
	}
	return nil
}

func (a *app) record(cmd *cobra.Command, summary *model.DumpSummary, log utils.Logger) error {
	repos, err := repository.Open(&a.cfg.Database)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to open history database", err)
	}
	defer repos.Close()

	id, err := repos.Dump.Save(cmd.Context(), summary)
	if err != nil {
		return err
	}
	log.WithField("record_id", id).Info("Dump recorded")
	return nil
}

func openOutput(stdout io.Writer, path string) (io.Writer, func(), error) {
	if path == "" || path == "-" {
		return stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.CodeInvalidInput, "failed to create output file", err)
	}
	return f, func() { f.Close() }, nil
}
