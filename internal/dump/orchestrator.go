package dump

import (
	"context"
	"path/filepath"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/oatdump/internal/artifact"
	"github.com/oatdump/internal/heap"
	"github.com/oatdump/internal/oat"
	apperrors "github.com/oatdump/pkg/errors"
	"github.com/oatdump/pkg/model"
	"github.com/oatdump/pkg/telemetry"
	"github.com/oatdump/pkg/utils"
)

// Options shapes a dump run.
type Options struct {
	// BootImage is a local image file whose space is added to the heap
	// before an application image, so references into it resolve.
	BootImage   string
	Disassemble bool
}

// Dumper drives one dump from an artifact path to the renderer.
type Dumper struct {
	opts     Options
	locator  Locator
	renderer Renderer
	logger   utils.Logger
	timer    *utils.Timer
	now      func() time.Time
}

// Option configures a Dumper.
type Option func(*Dumper)

// WithLogger sets the logger.
func WithLogger(logger utils.Logger) Option {
	return func(d *Dumper) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithTimer records the map, decode, walk and render phases on timer.
func WithTimer(timer *utils.Timer) Option {
	return func(d *Dumper) {
		if timer != nil {
			d.timer = timer
		}
	}
}

// WithClock overrides the timestamp source of summaries.
func WithClock(now func() time.Time) Option {
	return func(d *Dumper) { d.now = now }
}

// NewDumper creates a Dumper.
func NewDumper(opts Options, locator Locator, renderer Renderer, options ...Option) *Dumper {
	d := &Dumper{
		opts:     opts,
		locator:  locator,
		renderer: renderer,
		logger:   &utils.NullLogger{},
		timer:    utils.NullTimer,
		now:      time.Now,
	}
	for _, o := range options {
		o(d)
	}
	return d
}

// DumpOat renders the oat file at path.
func (d *Dumper) DumpOat(ctx context.Context, path string) (summary *model.DumpSummary, err error) {
	ctx, span := telemetry.StartSpan(ctx, "oatdump.oat", attribute.String("artifact.path", path))
	defer func() { telemetry.EndSpan(span, err) }()

	m, err := d.open(path)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	var f *oat.File
	if _, err = d.timer.TimeFuncWithError("decode", func() error {
		var derr error
		f, derr = oat.Open(m.Bytes(), 0)
		return derr
	}); err != nil {
		return nil, err
	}

	stats, err := d.dumpOat(ctx, f)
	if err != nil {
		return nil, err
	}
	return &model.DumpSummary{
		ArtifactPath: path,
		Kind:         model.ArtifactKindOat,
		Checksum:     f.Header().Checksum,
		OatFound:     true,
		Oat:          stats,
		CreatedAt:    d.now(),
	}, nil
}

// DumpImage renders the image at path followed by the oat file it refers to.
// An oat file that is missing or cannot be decoded is reported in the output
// and is not an error.
func (d *Dumper) DumpImage(ctx context.Context, path string) (summary *model.DumpSummary, err error) {
	ctx, span := telemetry.StartSpan(ctx, "oatdump.image", attribute.String("artifact.path", path))
	defer func() { telemetry.EndSpan(span, err) }()

	m, err := d.open(path)
	if err != nil {
		return nil, err
	}
	defer m.Close()

	decode := d.timer.Start("decode")
	target, err := heap.NewImageSpace(path, m.Bytes())
	if err != nil {
		return nil, err
	}
	spaces := []*heap.Space{}
	if d.opts.BootImage != "" && !samePath(d.opts.BootImage, path) {
		boot, err := d.open(d.opts.BootImage)
		if err != nil {
			return nil, err
		}
		defer boot.Close()
		bootSpace, err := heap.NewImageSpace(d.opts.BootImage, boot.Bytes())
		if err != nil {
			return nil, err
		}
		spaces = append(spaces, bootSpace)
	}
	h, err := heap.New(append(spaces, target)...)
	decode.Stop()
	if err != nil {
		return nil, err
	}

	imgDumper := NewImageDumper(h, h, target, d.renderer, d.logger)
	var (
		stats *model.ImageStats
		roots []RootEntry
	)
	if _, err = d.timer.TimeFuncWithError("walk", func() error {
		var werr error
		stats, roots, werr = imgDumper.Dump(ctx)
		return werr
	}); err != nil {
		return nil, err
	}

	location, err := imgDumper.OatLocation(roots)
	if err != nil {
		return nil, err
	}
	summary = &model.DumpSummary{
		ArtifactPath: path,
		Kind:         model.ArtifactKindImage,
		Checksum:     target.Header().OatChecksum,
		OatLocation:  location,
		Image:        stats,
		CreatedAt:    d.now(),
	}

	d.renderer.OatLocation(location, d.locator.Translate(location))
	f, err := d.openOat(ctx, location, target.Header().OatBegin)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		d.logger.Warn("oat file %s unavailable: %v", location, err)
		d.renderer.NotFound()
		return summary, d.renderer.Err()
	}
	if got := f.Header().Checksum; got != target.Header().OatChecksum {
		d.logger.Warn("oat checksum %08x does not match image %08x", got, target.Header().OatChecksum)
		d.renderer.OatChecksumMismatch(target.Header().OatChecksum, got)
	}
	if summary.Oat, err = d.dumpOat(ctx, f); err != nil {
		return nil, err
	}
	summary.OatFound = true
	return summary, nil
}

func (d *Dumper) openOat(ctx context.Context, location string, begin uint32) (*oat.File, error) {
	data, err := d.locator.Resolve(ctx, location)
	if err != nil {
		return nil, err
	}
	return oat.Open(data, begin)
}

func (d *Dumper) dumpOat(ctx context.Context, f *oat.File) (*model.OatStats, error) {
	var stats *model.OatStats
	_, err := d.timer.TimeFuncWithError("render", func() error {
		var rerr error
		stats, rerr = NewOatDumper(d.locator, d.renderer, d.logger, d.opts.Disassemble).Dump(ctx, f)
		return rerr
	})
	return stats, err
}

func samePath(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	if errA != nil || errB != nil {
		return filepath.Clean(a) == filepath.Clean(b)
	}
	return absA == absB
}

func (d *Dumper) open(path string) (*artifact.Mapping, error) {
	pt := d.timer.Start("map")
	defer pt.Stop()
	m, err := artifact.Open(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArtifact, "open artifact", err)
	}
	d.logger.Debug("mapped %s (%d bytes)", path, m.Len())
	return m, nil
}
