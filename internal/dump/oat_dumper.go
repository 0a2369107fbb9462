package dump

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/oatdump/internal/dex"
	"github.com/oatdump/internal/oat"
	"github.com/oatdump/pkg/model"
	"github.com/oatdump/pkg/telemetry"
	"github.com/oatdump/pkg/utils"
)

// Locator finds companion artifacts by the location stored in another
// artifact. Translate applies the host prefix; Resolve translates and loads,
// returning an error with code NOT_FOUND when nothing is there.
type Locator interface {
	Translate(location string) string
	Resolve(ctx context.Context, location string) ([]byte, error)
}

// Prefetcher is implemented by locators that can load several artifacts
// ahead of use.
type Prefetcher interface {
	Prefetch(ctx context.Context, locations []string) error
}

// OatDumper renders one oat file and totals its methods.
type OatDumper struct {
	locator     Locator
	renderer    Renderer
	logger      utils.Logger
	disassemble bool
}

// NewOatDumper creates an oat dumper.
func NewOatDumper(locator Locator, renderer Renderer, logger utils.Logger, disassemble bool) *OatDumper {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &OatDumper{locator: locator, renderer: renderer, logger: logger, disassemble: disassemble}
}

// Dump renders the header and every dex file of f. A dex file that cannot be
// located, read or decoded is rendered as NOT FOUND and skipped.
func (d *OatDumper) Dump(ctx context.Context, f *oat.File) (*model.OatStats, error) {
	h := f.Header()
	d.renderer.OatHeader(h, f.Begin(), f.End())

	stats := NewStats()
	out := &model.OatStats{DexFiles: len(f.DexFiles())}
	walker := NewClassWalker(h.InstructionSet, d.disassemble)
	d.prefetch(ctx, f)

	for _, entry := range f.DexFiles() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		d.renderer.OatDexFile(entry.Location, d.locator.Translate(entry.Location), entry.LocationChecksum)

		dexFile, err := d.openDex(ctx, entry.Location)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return nil, cerr
			}
			d.logger.Warn("dex file %s unavailable: %v", entry.Location, err)
			d.renderer.NotFound()
			out.MissingDexFiles++
			continue
		}

		walkCtx, span := telemetry.StartSpan(ctx, "oatdump.walk", attribute.String("dex.location", entry.Location))
		err = walker.Walk(walkCtx, dexFile, entry, func(ce *ClassEntry) error {
			for i := range ce.Methods {
				stats.VisitMethod(ce.Methods[i].Record())
			}
			out.Classes++
			d.renderer.Class(ce)
			return nil
		})
		telemetry.EndSpan(span, err)
		if err != nil {
			return nil, err
		}
		d.logger.Debug("walked %d classes of %s", dexFile.NumClassDefs(), entry.Location)
	}

	out.Methods = stats.MethodTotals()
	d.renderer.OatStats(*out)
	return out, d.renderer.Err()
}

func (d *OatDumper) openDex(ctx context.Context, location string) (*dex.File, error) {
	data, err := d.locator.Resolve(ctx, location)
	if err != nil {
		return nil, err
	}
	return dex.OpenLocation(data, location)
}

// prefetch warms the locator for every dex file; failures resurface when
// each file is resolved in order.
func (d *OatDumper) prefetch(ctx context.Context, f *oat.File) {
	p, ok := d.locator.(Prefetcher)
	if !ok || len(f.DexFiles()) < 2 {
		return
	}
	locations := make([]string, 0, len(f.DexFiles()))
	for _, entry := range f.DexFiles() {
		locations = append(locations, entry.Location)
	}
	if err := p.Prefetch(ctx, locations); err != nil {
		d.logger.Warn("prefetching %d dex files: %v", len(locations), err)
	}
}
