package dump

import (
	"context"
	"strings"

	"github.com/oatdump/internal/dex"
	"github.com/oatdump/internal/heap"
	"github.com/oatdump/internal/image"
	apperrors "github.com/oatdump/pkg/errors"
	"github.com/oatdump/pkg/model"
	"github.com/oatdump/pkg/utils"
)

// ImageDumper renders the objects of one image space and reconciles its
// size accounting.
type ImageDumper struct {
	heap        *heap.Heap
	walker      heap.Walker
	target      *heap.Space
	renderer    Renderer
	logger      utils.Logger
	calleeSaves map[uint32]bool
}

// NewImageDumper creates a dumper for target, which must be one of h's
// spaces. Objects are visited through walker; those outside target are
// skipped.
func NewImageDumper(h *heap.Heap, walker heap.Walker, target *heap.Space, renderer Renderer, logger utils.Logger) *ImageDumper {
	if logger == nil {
		logger = &utils.NullLogger{}
	}
	return &ImageDumper{
		heap:        h,
		walker:      walker,
		target:      target,
		renderer:    renderer,
		logger:      logger,
		calleeSaves: make(map[uint32]bool),
	}
}

// Roots decodes the image roots of the target space.
func (d *ImageDumper) Roots() ([]RootEntry, error) {
	addrs, err := d.heap.ObjectArray(d.target.Header().ImageRoots)
	if err != nil {
		return nil, apperrors.InvalidArtifact("image roots: %v", err)
	}
	if len(addrs) != int(image.NumRoots) {
		return nil, apperrors.InvalidArtifact("image has %d roots, want %d", len(addrs), image.NumRoots)
	}
	roots := make([]RootEntry, len(addrs))
	for i, addr := range addrs {
		roots[i] = RootEntry{Root: image.Root(i), Addr: addr}
		if addr == 0 {
			continue
		}
		isArray, err := d.isObjectArray(addr)
		if err != nil {
			return nil, apperrors.InvalidArtifact("root %s: %v", image.Root(i), err)
		}
		if isArray {
			roots[i].IsArray = true
			if roots[i].Elements, err = d.heap.ObjectArray(addr); err != nil {
				return nil, apperrors.InvalidArtifact("root %s: %v", image.Root(i), err)
			}
		}
	}
	return roots, nil
}

// OatLocation returns the oat location stored in the image roots.
func (d *ImageDumper) OatLocation(roots []RootEntry) (string, error) {
	loc, err := d.heap.DecodeString(roots[image.RootOatLocation].Addr)
	if err != nil {
		return "", apperrors.InvalidArtifact("oat location: %v", err)
	}
	return loc, nil
}

func (d *ImageDumper) isObjectArray(addr uint32) (bool, error) {
	k, err := d.heap.Object(addr).Class()
	if err != nil {
		return false, err
	}
	desc, err := k.Descriptor()
	if err != nil {
		return false, err
	}
	return strings.HasPrefix(desc, "[L") || strings.HasPrefix(desc, "[["), nil
}

// Dump renders the header, roots and objects of the target space, then the
// finalized statistics.
func (d *ImageDumper) Dump(ctx context.Context) (*model.ImageStats, []RootEntry, error) {
	d.renderer.ImageHeader(d.target.Header())
	roots, err := d.Roots()
	if err != nil {
		return nil, nil, err
	}
	d.renderer.Roots(roots)
	for _, r := range image.CalleeSaveRoots {
		if addr := roots[r].Addr; addr != 0 {
			d.calleeSaves[addr] = true
		}
	}

	d.renderer.BeginObjects()
	stats := NewStats()
	err = d.walker.Walk(func(addr uint32) error {
		if !d.target.Contains(addr) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rec, err := d.Record(addr)
		if err != nil {
			return err
		}
		if err := stats.Visit(rec); err != nil {
			return err
		}
		d.renderer.Object(rec)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if err := stats.Finalize(int64(d.target.Size()), image.HeaderSize); err != nil {
		return nil, nil, err
	}
	snap, err := stats.Snapshot()
	if err != nil {
		return nil, nil, err
	}
	d.renderer.ImageStats(snap)
	d.logger.Debug("visited %d objects in %s", snap.ObjectCount, d.target.Name())
	return snap, roots, d.renderer.Err()
}

// Record classifies the object at addr and gathers its details.
func (d *ImageDumper) Record(addr uint32) (*ObjectRecord, error) {
	rec, err := d.record(addr)
	if err != nil {
		return nil, apperrors.Annotate(err, "object at %#x", addr)
	}
	return rec, nil
}

func (d *ImageDumper) record(addr uint32) (*ObjectRecord, error) {
	obj := d.heap.Object(addr)
	k, err := obj.Class()
	if err != nil {
		return nil, apperrors.InvalidArtifact("%v", err)
	}
	desc, err := k.Descriptor()
	if err != nil {
		return nil, apperrors.InvalidArtifact("class descriptor: %v", err)
	}
	flags, err := k.Flags()
	if err != nil {
		return nil, apperrors.InvalidArtifact("class flags: %v", err)
	}
	size, err := obj.SizeOf()
	if err != nil {
		return nil, apperrors.InvalidArtifact("size: %v", err)
	}

	rec := &ObjectRecord{
		Addr:       addr,
		Size:       int64(size),
		ClassAddr:  k.Addr,
		Descriptor: desc,
		Category: Classify(Capabilities{
			Class:  flags.Has(heap.FlagClass),
			Method: flags.Has(heap.FlagMethod),
			Field:  flags.Has(heap.FlagField),
			Array:  flags.Has(heap.FlagArray),
			String: flags.Has(heap.FlagString),
		}),
	}

	switch rec.Category {
	case CategoryClass:
		c := obj.AsClass()
		if rec.ClassDescriptor, err = c.Descriptor(); err != nil {
			return nil, apperrors.InvalidArtifact("descriptor: %v", err)
		}
		if rec.ClassStatus, err = c.Status(); err != nil {
			return nil, apperrors.InvalidArtifact("status: %v", err)
		}
	case CategoryMethod:
		if rec.Method, err = d.methodRecord(addr); err != nil {
			return nil, err
		}
		rec.Pretty = rec.Method.Pretty
	case CategoryField:
		f, err := d.heap.Field(addr)
		if err != nil {
			return nil, apperrors.InvalidArtifact("%v", err)
		}
		if rec.Pretty, err = d.heap.PrettyField(f); err != nil {
			return nil, apperrors.InvalidArtifact("%v", err)
		}
	case CategoryArray:
		if rec.ArrayLength, err = obj.ArrayLength(); err != nil {
			return nil, apperrors.InvalidArtifact("%v", err)
		}
	case CategoryString:
		if rec.Text, err = d.heap.DecodeString(addr); err != nil {
			return nil, apperrors.InvalidArtifact("%v", err)
		}
	}
	return rec, nil
}

func (d *ImageDumper) methodRecord(addr uint32) (*MethodRecord, error) {
	m, err := d.heap.Method(addr)
	if err != nil {
		return nil, apperrors.InvalidArtifact("%v", err)
	}
	pretty, err := d.heap.PrettyMethod(m)
	if err != nil {
		return nil, apperrors.InvalidArtifact("%v", err)
	}
	kind := ClassifyMethod(MethodTraits{
		Native:     m.AccessFlags&dex.AccNative != 0,
		Abstract:   m.AccessFlags&dex.AccAbstract != 0,
		CalleeSave: d.calleeSaves[addr],
	})
	if err := CheckSideTables(pretty, kind, SideTables{
		GcMap:           m.GcMap,
		GcMapLen:        m.GcMapLength,
		MappingTable:    m.MappingTable,
		MappingTableLen: m.MappingTableLen,
	}); err != nil {
		return nil, err
	}

	rec := &MethodRecord{
		Kind:            kind,
		Pretty:          pretty,
		Code:            m.Code,
		InvokeStub:      m.InvokeStub,
		NativeMethod:    m.NativeMethod,
		CodeBytes:       int64(m.CodeSize),
		InvokeStubBytes: int64(m.InvokeStubSize),
	}
	if kind == MethodManaged {
		rec.RegisterMapBytes = int64(m.GcMapLength)
		rec.MappingTableBytes = int64(m.MappingTableLen)
		rec.DexInstructionBytes = int64(m.InsnsUnits) * 2
	}
	return rec, nil
}
