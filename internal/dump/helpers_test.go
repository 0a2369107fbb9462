package dump

import (
	"context"
	"fmt"

	"github.com/oatdump/internal/dex"
	"github.com/oatdump/internal/image"
	"github.com/oatdump/internal/oat"
	"github.com/oatdump/internal/testutil"
	apperrors "github.com/oatdump/pkg/errors"
	"github.com/oatdump/pkg/model"
)

const (
	coreLocation = "/system/framework/core.jar"
	bootOat      = "/system/framework/boot.oat"
	bootBegin    = 0x70000000
	appBegin     = 0x72000000
	oatBegin     = 0x60000000
)

// mapLocator serves artifacts from memory under prefix+location.
// An entry in errs is returned instead of looking the path up.
type mapLocator struct {
	prefix    string
	artifacts map[string][]byte
	errs      map[string]error
	resolved  []string
}

func (l *mapLocator) Translate(location string) string { return l.prefix + location }

func (l *mapLocator) Resolve(_ context.Context, location string) ([]byte, error) {
	path := l.Translate(location)
	l.resolved = append(l.resolved, path)
	if err, ok := l.errs[path]; ok {
		return nil, err
	}
	data, ok := l.artifacts[path]
	if !ok {
		return nil, apperrors.Newf(apperrors.CodeNotFound, "%s not found", path)
	}
	return data, nil
}

// recordingRenderer keeps everything it is given.
type recordingRenderer struct {
	events    []string
	classes   []*ClassEntry
	objects   []*ObjectRecord
	roots     []RootEntry
	oatStats  *model.OatStats
	imgStats  *model.ImageStats
	mismatch  [2]uint32
	notFounds int
	err       error
}

func (r *recordingRenderer) OatHeader(h *oat.Header, begin, end uint32) {
	r.events = append(r.events, fmt.Sprintf("oat-header %s %#x", h.InstructionSet, begin))
}

func (r *recordingRenderer) OatDexFile(location, translated string, checksum uint32) {
	r.events = append(r.events, "dex "+translated)
}

func (r *recordingRenderer) NotFound() {
	r.notFounds++
	r.events = append(r.events, "not-found")
}

func (r *recordingRenderer) Class(c *ClassEntry) { r.classes = append(r.classes, c) }

func (r *recordingRenderer) OatStats(s model.OatStats) {
	r.oatStats = &s
	r.events = append(r.events, "oat-stats")
}

func (r *recordingRenderer) ImageHeader(h *image.Header) {
	r.events = append(r.events, fmt.Sprintf("image-header %#x", h.ImageBegin))
}

func (r *recordingRenderer) Roots(roots []RootEntry) { r.roots = roots }

func (r *recordingRenderer) BeginObjects() { r.events = append(r.events, "objects") }

func (r *recordingRenderer) Object(rec *ObjectRecord) { r.objects = append(r.objects, rec) }

func (r *recordingRenderer) ImageStats(s *model.ImageStats) {
	r.imgStats = s
	r.events = append(r.events, "image-stats")
}

func (r *recordingRenderer) OatLocation(location, translated string) {
	r.events = append(r.events, "oat-location "+translated)
}

func (r *recordingRenderer) OatChecksumMismatch(expected, actual uint32) {
	r.mismatch = [2]uint32{expected, actual}
}

func (r *recordingRenderer) Err() error { return r.err }

func (r *recordingRenderer) objectsOf(c Category) []*ObjectRecord {
	var out []*ObjectRecord
	for _, o := range r.objects {
		if o.Category == c {
			out = append(out, o)
		}
	}
	return out
}

// sampleDex has one class with a native, a constructor and a virtual method,
// plus a marker class without class data.
func sampleDex() []byte {
	return testutil.BuildDex(
		testutil.DexClass{
			Descriptor:     "Lcom/example/Foo;",
			StaticFields:   []testutil.DexField{{Name: "COUNT", Type: "I", AccessFlags: dex.AccStatic}},
			InstanceFields: []testutil.DexField{{Name: "name", Type: "Ljava/lang/String;"}},
			DirectMethods: []testutil.DexMethod{
				{Name: "nativeInit", Return: "V", AccessFlags: dex.AccNative | dex.AccStatic},
				{Name: "<init>", Return: "V", AccessFlags: dex.AccConstructor, InsnsUnits: 4},
			},
			VirtualMethods: []testutil.DexMethod{
				{Name: "wait", Return: "V", Params: []string{"J", "I"}, InsnsUnits: 10},
			},
		},
		testutil.DexClass{Descriptor: "Lcom/example/Marker;", AccessFlags: dex.AccInterface | dex.AccAbstract, NoData: true},
	)
}

func sampleOatMethods() []testutil.OatMethod {
	return []testutil.OatMethod{
		{Code: make([]byte, 8), InvokeStub: make([]byte, 4)},
		{
			Code:          make([]byte, 16),
			FrameSize:     32,
			CoreSpillMask: 0x4000,
			MappingTable:  make([]byte, 8),
			VmapTable:     []byte{1, 2},
			GCMap:         make([]byte, 4),
			InvokeStub:    make([]byte, 12),
		},
		{
			Code:         make([]byte, 32),
			FrameSize:    48,
			MappingTable: make([]byte, 8),
			GCMap:        make([]byte, 4),
		},
	}
}

func sampleOat(methods []testutil.OatMethod) []byte {
	return testutil.BuildOat(testutil.OatSpec{
		InstructionSet: testutil.ISAX86,
		DexFiles: []testutil.OatDexFile{{
			Location: coreLocation,
			Checksum: 0x1234abcd,
			Classes: []testutil.OatClass{
				{Status: int32(oat.StatusInitialized), Methods: methods},
				{Status: int32(oat.StatusVerified)},
			},
		}},
	})
}
