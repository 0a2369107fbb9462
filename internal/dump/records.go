// Package dump walks decoded oat and image artifacts, classifies every entity
// it meets, accumulates reconciled size statistics and feeds a Renderer.
package dump

import (
	"github.com/oatdump/internal/disasm"
	"github.com/oatdump/internal/image"
	"github.com/oatdump/internal/oat"
	"github.com/oatdump/pkg/model"
)

// ClassEntry is one compiled class with its methods, direct methods first.
type ClassEntry struct {
	Index      int
	TypeIdx    uint32
	Descriptor string
	Status     oat.ClassStatus
	Methods    []MethodEntry
}

// MethodEntry is one compiled method. Pointers are absolute addresses and
// zero when the corresponding offset is zero.
type MethodEntry struct {
	Ordinal     uint32
	MethodIdx   uint32
	Name        string
	Signature   string
	AccessFlags uint32
	Kind        MethodKind

	Code             uint32
	CodeOffset       uint32
	CodeSize         uint32
	FrameSizeInBytes uint32
	CoreSpillMask    uint32
	FpSpillMask      uint32

	MappingTable       uint32
	MappingTableOffset uint32
	MappingTableLen    uint32
	VmapTable          uint32
	VmapTableOffset    uint32
	GcMap              uint32
	GcMapOffset        uint32
	GcMapLen           uint32
	InvokeStub         uint32
	InvokeStubOffset   uint32
	InvokeStubSize     uint32

	DexInstructionBytes int64
	Disassembly         []disasm.Inst
}

// Record returns the statistics view of m.
func (m *MethodEntry) Record() MethodRecord {
	return MethodRecord{
		Kind:                m.Kind,
		CodeBytes:           int64(m.CodeSize),
		InvokeStubBytes:     int64(m.InvokeStubSize),
		RegisterMapBytes:    int64(m.GcMapLen),
		MappingTableBytes:   int64(m.MappingTableLen),
		DexInstructionBytes: m.DexInstructionBytes,
	}
}

// MethodRecord carries the per-method sizes the statistics are built from,
// plus the details an image method summary prints.
type MethodRecord struct {
	Kind         MethodKind
	Pretty       string
	Code         uint32
	InvokeStub   uint32
	NativeMethod uint32

	CodeBytes           int64
	InvokeStubBytes     int64
	RegisterMapBytes    int64
	MappingTableBytes   int64
	DexInstructionBytes int64
}

// ObjectRecord describes one visited heap object. Only the fields of its
// category are set.
type ObjectRecord struct {
	Addr       uint32
	Size       int64
	Category   Category
	ClassAddr  uint32
	Descriptor string

	ClassDescriptor string
	ClassStatus     oat.ClassStatus
	Method          *MethodRecord
	Pretty          string
	ArrayLength     uint32
	Text            string
}

// RootEntry is one image root and, for object arrays, its elements.
type RootEntry struct {
	Root     image.Root
	Addr     uint32
	Elements []uint32
	IsArray  bool
}

// Renderer receives decoded structures in report order. Implementations
// latch the first write error and return it from Err.
type Renderer interface {
	OatHeader(h *oat.Header, begin, end uint32)
	OatDexFile(location, translated string, checksum uint32)
	NotFound()
	Class(c *ClassEntry)
	OatStats(s model.OatStats)

	ImageHeader(h *image.Header)
	Roots(roots []RootEntry)
	BeginObjects()
	Object(rec *ObjectRecord)
	ImageStats(s *model.ImageStats)
	OatLocation(location, translated string)
	OatChecksumMismatch(expected, actual uint32)

	Err() error
}
