package oat

import (
	"encoding/binary"
	"fmt"

	"github.com/oatdump/internal/artifact"
	apperrors "github.com/oatdump/pkg/errors"
)

// ClassStatus is the initialization state recorded for a compiled class.
type ClassStatus int32

const (
	StatusError ClassStatus = iota - 1
	StatusNotReady
	StatusIdx
	StatusLoaded
	StatusResolved
	StatusVerifying
	StatusVerified
	StatusInitializing
	StatusInitialized
)

var statusNames = map[ClassStatus]string{
	StatusError:        "Error",
	StatusNotReady:     "NotReady",
	StatusIdx:          "Idx",
	StatusLoaded:       "Loaded",
	StatusResolved:     "Resolved",
	StatusVerifying:    "Verifying",
	StatusVerified:     "Verified",
	StatusInitializing: "Initializing",
	StatusInitialized:  "Initialized",
}

func (s ClassStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("ClassStatus(%d)", int32(s))
}

// DexFileEntry is one source unit compiled into the oat file.
type DexFileEntry struct {
	file             *File
	Location         string
	LocationChecksum uint32
	classOffsets     []uint32
}

// NumClasses returns the number of class entries, which matches the dex
// file's class definition count.
func (d *DexFileEntry) NumClasses() int { return len(d.classOffsets) }

// Class decodes class i. The oat format does not store the method count;
// it is the direct plus virtual method count from the dex class data.
func (d *DexFileEntry) Class(i int, numMethods int) (*Class, error) {
	if i < 0 || i >= len(d.classOffsets) {
		return nil, fmt.Errorf("class %d out of range [0,%d)", i, len(d.classOffsets))
	}
	off := d.classOffsets[i]
	c, err := artifact.NewCursorAt(d.file.data, int(off))
	if err != nil {
		return nil, apperrors.InvalidArtifact("oat class %d at %#x: %v", i, off, err)
	}
	status, err := c.Int32()
	if err != nil {
		return nil, apperrors.InvalidArtifact("oat class %d status: %v", i, err)
	}
	if int64(numMethods)*methodEntrySize > int64(c.Remaining()) {
		return nil, apperrors.InvalidArtifact("oat class %d: %d methods exceed the file", i, numMethods)
	}

	table, err := c.Bytes(numMethods * methodEntrySize)
	if err != nil {
		return nil, apperrors.InvalidArtifact("oat class %d methods: %v", i, err)
	}
	cls := &Class{Status: ClassStatus(status), methods: make([]Method, numMethods)}
	for m := range cls.methods {
		entry := table[m*methodEntrySize:]
		fields := []*uint32{
			&cls.methods[m].CodeOffset,
			&cls.methods[m].FrameSizeInBytes,
			&cls.methods[m].CoreSpillMask,
			&cls.methods[m].FpSpillMask,
			&cls.methods[m].MappingTableOffset,
			&cls.methods[m].VmapTableOffset,
			&cls.methods[m].GcMapOffset,
			&cls.methods[m].InvokeStubOffset,
		}
		for k, p := range fields {
			*p = binary.LittleEndian.Uint32(entry[4*k:])
		}
		cls.methods[m].file = d.file
	}
	return cls, nil
}

// Class is the compiled form of one class definition.
type Class struct {
	Status  ClassStatus
	methods []Method
}

func (c *Class) NumMethods() int { return len(c.methods) }

// Method returns the entry for the method at ordinal i (direct methods first).
func (c *Class) Method(i int) (Method, error) {
	if i < 0 || i >= len(c.methods) {
		return Method{}, apperrors.ConsistencyFault("oat method %d out of range [0,%d)", i, len(c.methods))
	}
	return c.methods[i], nil
}

// Method is one compiled method entry.
type Method struct {
	file *File

	CodeOffset         uint32
	FrameSizeInBytes   uint32
	CoreSpillMask      uint32
	FpSpillMask        uint32
	MappingTableOffset uint32
	VmapTableOffset    uint32
	GcMapOffset        uint32
	InvokeStubOffset   uint32
}

func (m Method) Code() uint32         { return m.file.pointer(m.CodeOffset) }
func (m Method) MappingTable() uint32 { return m.file.pointer(m.MappingTableOffset) }
func (m Method) VmapTable() uint32    { return m.file.pointer(m.VmapTableOffset) }
func (m Method) GcMap() uint32        { return m.file.pointer(m.GcMapOffset) }
func (m Method) InvokeStub() uint32   { return m.file.pointer(m.InvokeStubOffset) }

// CodeBytes returns the compiled code, or nil when the method has none.
func (m Method) CodeBytes() ([]byte, error) { return m.file.blob(m.CodeOffset) }

// InvokeStubBytes returns the invocation stub, or nil when absent.
func (m Method) InvokeStubBytes() ([]byte, error) { return m.file.blob(m.InvokeStubOffset) }

// MappingTableBytes returns the mapping table payload, or nil when absent.
func (m Method) MappingTableBytes() ([]byte, error) { return m.file.table(m.MappingTableOffset) }

// VmapTableBytes returns the vmap table payload, or nil when absent.
func (m Method) VmapTableBytes() ([]byte, error) { return m.file.table(m.VmapTableOffset) }

// GcMapBytes returns the GC map payload, or nil when absent.
func (m Method) GcMapBytes() ([]byte, error) { return m.file.table(m.GcMapOffset) }
