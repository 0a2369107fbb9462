package testutil

import "hash/adler32"

const oatHeaderSize = 24

// Instruction set values stored in the oat header.
const (
	ISANone   = 0
	ISAArm    = 1
	ISAThumb2 = 2
	ISAX86    = 3
	ISAX86_64 = 4
	ISAArm64  = 5
)

// OatMethod describes the compiled form of one method. Nil slices are
// written as a zero offset.
type OatMethod struct {
	Code          []byte
	FrameSize     uint32
	CoreSpillMask uint32
	FpSpillMask   uint32
	MappingTable  []byte
	VmapTable     []byte
	GCMap         []byte
	InvokeStub    []byte
}

// OatClass holds one entry per direct and virtual method, in that order.
type OatClass struct {
	Status  int32
	Methods []OatMethod
}

// OatDexFile is one dex file record.
type OatDexFile struct {
	Location string
	Checksum uint32
	Classes  []OatClass
}

// OatSpec describes a whole oat file.
type OatSpec struct {
	InstructionSet uint32
	DexFiles       []OatDexFile
}

// BuildOat encodes spec. Side tables are length prefixed and code blobs are
// preceded by their size. The checksum covers everything after the header.
func BuildOat(spec OatSpec) []byte {
	w := &buffer{}
	w.raw([]byte("oat\n007\x00"))
	w.u32(0) // checksum
	w.u32(spec.InstructionSet)
	w.u32(uint32(len(spec.DexFiles)))
	w.u32(0) // executable offset

	type methodSlot struct {
		pos int
		m   OatMethod
	}
	var classSlots [][]int
	for _, d := range spec.DexFiles {
		w.u32(uint32(len(d.Location)))
		w.raw([]byte(d.Location))
		w.u32(d.Checksum)
		w.u32(uint32(len(d.Classes)))
		slots := make([]int, len(d.Classes))
		for i := range d.Classes {
			slots[i] = w.len()
			w.u32(0)
		}
		classSlots = append(classSlots, slots)
	}

	var methods []methodSlot
	for di, d := range spec.DexFiles {
		for ci, c := range d.Classes {
			w.align(4)
			w.put32(classSlots[di][ci], uint32(w.len()))
			w.u32(uint32(c.Status))
			for _, m := range c.Methods {
				methods = append(methods, methodSlot{pos: w.len(), m: m})
				for k := 0; k < 8; k++ {
					w.u32(0)
				}
			}
		}
	}

	table := func(p []byte) uint32 {
		if p == nil {
			return 0
		}
		w.align(4)
		off := uint32(w.len())
		w.u32(uint32(len(p)))
		w.raw(p)
		return off
	}
	for _, s := range methods {
		w.put32(s.pos+4, s.m.FrameSize)
		w.put32(s.pos+8, s.m.CoreSpillMask)
		w.put32(s.pos+12, s.m.FpSpillMask)
		w.put32(s.pos+16, table(s.m.MappingTable))
		w.put32(s.pos+20, table(s.m.VmapTable))
		w.put32(s.pos+24, table(s.m.GCMap))
	}

	w.align(16)
	w.put32(20, uint32(w.len()))
	blob := func(p []byte) uint32 {
		if p == nil {
			return 0
		}
		w.align(16)
		w.u32(uint32(len(p)))
		off := uint32(w.len())
		w.raw(p)
		return off
	}
	for _, s := range methods {
		w.put32(s.pos, blob(s.m.Code))
		w.put32(s.pos+28, blob(s.m.InvokeStub))
	}
	w.align(4)

	w.put32(8, adler32.Checksum(w.b[oatHeaderSize:]))
	return w.b
}

// OatChecksumOf returns the checksum stored in an encoded oat file.
func OatChecksumOf(data []byte) uint32 { return le.Uint32(data[8:]) }
