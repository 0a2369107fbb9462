// Package oat decodes compiled-code artifacts: the header, the per-dex class
// tables and the per-method entries with their side tables and code blobs.
package oat

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/oatdump/internal/artifact"
	apperrors "github.com/oatdump/pkg/errors"
)

// HeaderSize is the encoded size of Header.
const HeaderSize = 24

const methodEntrySize = 32

var magic = []byte("oat\n")

// InstructionSet identifies the target of the compiled code.
type InstructionSet uint32

const (
	ISANone InstructionSet = iota
	ISAArm
	ISAThumb2
	ISAX86
	ISAX86_64
	ISAArm64
)

var isaNames = [...]string{"NONE", "ARM", "THUMB2", "X86", "X86_64", "ARM64"}

func (i InstructionSet) String() string {
	if int(i) < len(isaNames) {
		return isaNames[i]
	}
	return fmt.Sprintf("InstructionSet(%d)", uint32(i))
}

// Header is the fixed oat file header.
type Header struct {
	Magic            [4]byte
	Version          [4]byte
	Checksum         uint32
	InstructionSet   InstructionSet
	DexFileCount     uint32
	ExecutableOffset uint32
}

// MagicString renders the magic and version the way they appear on disk.
func (h *Header) MagicString() string {
	return string(h.Magic[:]) + string(bytes.TrimRight(h.Version[:], "\x00"))
}

// ReadHeader validates the magic and decodes the header. No other field is checked.
func ReadHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, apperrors.InvalidArtifact("oat file is %d bytes, shorter than its header", len(data))
	}
	if !bytes.Equal(data[:4], magic) {
		return nil, apperrors.InvalidArtifact("invalid oat magic %q", data[:4])
	}
	var h Header
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArtifact, "oat header", err)
	}
	return &h, nil
}

// File is a decoded oat file. Pointers are begin plus an offset, where begin
// is where the file is mapped in the runtime (zero for a standalone file).
type File struct {
	data     []byte
	begin    uint32
	header   *Header
	dexFiles []*DexFileEntry
}

// Open decodes the header and dex file records of data.
func Open(data []byte, begin uint32) (*File, error) {
	h, err := ReadHeader(data)
	if err != nil {
		return nil, err
	}
	f := &File{data: data, begin: begin, header: h}

	c, _ := artifact.NewCursorAt(data, HeaderSize)
	for i := uint32(0); i < h.DexFileCount; i++ {
		d, err := f.readDexFile(c)
		if err != nil {
			return nil, apperrors.InvalidArtifact("oat dex file %d: %v", i, err)
		}
		f.dexFiles = append(f.dexFiles, d)
	}
	return f, nil
}

func (f *File) readDexFile(c *artifact.Cursor) (*DexFileEntry, error) {
	n, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	loc, err := c.Bytes(int(n))
	if err != nil {
		return nil, err
	}
	d := &DexFileEntry{file: f, Location: string(loc)}
	if d.LocationChecksum, err = c.Uint32(); err != nil {
		return nil, err
	}
	count, err := c.Uint32()
	if err != nil {
		return nil, err
	}
	if int64(count)*4 > int64(c.Remaining()) {
		return nil, fmt.Errorf("%d class offsets exceed the file", count)
	}
	table, err := c.Bytes(int(count) * 4)
	if err != nil {
		return nil, err
	}
	d.classOffsets = make([]uint32, count)
	for i := range d.classOffsets {
		d.classOffsets[i] = binary.LittleEndian.Uint32(table[4*i:])
	}
	return d, nil
}

func (f *File) Header() *Header { return f.header }

func (f *File) DexFiles() []*DexFileEntry { return f.dexFiles }

// Begin returns the address the file starts at.
func (f *File) Begin() uint32 { return f.begin }

// End returns the address one past the last byte.
func (f *File) End() uint32 { return f.begin + uint32(len(f.data)) }

// Size returns the file length in bytes.
func (f *File) Size() int { return len(f.data) }

// pointer maps an offset to an address; offset zero stays zero.
func (f *File) pointer(off uint32) uint32 {
	if off == 0 {
		return 0
	}
	return f.begin + off
}

// blob returns the bytes at off whose length is the u32 just before off.
func (f *File) blob(off uint32) ([]byte, error) {
	if off == 0 {
		return nil, nil
	}
	if off < 4 {
		return nil, apperrors.InvalidArtifact("code offset %#x has no size prefix", off)
	}
	size, err := artifact.Uint32At(f.data, int(off)-4)
	if err != nil {
		return nil, apperrors.InvalidArtifact("code size at %#x: %v", off-4, err)
	}
	c, err := artifact.NewCursorAt(f.data, int(off))
	if err != nil {
		return nil, apperrors.InvalidArtifact("code at %#x: %v", off, err)
	}
	b, err := c.Bytes(int(size))
	if err != nil {
		return nil, apperrors.InvalidArtifact("code at %#x: %v", off, err)
	}
	return b, nil
}

// table returns the payload of a u32 length-prefixed side table at off.
func (f *File) table(off uint32) ([]byte, error) {
	if off == 0 {
		return nil, nil
	}
	c, err := artifact.NewCursorAt(f.data, int(off))
	if err != nil {
		return nil, apperrors.InvalidArtifact("side table at %#x: %v", off, err)
	}
	n, err := c.Uint32()
	if err != nil {
		return nil, apperrors.InvalidArtifact("side table at %#x: %v", off, err)
	}
	b, err := c.Bytes(int(n))
	if err != nil {
		return nil, apperrors.InvalidArtifact("side table at %#x: %v", off, err)
	}
	return b, nil
}
