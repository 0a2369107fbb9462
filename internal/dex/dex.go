// Package dex reads the subset of the dex format needed to walk compiled
// classes: string, type, proto and method ids, class definitions, class data
// items and code item sizes.
package dex

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/oatdump/internal/artifact"
	apperrors "github.com/oatdump/pkg/errors"
)

const (
	headerSize     = 0x70
	classDefSize   = 32
	methodIDSize   = 8
	protoIDSize    = 12
	endianConstant = 0x12345678

	// NoIndex marks an absent type or string index.
	NoIndex = 0xffffffff
)

var magicPrefix = []byte("dex\n")

// Header is the fixed dex file header.
type Header struct {
	Magic         [8]byte
	Checksum      uint32
	Signature     [20]byte
	FileSize      uint32
	HeaderSize    uint32
	EndianTag     uint32
	LinkSize      uint32
	LinkOff       uint32
	MapOff        uint32
	StringIDsSize uint32
	StringIDsOff  uint32
	TypeIDsSize   uint32
	TypeIDsOff    uint32
	ProtoIDsSize  uint32
	ProtoIDsOff   uint32
	FieldIDsSize  uint32
	FieldIDsOff   uint32
	MethodIDsSize uint32
	MethodIDsOff  uint32
	ClassDefsSize uint32
	ClassDefsOff  uint32
	DataSize      uint32
	DataOff       uint32
}

// ClassDef is one class_def_item.
type ClassDef struct {
	ClassIdx        uint32
	AccessFlags     uint32
	SuperclassIdx   uint32
	InterfacesOff   uint32
	SourceFileIdx   uint32
	AnnotationsOff  uint32
	ClassDataOff    uint32
	StaticValuesOff uint32
}

// MethodID is one method_id_item.
type MethodID struct {
	ClassIdx uint16
	ProtoIdx uint16
	NameIdx  uint32
}

// File is a parsed view over dex bytes. It does not copy the input.
type File struct {
	location string
	data     []byte
	header   Header
}

// Open parses the header of a dex file located at location.
func Open(data []byte, location string) (*File, error) {
	if len(data) < headerSize {
		return nil, apperrors.InvalidArtifact("dex %s: %d bytes is shorter than the header", location, len(data))
	}
	if !bytes.HasPrefix(data, magicPrefix) || data[7] != 0 {
		return nil, apperrors.InvalidArtifact("dex %s: bad magic %q", location, data[:8])
	}

	f := &File{location: location, data: data}
	if err := binary.Read(bytes.NewReader(data[:headerSize]), binary.LittleEndian, &f.header); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArtifact, "dex "+location+": header", err)
	}
	if f.header.EndianTag != endianConstant {
		return nil, apperrors.InvalidArtifact("dex %s: unsupported endian tag %#x", location, f.header.EndianTag)
	}
	return f, nil
}

// Location returns the location the file was opened from.
func (f *File) Location() string { return f.location }

// Header returns the decoded header.
func (f *File) Header() Header { return f.header }

// Version returns the three-digit format version from the magic.
func (f *File) Version() string { return string(f.header.Magic[4:7]) }

// NumClassDefs returns the number of class definitions.
func (f *File) NumClassDefs() int { return int(f.header.ClassDefsSize) }

// ClassDef returns the class definition at index i.
func (f *File) ClassDef(i int) (ClassDef, error) {
	var cd ClassDef
	if i < 0 || i >= f.NumClassDefs() {
		return cd, fmt.Errorf("class def %d out of range [0,%d)", i, f.NumClassDefs())
	}
	c, err := artifact.NewCursorAt(f.data, int(f.header.ClassDefsOff)+i*classDefSize)
	if err != nil {
		return cd, err
	}
	fields := []*uint32{
		&cd.ClassIdx, &cd.AccessFlags, &cd.SuperclassIdx, &cd.InterfacesOff,
		&cd.SourceFileIdx, &cd.AnnotationsOff, &cd.ClassDataOff, &cd.StaticValuesOff,
	}
	for _, p := range fields {
		if *p, err = c.Uint32(); err != nil {
			return cd, err
		}
	}
	return cd, nil
}

// StringByIdx returns the string with index idx.
func (f *File) StringByIdx(idx uint32) (string, error) {
	if idx >= f.header.StringIDsSize {
		return "", fmt.Errorf("string index %d out of range", idx)
	}
	dataOff, err := artifact.Uint32At(f.data, int(f.header.StringIDsOff)+int(idx)*4)
	if err != nil {
		return "", err
	}
	c, err := artifact.NewCursorAt(f.data, int(dataOff))
	if err != nil {
		return "", err
	}
	utf16Len, err := c.ULEB128()
	if err != nil {
		return "", err
	}
	end := bytes.IndexByte(f.data[c.Pos():], 0)
	if end < 0 {
		return "", fmt.Errorf("string %d is not terminated", idx)
	}
	return decodeMUTF8(f.data[c.Pos():c.Pos()+end], int(utf16Len))
}

// TypeDescriptor returns the descriptor of type idx, e.g. "Ljava/lang/Object;".
func (f *File) TypeDescriptor(idx uint32) (string, error) {
	if idx >= f.header.TypeIDsSize {
		return "", fmt.Errorf("type index %d out of range", idx)
	}
	strIdx, err := artifact.Uint32At(f.data, int(f.header.TypeIDsOff)+int(idx)*4)
	if err != nil {
		return "", err
	}
	return f.StringByIdx(strIdx)
}

// MethodID returns the method id at idx.
func (f *File) MethodID(idx uint32) (MethodID, error) {
	var m MethodID
	if idx >= f.header.MethodIDsSize {
		return m, fmt.Errorf("method index %d out of range", idx)
	}
	c, err := artifact.NewCursorAt(f.data, int(f.header.MethodIDsOff)+int(idx)*methodIDSize)
	if err != nil {
		return m, err
	}
	if m.ClassIdx, err = c.Uint16(); err != nil {
		return m, err
	}
	if m.ProtoIdx, err = c.Uint16(); err != nil {
		return m, err
	}
	m.NameIdx, err = c.Uint32()
	return m, err
}

// MethodName returns the simple name of method idx.
func (f *File) MethodName(idx uint32) (string, error) {
	m, err := f.MethodID(idx)
	if err != nil {
		return "", err
	}
	return f.StringByIdx(m.NameIdx)
}

// MethodSignature returns the descriptor signature of method idx, e.g. "(IJ)V".
func (f *File) MethodSignature(idx uint32) (string, error) {
	m, err := f.MethodID(idx)
	if err != nil {
		return "", err
	}
	if uint32(m.ProtoIdx) >= f.header.ProtoIDsSize {
		return "", fmt.Errorf("proto index %d out of range", m.ProtoIdx)
	}
	c, err := artifact.NewCursorAt(f.data, int(f.header.ProtoIDsOff)+int(m.ProtoIdx)*protoIDSize)
	if err != nil {
		return "", err
	}
	if _, err := c.Uint32(); err != nil { // shorty
		return "", err
	}
	returnType, err := c.Uint32()
	if err != nil {
		return "", err
	}
	paramsOff, err := c.Uint32()
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteByte('(')
	if paramsOff != 0 {
		pc, err := artifact.NewCursorAt(f.data, int(paramsOff))
		if err != nil {
			return "", err
		}
		n, err := pc.Uint32()
		if err != nil {
			return "", err
		}
		for i := uint32(0); i < n; i++ {
			typeIdx, err := pc.Uint16()
			if err != nil {
				return "", err
			}
			desc, err := f.TypeDescriptor(uint32(typeIdx))
			if err != nil {
				return "", err
			}
			sb.WriteString(desc)
		}
	}
	sb.WriteByte(')')
	ret, err := f.TypeDescriptor(returnType)
	if err != nil {
		return "", err
	}
	sb.WriteString(ret)
	return sb.String(), nil
}

// InsnsSizeInCodeUnits returns the instruction count of the code item at off,
// in 16-bit code units. A zero offset has no code.
func (f *File) InsnsSizeInCodeUnits(codeOff uint32) (uint32, error) {
	if codeOff == 0 {
		return 0, nil
	}
	return artifact.Uint32At(f.data, int(codeOff)+12)
}

// ClassData returns an iterator over the class data of cd, or nil for a
// marker class without members.
func (f *File) ClassData(cd ClassDef) (*ClassDataIterator, error) {
	if cd.ClassDataOff == 0 {
		return nil, nil
	}
	return NewClassDataIterator(f.data, int(cd.ClassDataOff))
}
