// Package image decodes the header of a heap-snapshot artifact.
package image

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/oatdump/internal/artifact"
	apperrors "github.com/oatdump/pkg/errors"
)

// HeaderSize is the encoded size of Header.
const HeaderSize = 28

// ObjectAlignment is the alignment of every object and of the first object
// after the header.
const ObjectAlignment = 8

var magic = []byte("art\n")

// Header is the fixed image header. All addresses are absolute.
type Header struct {
	Magic       [4]byte
	Version     [4]byte
	ImageBegin  uint32
	OatChecksum uint32
	OatBegin    uint32
	OatEnd      uint32
	ImageRoots  uint32
}

// MagicString renders the magic and version the way they appear on disk.
func (h *Header) MagicString() string {
	return string(h.Magic[:]) + string(bytes.TrimRight(h.Version[:], "\x00"))
}

// ObjectsOffset is the file offset of the first object.
func ObjectsOffset() int64 {
	return artifact.RoundUp(HeaderSize, ObjectAlignment)
}

// ReadHeader validates the magic and decodes the header. No other field is checked.
func ReadHeader(data []byte) (*Header, error) {
	if len(data) < HeaderSize {
		return nil, apperrors.InvalidArtifact("image file is %d bytes, shorter than its header", len(data))
	}
	if !bytes.Equal(data[:4], magic) {
		return nil, apperrors.InvalidArtifact("invalid image magic %q", data[:4])
	}
	var h Header
	if err := binary.Read(bytes.NewReader(data[:HeaderSize]), binary.LittleEndian, &h); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInvalidArtifact, "image header", err)
	}
	return &h, nil
}

// Root indexes the image roots object array.
type Root int

const (
	RootJniStubArray Root = iota
	RootAbstractMethodErrorStubArray
	RootInstanceResolutionStubArray
	RootStaticResolutionStubArray
	RootUnknownMethodResolutionStubArray
	RootCalleeSaveMethod
	RootRefsOnlySaveMethod
	RootRefsAndArgsSaveMethod
	RootOatLocation
	RootDexCaches
	RootClassRoots
	NumRoots
)

var rootNames = [NumRoots]string{
	"kJniStubArray",
	"kAbstractMethodErrorStubArray",
	"kInstanceResolutionStubArray",
	"kStaticResolutionStubArray",
	"kUnknownMethodResolutionStubArray",
	"kCalleeSaveMethod",
	"kRefsOnlySaveMethod",
	"kRefsAndArgsSaveMethod",
	"kOatLocation",
	"kDexCaches",
	"kClassRoots",
}

func (r Root) String() string {
	if r >= 0 && r < NumRoots {
		return rootNames[r]
	}
	return fmt.Sprintf("Root(%d)", int(r))
}

// CalleeSaveRoots are the roots holding runtime-internal callee-save methods.
var CalleeSaveRoots = []Root{RootCalleeSaveMethod, RootRefsOnlySaveMethod, RootRefsAndArgsSaveMethod}
