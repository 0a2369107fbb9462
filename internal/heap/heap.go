// Package heap models the live objects of one or more mapped image spaces and
// provides the for-each-live-object traversal the image dumper is driven by.
package heap

import (
	"fmt"

	"github.com/oatdump/internal/artifact"
	"github.com/oatdump/internal/image"
	"github.com/oatdump/pkg/collections"
	apperrors "github.com/oatdump/pkg/errors"
)

// Walker calls fn once for every live object. The order is unspecified.
type Walker interface {
	Walk(fn func(addr uint32) error) error
}

// Space is one image file mapped at its header's image begin address.
type Space struct {
	name   string
	data   []byte
	header *image.Header
	live   *collections.LiveBitmap
}

// NewImageSpace wraps the bytes of an image file. Objects are not located
// until the space is added to a Heap.
func NewImageSpace(name string, data []byte) (*Space, error) {
	h, err := image.ReadHeader(data)
	if err != nil {
		return nil, err
	}
	if uint64(h.ImageBegin)+uint64(len(data)) > 1<<32 {
		return nil, apperrors.InvalidArtifact("image %s does not fit at %#x", name, h.ImageBegin)
	}
	return &Space{
		name:   name,
		data:   data,
		header: h,
		live:   collections.NewLiveBitmap(h.ImageBegin, uint32(len(data)), image.ObjectAlignment),
	}, nil
}

func (s *Space) Name() string { return s.name }

func (s *Space) Header() *image.Header { return s.header }

// Begin returns the address of the first byte of the file.
func (s *Space) Begin() uint32 { return s.header.ImageBegin }

// End returns the address one past the last byte of the file.
func (s *Space) End() uint32 { return s.header.ImageBegin + uint32(len(s.data)) }

// Size returns the file length in bytes.
func (s *Space) Size() int { return len(s.data) }

// Contains reports whether addr lies inside the space.
func (s *Space) Contains(addr uint32) bool {
	return addr >= s.Begin() && addr < s.End()
}

// LiveObjects returns the number of objects marked live.
func (s *Space) LiveObjects() int { return s.live.Count() }

func (s *Space) walk(fn func(addr uint32) error) error {
	return s.live.Visit(fn)
}

// Heap is an ordered set of spaces. Reads resolve across all of them, so an
// application image may reference classes in the boot image.
type Heap struct {
	spaces []*Space
}

// New builds a heap over spaces and marks the live objects of each by a
// sequential scan of its object region. Spaces are scanned in order, so the
// boot space must come before spaces that depend on it.
func New(spaces ...*Space) (*Heap, error) {
	h := &Heap{}
	for _, s := range spaces {
		for _, other := range h.spaces {
			if s.Begin() < other.End() && other.Begin() < s.End() {
				return nil, apperrors.InvalidArtifact("space %s overlaps %s", s.name, other.name)
			}
		}
		h.spaces = append(h.spaces, s)
		if err := h.scan(s); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Heap) scan(s *Space) error {
	off := image.ObjectsOffset()
	for off < int64(len(s.data)) {
		addr := s.Begin() + uint32(off)
		size, err := h.Object(addr).SizeOf()
		if err != nil {
			return apperrors.InvalidArtifact("space %s: object at %#x: %v", s.name, addr, err)
		}
		if size < objectHeaderSize {
			return apperrors.InvalidArtifact("space %s: object at %#x has size %d", s.name, addr, size)
		}
		next := off + artifact.RoundUp(int64(size), image.ObjectAlignment)
		if next > int64(len(s.data)) {
			return apperrors.InvalidArtifact("space %s: object at %#x overruns the file", s.name, addr)
		}
		s.live.Mark(addr)
		off = next
	}
	return nil
}

// Spaces returns the spaces in the order they were added.
func (h *Heap) Spaces() []*Space { return h.spaces }

// SpaceOf returns the space holding addr, or nil.
func (h *Heap) SpaceOf(addr uint32) *Space {
	for _, s := range h.spaces {
		if s.Contains(addr) {
			return s
		}
	}
	return nil
}

// Walk visits the live objects of every space, each space in address order.
func (h *Heap) Walk(fn func(addr uint32) error) error {
	for _, s := range h.spaces {
		if err := s.walk(fn); err != nil {
			return err
		}
	}
	return nil
}

func (h *Heap) slice(addr uint32, n int) ([]byte, error) {
	s := h.SpaceOf(addr)
	if s == nil {
		return nil, fmt.Errorf("address %#x is outside every space", addr)
	}
	c, err := artifact.NewCursorAt(s.data, int(addr-s.Begin()))
	if err != nil {
		return nil, err
	}
	return c.Bytes(n)
}

func (h *Heap) u32(addr uint32) (uint32, error) {
	s := h.SpaceOf(addr)
	if s == nil {
		return 0, fmt.Errorf("address %#x is outside every space", addr)
	}
	return artifact.Uint32At(s.data, int(addr-s.Begin()))
}
