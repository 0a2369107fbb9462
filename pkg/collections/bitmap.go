// Package collections provides compact data structures used by the heap walker.
package collections

import (
	"fmt"
	"math/bits"
)

// LiveBitmap marks object addresses within [begin, begin+size). Each bit
// covers one alignment granule, so only aligned addresses can be marked.
type LiveBitmap struct {
	begin     uint32
	size      uint32
	alignment uint32
	words     []uint64
}

// NewLiveBitmap creates a bitmap for a region. alignment must be a power of two.
func NewLiveBitmap(begin, size, alignment uint32) *LiveBitmap {
	if alignment == 0 || alignment&(alignment-1) != 0 {
		panic(fmt.Sprintf("collections: alignment %d is not a power of two", alignment))
	}
	granules := (uint64(size) + uint64(alignment) - 1) / uint64(alignment)
	return &LiveBitmap{
		begin:     begin,
		size:      size,
		alignment: alignment,
		words:     make([]uint64, (granules+63)/64),
	}
}

func (b *LiveBitmap) index(addr uint32) (int, bool) {
	if addr < b.begin || addr-b.begin >= b.size {
		return 0, false
	}
	off := addr - b.begin
	if off&(b.alignment-1) != 0 {
		return 0, false
	}
	return int(off / b.alignment), true
}

// Mark sets the bit for addr. It returns false when addr is outside the
// region, unaligned, or already marked.
func (b *LiveBitmap) Mark(addr uint32) bool {
	i, ok := b.index(addr)
	if !ok {
		return false
	}
	w, m := i>>6, uint64(1)<<(i&63)
	if b.words[w]&m != 0 {
		return false
	}
	b.words[w] |= m
	return true
}

// Marked reports whether addr is marked.
func (b *LiveBitmap) Marked(addr uint32) bool {
	i, ok := b.index(addr)
	return ok && b.words[i>>6]&(uint64(1)<<(i&63)) != 0
}

// Count returns the number of marked addresses.
func (b *LiveBitmap) Count() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Visit calls fn for every marked address in ascending order and stops at
// the first error.
func (b *LiveBitmap) Visit(fn func(addr uint32) error) error {
	for wi, w := range b.words {
		for w != 0 {
			i := wi<<6 + bits.TrailingZeros64(w)
			if err := fn(b.begin + uint32(i)*b.alignment); err != nil {
				return err
			}
			w &= w - 1
		}
	}
	return nil
}
