package dex

import (
	"github.com/oatdump/internal/artifact"
	apperrors "github.com/oatdump/pkg/errors"
)

const (
	sectionStaticFields = iota
	sectionInstanceFields
	sectionDirectMethods
	sectionVirtualMethods
	numSections
)

// Member is one decoded class data entry. CodeOff is zero for fields.
type Member struct {
	Index       uint32
	AccessFlags uint32
	CodeOff     uint32
}

// ClassDataIterator walks a class_data_item: static fields, instance fields,
// direct methods and virtual methods, in that order. Member indices are delta
// encoded and the running index restarts at the beginning of each list.
type ClassDataIterator struct {
	c       *artifact.Cursor
	counts  [numSections]uint32
	pos     uint32
	total   uint32
	lastIdx uint32
	member  Member
}

// NewClassDataIterator reads the class data header at off.
func NewClassDataIterator(data []byte, off int) (*ClassDataIterator, error) {
	c, err := artifact.NewCursorAt(data, off)
	if err != nil {
		return nil, apperrors.InvalidArtifact("class data at %#x: %v", off, err)
	}
	it := &ClassDataIterator{c: c}
	var total uint64
	for i := range it.counts {
		n, err := c.ULEB128()
		if err != nil {
			return nil, apperrors.InvalidArtifact("class data header at %#x: %v", off, err)
		}
		it.counts[i] = n
		total += uint64(n)
	}
	// every entry takes at least one byte
	if total > uint64(c.Remaining()) {
		return nil, apperrors.InvalidArtifact("class data at %#x: %d entries exceed the file", off, total)
	}
	it.total = uint32(total)
	return it, nil
}

func (it *ClassDataIterator) sectionEnd(s int) uint32 {
	var end uint32
	for i := 0; i <= s; i++ {
		end += it.counts[i]
	}
	return end
}

func (it *ClassDataIterator) in(s int) bool {
	return it.pos >= it.sectionEnd(s)-it.counts[s] && it.pos < it.sectionEnd(s)
}

func (it *ClassDataIterator) NumStaticFields() uint32   { return it.counts[sectionStaticFields] }
func (it *ClassDataIterator) NumInstanceFields() uint32 { return it.counts[sectionInstanceFields] }
func (it *ClassDataIterator) NumDirectMethods() uint32  { return it.counts[sectionDirectMethods] }
func (it *ClassDataIterator) NumVirtualMethods() uint32 { return it.counts[sectionVirtualMethods] }

func (it *ClassDataIterator) HasNextStaticField() bool   { return it.in(sectionStaticFields) }
func (it *ClassDataIterator) HasNextInstanceField() bool { return it.in(sectionInstanceFields) }
func (it *ClassDataIterator) HasNextDirectMethod() bool  { return it.in(sectionDirectMethods) }
func (it *ClassDataIterator) HasNextVirtualMethod() bool { return it.in(sectionVirtualMethods) }

// HasNext reports whether any entry remains unread.
func (it *ClassDataIterator) HasNext() bool { return it.pos < it.total }

// Remaining returns the number of unread entries.
func (it *ClassDataIterator) Remaining() uint32 { return it.total - it.pos }

// Next decodes the next entry, which Member then returns.
func (it *ClassDataIterator) Next() error {
	if !it.HasNext() {
		return apperrors.ConsistencyFault("class data read past its %d entries", it.total)
	}
	for s := 0; s < numSections; s++ {
		if it.pos == it.sectionEnd(s)-it.counts[s] {
			it.lastIdx = 0
			break
		}
	}

	delta, err := it.c.ULEB128()
	if err != nil {
		return apperrors.InvalidArtifact("class data entry %d: %v", it.pos, err)
	}
	flags, err := it.c.ULEB128()
	if err != nil {
		return apperrors.InvalidArtifact("class data entry %d: %v", it.pos, err)
	}
	var codeOff uint32
	if it.pos >= it.sectionEnd(sectionInstanceFields) {
		if codeOff, err = it.c.ULEB128(); err != nil {
			return apperrors.InvalidArtifact("class data entry %d: %v", it.pos, err)
		}
	}

	it.lastIdx += delta
	it.member = Member{Index: it.lastIdx, AccessFlags: flags, CodeOff: codeOff}
	it.pos++
	return nil
}

// Member returns the entry decoded by the last call to Next.
func (it *ClassDataIterator) Member() Member { return it.member }
