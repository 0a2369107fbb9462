package heap

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/text/encoding/unicode"

	"github.com/oatdump/internal/oat"
	apperrors "github.com/oatdump/pkg/errors"
)

const (
	objectHeaderSize = 8
	arrayDataOffset  = 12
	stringDataOffset = 16
)

// ClassFlags describe what the instances of a class are.
type ClassFlags uint32

const (
	FlagClass ClassFlags = 1 << iota
	FlagMethod
	FlagField
	FlagArray
	FlagString
)

func (f ClassFlags) Has(flag ClassFlags) bool { return f&flag != 0 }

// Object is a reference to an object in the heap.
type Object struct {
	h    *Heap
	Addr uint32
}

// Object returns a reference to the object at addr. It is not validated.
func (h *Heap) Object(addr uint32) Object { return Object{h: h, Addr: addr} }

// Class returns the object's class.
func (o Object) Class() (Class, error) {
	k, err := o.h.u32(o.Addr)
	if err != nil {
		return Class{}, err
	}
	if k == 0 {
		return Class{}, fmt.Errorf("object %#x has a null class", o.Addr)
	}
	return Class{o.h.Object(k)}, nil
}

// ArrayLength returns the element count of an array object.
func (o Object) ArrayLength() (uint32, error) {
	return o.h.u32(o.Addr + arrayDataOffset - 4)
}

// SizeOf returns the unpadded object size: arrays and strings are sized by
// their length, everything else by its class's instance size.
func (o Object) SizeOf() (uint32, error) {
	k, err := o.Class()
	if err != nil {
		return 0, err
	}
	flags, err := k.Flags()
	if err != nil {
		return 0, err
	}
	switch {
	case flags.Has(FlagArray):
		n, err := o.ArrayLength()
		if err != nil {
			return 0, err
		}
		comp, err := k.ComponentSize()
		if err != nil {
			return 0, err
		}
		return o.extent(arrayDataOffset, n, comp)
	case flags.Has(FlagString):
		n, err := o.h.u32(o.Addr + 8)
		if err != nil {
			return 0, err
		}
		return o.extent(stringDataOffset, n, 2)
	default:
		return k.ObjectSize()
	}
}

// extent returns base+count*unit, rejecting lengths that cannot fit in the
// space holding the object.
func (o Object) extent(base, count, unit uint32) (uint32, error) {
	size := uint64(base) + uint64(count)*uint64(unit)
	s := o.h.SpaceOf(o.Addr)
	if s == nil || size > uint64(s.Size()) {
		return 0, apperrors.InvalidArtifact("object %#x: length %d does not fit its space", o.Addr, count)
	}
	return uint32(size), nil
}

// Class is a class object.
type Class struct {
	Object
}

// AsClass returns o viewed as a class object.
func (o Object) AsClass() Class { return Class{o} }

func (c Class) Descriptor() (string, error) {
	ref, err := c.h.u32(c.Addr + 8)
	if err != nil {
		return "", err
	}
	return c.h.DecodeString(ref)
}

func (c Class) Status() (oat.ClassStatus, error) {
	v, err := c.h.u32(c.Addr + 12)
	return oat.ClassStatus(int32(v)), err
}

func (c Class) Flags() (ClassFlags, error) {
	v, err := c.h.u32(c.Addr + 16)
	return ClassFlags(v), err
}

func (c Class) ObjectSize() (uint32, error)    { return c.h.u32(c.Addr + 20) }
func (c Class) ComponentSize() (uint32, error) { return c.h.u32(c.Addr + 24) }

func (c Class) Super() (uint32, error) { return c.h.u32(c.Addr + 28) }

var utf16le = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// DecodeString decodes the string object at addr.
func (h *Heap) DecodeString(addr uint32) (string, error) {
	if addr == 0 {
		return "", fmt.Errorf("null string reference")
	}
	n, err := h.u32(addr + 8)
	if err != nil {
		return "", err
	}
	size, err := h.Object(addr).extent(stringDataOffset, n, 2)
	if err != nil {
		return "", err
	}
	raw, err := h.slice(addr+stringDataOffset, int(size-stringDataOffset))
	if err != nil {
		return "", err
	}
	b, err := utf16le.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ObjectArray returns the elements of an object array.
func (h *Heap) ObjectArray(addr uint32) ([]uint32, error) {
	n, err := h.Object(addr).ArrayLength()
	if err != nil {
		return nil, err
	}
	size, err := h.Object(addr).extent(arrayDataOffset, n, 4)
	if err != nil {
		return nil, err
	}
	raw, err := h.slice(addr+arrayDataOffset, int(size-arrayDataOffset))
	if err != nil {
		return nil, err
	}
	elems := make([]uint32, len(raw)/4)
	for i := range elems {
		elems[i] = binary.LittleEndian.Uint32(raw[4*i:])
	}
	return elems, nil
}

// Method is a decoded method object.
type Method struct {
	Addr            uint32
	DeclaringClass  uint32
	Name            uint32
	Signature       uint32
	AccessFlags     uint32
	Code            uint32
	CodeSize        uint32
	InvokeStub      uint32
	InvokeStubSize  uint32
	NativeMethod    uint32
	GcMap           uint32
	GcMapLength     uint32
	MappingTable    uint32
	MappingTableLen uint32
	InsnsUnits      uint32
}

// IsRegistered reports whether a native method has a bound entry point.
func (m *Method) IsRegistered() bool { return m.NativeMethod != 0 }

// Method decodes the method object at addr.
func (h *Heap) Method(addr uint32) (*Method, error) {
	raw, err := h.slice(addr+objectHeaderSize, 56)
	if err != nil {
		return nil, err
	}
	m := &Method{Addr: addr}
	for i, p := range []*uint32{
		&m.DeclaringClass, &m.Name, &m.Signature, &m.AccessFlags, &m.Code, &m.CodeSize,
		&m.InvokeStub, &m.InvokeStubSize, &m.NativeMethod, &m.GcMap, &m.GcMapLength,
		&m.MappingTable, &m.MappingTableLen, &m.InsnsUnits,
	} {
		*p = binary.LittleEndian.Uint32(raw[4*i:])
	}
	return m, nil
}

// Field is a decoded field object.
type Field struct {
	Addr           uint32
	DeclaringClass uint32
	Name           uint32
	Type           uint32
	AccessFlags    uint32
	Offset         uint32
}

// Field decodes the field object at addr.
func (h *Heap) Field(addr uint32) (*Field, error) {
	raw, err := h.slice(addr+objectHeaderSize, 20)
	if err != nil {
		return nil, err
	}
	return &Field{
		Addr:           addr,
		DeclaringClass: binary.LittleEndian.Uint32(raw[0:]),
		Name:           binary.LittleEndian.Uint32(raw[4:]),
		Type:           binary.LittleEndian.Uint32(raw[8:]),
		AccessFlags:    binary.LittleEndian.Uint32(raw[12:]),
		Offset:         binary.LittleEndian.Uint32(raw[16:]),
	}, nil
}
