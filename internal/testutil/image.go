package testutil

import "unicode/utf16"

const (
	imageHeaderSize  = 28
	imageObjectStart = 32
)

// Class flags describing what instances of a class are.
const (
	FlagClass  = 1
	FlagMethod = 2
	FlagField  = 4
	FlagArray  = 8
	FlagString = 16
)

// ClassStatusInitialized is the status given to every built class.
const ClassStatusInitialized = 7

// ImageMethod describes a method object. Name and Signature become string
// objects; zero addresses and lengths are written as-is.
type ImageMethod struct {
	Declaring       uint32
	Name            string
	Signature       string
	AccessFlags     uint32
	Code            uint32
	CodeSize        uint32
	InvokeStub      uint32
	InvokeStubSize  uint32
	NativeMethod    uint32
	GCMap           uint32
	GCMapLen        uint32
	MappingTable    uint32
	MappingTableLen uint32
	InsnsUnits      uint32
}

// ImageBuilder lays out objects contiguously after the image header, each
// padded to 8 bytes. Addresses are Begin-relative absolute addresses.
type ImageBuilder struct {
	Begin       uint32
	OatChecksum uint32
	OatBegin    uint32
	OatEnd      uint32
	Roots       uint32

	ClassClass       uint32
	StringClass      uint32
	ObjectClass      uint32
	MethodClass      uint32
	FieldClass       uint32
	ObjectArrayClass uint32
	ByteArrayClass   uint32

	body buffer
}

// NewImageBuilder creates a builder holding the core classes.
func NewImageBuilder(begin uint32) *ImageBuilder {
	b := &ImageBuilder{Begin: begin}
	b.ClassClass = b.alloc(32)
	b.StringClass = b.alloc(32)
	b.set(b.ClassClass, 0, b.ClassClass)
	b.set(b.StringClass, 0, b.ClassClass)
	b.initClass(b.ClassClass, FlagClass, 32, 0, 0)
	b.initClass(b.StringClass, FlagString, 16, 2, 0)
	b.set(b.ClassClass, 8, b.NewString("Ljava/lang/Class;"))
	b.set(b.StringClass, 8, b.NewString("Ljava/lang/String;"))

	b.ObjectClass = b.NewClass("Ljava/lang/Object;", 0, 8, 0, 0)
	b.set(b.ClassClass, 28, b.ObjectClass)
	b.set(b.StringClass, 28, b.ObjectClass)
	b.MethodClass = b.NewClass("Ljava/lang/reflect/Method;", FlagMethod, 64, 0, b.ObjectClass)
	b.FieldClass = b.NewClass("Ljava/lang/reflect/Field;", FlagField, 28, 0, b.ObjectClass)
	b.ObjectArrayClass = b.NewClass("[Ljava/lang/Object;", FlagArray, 12, 4, b.ObjectClass)
	b.ByteArrayClass = b.NewClass("[B", FlagArray, 12, 1, b.ObjectClass)
	return b
}

// NewAppImageBuilder creates an empty builder whose objects use the core
// classes of boot, as an application image does.
func NewAppImageBuilder(begin uint32, boot *ImageBuilder) *ImageBuilder {
	b := *boot
	b.Begin = begin
	b.Roots = 0
	b.body = buffer{}
	return &b
}

func (b *ImageBuilder) alloc(size int) uint32 {
	addr := b.Begin + imageObjectStart + uint32(b.body.len())
	b.body.raw(make([]byte, size))
	b.body.align(8)
	return addr
}

func (b *ImageBuilder) set(addr uint32, field int, v uint32) {
	b.body.put32(int(addr-b.Begin-imageObjectStart)+field, v)
}

func (b *ImageBuilder) initClass(addr uint32, flags, objectSize, componentSize, super uint32) {
	b.set(addr, 12, ClassStatusInitialized)
	b.set(addr, 16, flags)
	b.set(addr, 20, objectSize)
	b.set(addr, 24, componentSize)
	b.set(addr, 28, super)
}

// NewString allocates a string object holding s as UTF-16.
func (b *ImageBuilder) NewString(s string) uint32 {
	units := utf16.Encode([]rune(s))
	addr := b.alloc(16 + 2*len(units))
	var hash uint32
	for _, u := range units {
		hash = 31*hash + uint32(u)
	}
	b.set(addr, 0, b.StringClass)
	b.set(addr, 8, uint32(len(units)))
	b.set(addr, 12, hash)
	base := int(addr-b.Begin-imageObjectStart) + 16
	for i, u := range units {
		le.PutUint16(b.body.b[base+2*i:], u)
	}
	return addr
}

// NewClass allocates a class object with an initialized status.
func (b *ImageBuilder) NewClass(descriptor string, flags, objectSize, componentSize, super uint32) uint32 {
	addr := b.alloc(32)
	b.set(addr, 0, b.ClassClass)
	b.initClass(addr, flags, objectSize, componentSize, super)
	b.set(addr, 8, b.NewString(descriptor))
	return addr
}

// NewObject allocates a plain instance of klass.
func (b *ImageBuilder) NewObject(klass uint32, size int) uint32 {
	addr := b.alloc(size)
	b.set(addr, 0, klass)
	return addr
}

// NewObjectArray allocates an Object[] holding elems.
func (b *ImageBuilder) NewObjectArray(elems ...uint32) uint32 {
	addr := b.alloc(12 + 4*len(elems))
	b.set(addr, 0, b.ObjectArrayClass)
	b.set(addr, 8, uint32(len(elems)))
	for i, e := range elems {
		b.set(addr, 12+4*i, e)
	}
	return addr
}

// NewByteArray allocates a byte[] holding data.
func (b *ImageBuilder) NewByteArray(data []byte) uint32 {
	addr := b.alloc(12 + len(data))
	b.set(addr, 0, b.ByteArrayClass)
	b.set(addr, 8, uint32(len(data)))
	copy(b.body.b[int(addr-b.Begin-imageObjectStart)+12:], data)
	return addr
}

// NewMethod allocates a method object.
func (b *ImageBuilder) NewMethod(m ImageMethod) uint32 {
	name := b.NewString(m.Name)
	sig := b.NewString(m.Signature)
	addr := b.alloc(64)
	for i, v := range []uint32{
		b.MethodClass, 0, m.Declaring, name, sig, m.AccessFlags, m.Code, m.CodeSize,
		m.InvokeStub, m.InvokeStubSize, m.NativeMethod, m.GCMap, m.GCMapLen,
		m.MappingTable, m.MappingTableLen, m.InsnsUnits,
	} {
		b.set(addr, 4*i, v)
	}
	return addr
}

// NewField allocates a field object.
func (b *ImageBuilder) NewField(declaring uint32, name, typ string, accessFlags, offset uint32) uint32 {
	n := b.NewString(name)
	t := b.NewString(typ)
	addr := b.alloc(28)
	for i, v := range []uint32{b.FieldClass, 0, declaring, n, t, accessFlags, offset} {
		b.set(addr, 4*i, v)
	}
	return addr
}

// StandardRoots allocates the eleven image roots: four stub arrays, the
// unknown-method stub array, the three callee-save methods, the oat location,
// an empty dex cache array and the class roots. It returns the three
// callee-save method addresses.
func (b *ImageBuilder) StandardRoots(oatLocation string) [3]uint32 {
	var roots []uint32
	for i := 0; i < 5; i++ {
		roots = append(roots, b.NewByteArray([]byte{0xde, 0xad, 0xbe}))
	}
	var saves [3]uint32
	for i, name := range []string{"<callee save>", "<refs only save>", "<refs and args save>"} {
		saves[i] = b.NewMethod(ImageMethod{Name: name, Signature: "()V"})
		roots = append(roots, saves[i])
	}
	roots = append(roots, b.NewString(oatLocation))
	roots = append(roots, b.NewObjectArray())
	roots = append(roots, b.NewObjectArray(b.ClassClass, b.StringClass, b.ObjectClass))
	b.Roots = b.NewObjectArray(roots...)
	return saves
}

// Bytes encodes the header followed by the object region.
func (b *ImageBuilder) Bytes() []byte {
	w := &buffer{}
	w.raw([]byte("art\n002\x00"))
	w.u32(b.Begin)
	w.u32(b.OatChecksum)
	w.u32(b.OatBegin)
	w.u32(b.OatEnd)
	w.u32(b.Roots)
	w.align(8)
	w.raw(b.body.b)
	return w.b
}
