package testutil

import (
	"unicode/utf16"
)

const (
	dexHeaderSize = 0x70
	dexEndianTag  = 0x12345678
)

// DexField describes one field declaration.
type DexField struct {
	Name        string
	Type        string
	AccessFlags uint32
}

// DexMethod describes one method declaration. A method with zero InsnsUnits
// and no code has no code item.
type DexMethod struct {
	Name        string
	Return      string
	Params      []string
	AccessFlags uint32
	InsnsUnits  uint32
}

// DexClass describes one class definition. NoData produces a class_def with
// a zero class data offset.
type DexClass struct {
	Descriptor     string
	AccessFlags    uint32
	StaticFields   []DexField
	InstanceFields []DexField
	DirectMethods  []DexMethod
	VirtualMethods []DexMethod
	NoData         bool
}

type dexProto struct {
	shorty string
	ret    string
	params []string
}

type dexBuilder struct {
	strings  []string
	strIdx   map[string]uint32
	types    []uint32
	typeIdx  map[string]uint32
	protos   []dexProto
	protoIdx map[string]uint32
	fields   [][3]uint32 // class, type, name
	methods  [][3]uint32 // class, proto, name
}

func (b *dexBuilder) str(s string) uint32 {
	if i, ok := b.strIdx[s]; ok {
		return i
	}
	i := uint32(len(b.strings))
	b.strings = append(b.strings, s)
	b.strIdx[s] = i
	return i
}

func (b *dexBuilder) typ(desc string) uint32 {
	if i, ok := b.typeIdx[desc]; ok {
		return i
	}
	i := uint32(len(b.types))
	b.types = append(b.types, b.str(desc))
	b.typeIdx[desc] = i
	return i
}

func shortyChar(desc string) byte {
	if desc[0] == '[' {
		return 'L'
	}
	return desc[0]
}

func (b *dexBuilder) proto(ret string, params []string) uint32 {
	key := ret + "("
	shorty := []byte{shortyChar(ret)}
	for _, p := range params {
		key += p
		shorty = append(shorty, shortyChar(p))
	}
	if i, ok := b.protoIdx[key]; ok {
		return i
	}
	b.str(string(shorty))
	b.typ(ret)
	for _, p := range params {
		b.typ(p)
	}
	i := uint32(len(b.protos))
	b.protos = append(b.protos, dexProto{shorty: string(shorty), ret: ret, params: params})
	b.protoIdx[key] = i
	return i
}

// BuildDex encodes classes as a dex 035 file. Field and method indices are
// assigned in declaration order, so member lists are strictly increasing as
// the class data encoding requires.
func BuildDex(classes ...DexClass) []byte {
	b := &dexBuilder{
		strIdx:   map[string]uint32{},
		typeIdx:  map[string]uint32{},
		protoIdx: map[string]uint32{},
	}

	type member struct {
		idx     uint32
		flags   uint32
		insns   uint32
		codeOff uint32
	}
	type classLayout struct {
		typeIdx uint32
		lists   [4][]member
	}
	layouts := make([]classLayout, len(classes))

	for ci, c := range classes {
		classType := b.typ(c.Descriptor)
		layouts[ci].typeIdx = classType
		for li, fs := range [][]DexField{c.StaticFields, c.InstanceFields} {
			for _, f := range fs {
				idx := uint32(len(b.fields))
				b.fields = append(b.fields, [3]uint32{classType, b.typ(f.Type), b.str(f.Name)})
				layouts[ci].lists[li] = append(layouts[ci].lists[li], member{idx: idx, flags: f.AccessFlags})
			}
		}
		for li, ms := range [][]DexMethod{c.DirectMethods, c.VirtualMethods} {
			for _, m := range ms {
				idx := uint32(len(b.methods))
				b.methods = append(b.methods, [3]uint32{classType, b.proto(m.Return, m.Params), b.str(m.Name)})
				layouts[ci].lists[2+li] = append(layouts[ci].lists[2+li], member{idx: idx, flags: m.AccessFlags, insns: m.InsnsUnits})
			}
		}
	}

	stringIDsOff := dexHeaderSize
	typeIDsOff := stringIDsOff + 4*len(b.strings)
	protoIDsOff := typeIDsOff + 4*len(b.types)
	fieldIDsOff := protoIDsOff + 12*len(b.protos)
	methodIDsOff := fieldIDsOff + 8*len(b.fields)
	classDefsOff := methodIDsOff + 8*len(b.methods)
	dataOff := classDefsOff + 32*len(classes)

	data := &buffer{}
	at := func() uint32 { return uint32(dataOff + data.len()) }

	stringOffs := make([]uint32, len(b.strings))
	for i, s := range b.strings {
		stringOffs[i] = at()
		units := utf16.Encode([]rune(s))
		data.uleb(uint32(len(units)))
		data.raw(encodeMUTF8(units))
		data.u8(0)
	}

	paramOffs := make([]uint32, len(b.protos))
	for i, p := range b.protos {
		if len(p.params) == 0 {
			continue
		}
		data.align(4)
		paramOffs[i] = at()
		data.u32(uint32(len(p.params)))
		for _, param := range p.params {
			data.u16(uint16(b.typeIdx[param]))
		}
	}

	classDataOffs := make([]uint32, len(classes))
	for ci := range classes {
		for li := 2; li < 4; li++ {
			for mi := range layouts[ci].lists[li] {
				m := &layouts[ci].lists[li][mi]
				if m.insns == 0 {
					continue
				}
				data.align(4)
				off := at()
				data.u16(1) // registers
				data.u16(0) // ins
				data.u16(0) // outs
				data.u16(0) // tries
				data.u32(0) // debug info
				data.u32(m.insns)
				for k := uint32(0); k < m.insns; k++ {
					data.u16(0x000e) // return-void
				}
				m.codeOff = off
			}
		}
	}
	for ci, c := range classes {
		if c.NoData {
			continue
		}
		classDataOffs[ci] = at()
		lists := layouts[ci].lists
		for _, l := range lists {
			data.uleb(uint32(len(l)))
		}
		for li, l := range lists {
			var prev uint32
			for _, m := range l {
				data.uleb(m.idx - prev)
				prev = m.idx
				data.uleb(m.flags)
				if li >= 2 {
					data.uleb(m.codeOff)
				}
			}
		}
	}

	out := &buffer{}
	out.raw([]byte("dex\n035\x00"))
	out.u32(0)                // checksum
	out.raw(make([]byte, 20))  // signature
	out.u32(uint32(dataOff + data.len()))
	out.u32(dexHeaderSize)
	out.u32(dexEndianTag)
	out.u32(0) // link size
	out.u32(0) // link off
	out.u32(0) // map off
	for _, t := range [][2]int{
		{len(b.strings), stringIDsOff},
		{len(b.types), typeIDsOff},
		{len(b.protos), protoIDsOff},
		{len(b.fields), fieldIDsOff},
		{len(b.methods), methodIDsOff},
		{len(classes), classDefsOff},
		{data.len(), dataOff},
	} {
		out.u32(uint32(t[0]))
		out.u32(uint32(t[1]))
	}

	for _, off := range stringOffs {
		out.u32(off)
	}
	for _, s := range b.types {
		out.u32(s)
	}
	for i, p := range b.protos {
		out.u32(b.strIdx[p.shorty])
		out.u32(b.typeIdx[p.ret])
		out.u32(paramOffs[i])
	}
	for _, f := range b.fields {
		out.u16(uint16(f[0]))
		out.u16(uint16(f[1]))
		out.u32(f[2])
	}
	for _, m := range b.methods {
		out.u16(uint16(m[0]))
		out.u16(uint16(m[1]))
		out.u32(m[2])
	}
	for ci, c := range classes {
		out.u32(layouts[ci].typeIdx)
		out.u32(c.AccessFlags)
		out.u32(0xffffffff) // superclass
		out.u32(0)          // interfaces
		out.u32(0xffffffff) // source file
		out.u32(0)          // annotations
		out.u32(classDataOffs[ci])
		out.u32(0) // static values
	}
	out.raw(data.b)
	return out.b
}

func encodeMUTF8(units []uint16) []byte {
	var out []byte
	for _, u := range units {
		switch {
		case u != 0 && u < 0x80:
			out = append(out, byte(u))
		case u < 0x800:
			out = append(out, 0xc0|byte(u>>6), 0x80|byte(u&0x3f))
		default:
			out = append(out, 0xe0|byte(u>>12), 0x80|byte(u>>6&0x3f), 0x80|byte(u&0x3f))
		}
	}
	return out
}
