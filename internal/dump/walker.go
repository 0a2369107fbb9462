package dump

import (
	"context"

	"github.com/oatdump/internal/dex"
	"github.com/oatdump/internal/disasm"
	"github.com/oatdump/internal/oat"
	apperrors "github.com/oatdump/pkg/errors"
)

// ClassWalker pairs the class definitions of a dex file with the compiled
// classes of its oat dex file entry.
type ClassWalker struct {
	isa         oat.InstructionSet
	disassemble bool
}

// NewClassWalker creates a walker for code built for isa. With disassemble
// set, every method with code carries its disassembly.
func NewClassWalker(isa oat.InstructionSet, disassemble bool) *ClassWalker {
	return &ClassWalker{isa: isa, disassemble: disassemble && disasm.Supported(isa)}
}

// Walk calls fn for every class definition of dexFile in index order.
func (w *ClassWalker) Walk(ctx context.Context, dexFile *dex.File, entry *oat.DexFileEntry, fn func(*ClassEntry) error) error {
	if entry.NumClasses() != dexFile.NumClassDefs() {
		return apperrors.InvalidArtifact("%s: oat has %d classes, dex has %d class definitions",
			entry.Location, entry.NumClasses(), dexFile.NumClassDefs())
	}
	for i := 0; i < dexFile.NumClassDefs(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		ce, err := w.classEntry(dexFile, entry, i)
		if err != nil {
			return err
		}
		if err := fn(ce); err != nil {
			return err
		}
	}
	return nil
}

func (w *ClassWalker) classEntry(dexFile *dex.File, entry *oat.DexFileEntry, i int) (*ClassEntry, error) {
	cd, err := dexFile.ClassDef(i)
	if err != nil {
		return nil, apperrors.InvalidArtifact("%s: %v", dexFile.Location(), err)
	}
	desc, err := dexFile.TypeDescriptor(cd.ClassIdx)
	if err != nil {
		return nil, apperrors.InvalidArtifact("%s class %d: %v", dexFile.Location(), i, err)
	}
	it, err := dexFile.ClassData(cd)
	if err != nil {
		return nil, err
	}
	numMethods := 0
	if it != nil {
		numMethods = int(it.NumDirectMethods()) + int(it.NumVirtualMethods())
	}
	cls, err := entry.Class(i, numMethods)
	if err != nil {
		return nil, err
	}

	ce := &ClassEntry{Index: i, TypeIdx: cd.ClassIdx, Descriptor: desc, Status: cls.Status}
	if it == nil {
		// a marker class has no members
		return ce, nil
	}

	for it.HasNextStaticField() {
		if err := it.Next(); err != nil {
			return nil, err
		}
	}
	for it.HasNextInstanceField() {
		if err := it.Next(); err != nil {
			return nil, err
		}
	}
	var ordinal uint32
	for it.HasNextDirectMethod() || it.HasNextVirtualMethod() {
		if err := it.Next(); err != nil {
			return nil, err
		}
		m, err := w.methodEntry(dexFile, cls, ordinal, it.Member())
		if err != nil {
			return nil, apperrors.Annotate(err, "%s", desc)
		}
		ce.Methods = append(ce.Methods, *m)
		ordinal++
	}
	if it.HasNext() {
		return nil, apperrors.ConsistencyFault("%s: %d class data entries remain after the virtual methods", desc, it.Remaining())
	}
	return ce, nil
}

func (w *ClassWalker) methodEntry(dexFile *dex.File, cls *oat.Class, ordinal uint32, member dex.Member) (*MethodEntry, error) {
	om, err := cls.Method(int(ordinal))
	if err != nil {
		return nil, err
	}
	name, err := dexFile.MethodName(member.Index)
	if err != nil {
		return nil, apperrors.InvalidArtifact("method %d name: %v", member.Index, err)
	}
	sig, err := dexFile.MethodSignature(member.Index)
	if err != nil {
		return nil, apperrors.InvalidArtifact("method %d signature: %v", member.Index, err)
	}

	m := &MethodEntry{
		Ordinal:            ordinal,
		MethodIdx:          member.Index,
		Name:               name,
		Signature:          sig,
		AccessFlags:        member.AccessFlags,
		Code:               om.Code(),
		CodeOffset:         om.CodeOffset,
		FrameSizeInBytes:   om.FrameSizeInBytes,
		CoreSpillMask:      om.CoreSpillMask,
		FpSpillMask:        om.FpSpillMask,
		MappingTable:       om.MappingTable(),
		MappingTableOffset: om.MappingTableOffset,
		VmapTable:          om.VmapTable(),
		VmapTableOffset:    om.VmapTableOffset,
		GcMap:              om.GcMap(),
		GcMapOffset:        om.GcMapOffset,
		InvokeStub:         om.InvokeStub(),
		InvokeStubOffset:   om.InvokeStubOffset,
	}
	m.Kind = ClassifyMethod(MethodTraits{
		Native:   member.AccessFlags&dex.AccNative != 0,
		Abstract: member.AccessFlags&dex.AccAbstract != 0,
	})

	code, err := om.CodeBytes()
	if err != nil {
		return nil, err
	}
	stub, err := om.InvokeStubBytes()
	if err != nil {
		return nil, err
	}
	gcMap, err := om.GcMapBytes()
	if err != nil {
		return nil, err
	}
	mapping, err := om.MappingTableBytes()
	if err != nil {
		return nil, err
	}
	m.CodeSize = uint32(len(code))
	m.InvokeStubSize = uint32(len(stub))
	m.GcMapLen = uint32(len(gcMap))
	m.MappingTableLen = uint32(len(mapping))

	if err := CheckSideTables(name+sig, m.Kind, SideTables{
		GcMap:           m.GcMap,
		GcMapLen:        m.GcMapLen,
		MappingTable:    m.MappingTable,
		MappingTableLen: m.MappingTableLen,
	}); err != nil {
		return nil, err
	}

	if m.Kind == MethodManaged {
		insns, err := dexFile.InsnsSizeInCodeUnits(member.CodeOff)
		if err != nil {
			return nil, apperrors.InvalidArtifact("method %s code item: %v", name, err)
		}
		m.DexInstructionBytes = int64(insns) * 2
	}

	if w.disassemble && len(code) > 0 {
		if m.Disassembly, err = disasm.Disassemble(w.isa, code, disasm.Options{BaseAddr: m.Code}); err != nil {
			return nil, err
		}
	}
	return m, nil
}
