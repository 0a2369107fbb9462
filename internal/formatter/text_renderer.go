// Package formatter renders decoded artifacts and their statistics.
package formatter

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/oatdump/internal/disasm"
	"github.com/oatdump/internal/dump"
	"github.com/oatdump/internal/image"
	"github.com/oatdump/internal/oat"
	"github.com/oatdump/pkg/model"
)

// TextRenderer writes the plain-text report. Output is buffered; call Flush
// when the dump is complete. The first write error is latched and every
// later write is dropped.
type TextRenderer struct {
	w         *bufio.Writer
	err       error
	imageRoot uint32

	// set between an OAT LOCATION line and what follows it
	afterLocation bool
}

var _ dump.Renderer = (*TextRenderer)(nil)

// NewTextRenderer creates a renderer writing to w.
func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: bufio.NewWriter(w)}
}

func (r *TextRenderer) printf(format string, args ...interface{}) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, format, args...)
}

func (r *TextRenderer) print(s string) {
	if r.err != nil {
		return
	}
	_, r.err = r.w.WriteString(s)
}

// Flush writes any buffered output.
func (r *TextRenderer) Flush() error {
	if r.err == nil {
		r.err = r.w.Flush()
	}
	return r.err
}

// Err returns the first write error.
func (r *TextRenderer) Err() error { return r.err }

func ptr(addr uint32) string { return fmt.Sprintf("0x%08x", addr) }

// located renders a location followed by its host path when they differ.
func located(location, translated string) string {
	if translated == "" || translated == location {
		return location
	}
	return location + " (" + translated + ")"
}

// endLocation separates a found companion oat file from its location line.
func (r *TextRenderer) endLocation() {
	if r.afterLocation {
		r.afterLocation = false
		r.print("\n")
	}
}

func (r *TextRenderer) OatHeader(h *oat.Header, begin, end uint32) {
	r.endLocation()
	r.printf("MAGIC:\n%s\n\n", h.MagicString())
	r.printf("CHECKSUM:\n%08x\n\n", h.Checksum)
	r.printf("INSTRUCTION SET:\n%s\n\n", h.InstructionSet)
	r.printf("DEX FILE COUNT:\n%d\n\n", h.DexFileCount)
	r.printf("EXECUTABLE OFFSET:\n%08x\n\n", h.ExecutableOffset)
	r.printf("BEGIN:\n%s\n\n", ptr(begin))
	r.printf("END:\n%s\n\n", ptr(end))
}

func (r *TextRenderer) OatDexFile(location, translated string, checksum uint32) {
	r.print("OAT DEX FILE:\n")
	r.printf("location: %s\n", located(location, translated))
	r.printf("checksum: %08x\n", checksum)
}

func (r *TextRenderer) NotFound() {
	r.afterLocation = false
	r.print("NOT FOUND\n\n")
}

func (r *TextRenderer) Class(c *dump.ClassEntry) {
	r.printf("%d: %s (type_idx=%d) (%s)\n", c.Index, c.Descriptor, c.TypeIdx, c.Status)
	for i := range c.Methods {
		r.method(&c.Methods[i])
	}
}

func (r *TextRenderer) method(m *dump.MethodEntry) {
	r.printf("\t%d: %s %s (method_idx=%d)\n", m.Ordinal, m.Name, m.Signature, m.MethodIdx)
	r.printf("\t\tcode: %s (offset=%08x)\n", ptr(m.Code), m.CodeOffset)
	r.printf("\t\tframe_size_in_bytes: %d\n", m.FrameSizeInBytes)
	r.printf("\t\tcore_spill_mask: %08x\n", m.CoreSpillMask)
	r.printf("\t\tfp_spill_mask: %08x\n", m.FpSpillMask)
	r.printf("\t\tmapping_table: %s (offset=%08x)\n", ptr(m.MappingTable), m.MappingTableOffset)
	r.printf("\t\tvmap_table: %s (offset=%08x)\n", ptr(m.VmapTable), m.VmapTableOffset)
	r.printf("\t\tgc_map: %s (offset=%08x)\n", ptr(m.GcMap), m.GcMapOffset)
	r.printf("\t\tinvoke_stub: %s (offset=%08x)\n", ptr(m.InvokeStub), m.InvokeStubOffset)
	switch m.Kind {
	case dump.MethodNative:
		// compiled code carries no bound entry point
		r.print("\t\tNATIVE UNREGISTERED\n")
	case dump.MethodAbstract:
		r.print("\t\tABSTRACT\n")
	case dump.MethodManaged:
		r.printf("\t\tSIZE Code=%d GC=%d Mapping=%d\n", m.DexInstructionBytes, m.GcMapLen, m.MappingTableLen)
	}
	if len(m.Disassembly) > 0 {
		r.print(disasm.Format(m.Disassembly, "\t\t\t"))
	}
}

func (r *TextRenderer) OatStats(s model.OatStats) {
	r.print("OAT STATS:\n")
	r.printf("\tdex_files = %d (%d not found)\n", s.DexFiles, s.MissingDexFiles)
	r.printf("\tclasses   = %d\n", s.Classes)
	r.printf("\tmethods   = %d managed, %d native, %d abstract\n",
		s.Methods.ManagedMethods, s.Methods.NativeMethods, s.Methods.AbstractMethods)
	r.print("\n")
	r.printf("\tmanaged_code_bytes           = %8d\n", s.Methods.ManagedCodeBytes)
	r.printf("\tmanaged_to_native_code_bytes = %8d\n", s.Methods.ManagedToNativeCodeBytes)
	r.printf("\tnative_to_managed_code_bytes = %8d\n", s.Methods.NativeToManagedCodeBytes)
	r.print("\n")
	r.printf("\tregister_map_bytes     = %7d\n", s.Methods.RegisterMapBytes)
	r.printf("\tpc_mapping_table_bytes = %7d\n", s.Methods.PcMappingTableBytes)
	r.print("\n")
	r.printf("\tdex_instruction_bytes = %d\n", s.Methods.DexInstructionBytes)
	r.printf("\tmanaged_code_bytes expansion = %.2f\n", s.Methods.Expansion())
	r.print("\n")
}

func (r *TextRenderer) ImageHeader(h *image.Header) {
	r.imageRoot = h.ImageRoots
	r.printf("MAGIC:\n%s\n\n", h.MagicString())
	r.printf("IMAGE BEGIN:\n%s\n\n", ptr(h.ImageBegin))
	r.printf("OAT CHECKSUM:\n%08x\n\n", h.OatChecksum)
	r.printf("OAT BEGIN:\n%s\n\n", ptr(h.OatBegin))
	r.printf("OAT END:\n%s\n\n", ptr(h.OatEnd))
}

func (r *TextRenderer) Roots(roots []dump.RootEntry) {
	r.printf("ROOTS:\n%s\n", ptr(r.imageRoot))
	for _, root := range roots {
		r.printf("%s: %s\n", root.Root, ptr(root.Addr))
		if !root.IsArray {
			continue
		}
		for i, e := range root.Elements {
			r.printf("\t%d: %s\n", i, ptr(e))
		}
	}
	r.print("\n")
}

func (r *TextRenderer) BeginObjects() {
	r.print("OBJECTS:\n")
}

func (r *TextRenderer) Object(rec *dump.ObjectRecord) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: ", ptr(rec.Addr))
	switch rec.Category {
	case dump.CategoryClass:
		fmt.Fprintf(&sb, "CLASS %s (%s)", rec.ClassDescriptor, rec.ClassStatus)
	case dump.CategoryMethod:
		fmt.Fprintf(&sb, "METHOD %s", rec.Pretty)
	case dump.CategoryField:
		fmt.Fprintf(&sb, "FIELD %s", rec.Pretty)
	case dump.CategoryArray:
		fmt.Fprintf(&sb, "ARRAY %d", rec.ArrayLength)
	case dump.CategoryString:
		fmt.Fprintf(&sb, "STRING %s", rec.Text)
	default:
		sb.WriteString("OBJECT")
	}
	fmt.Fprintf(&sb, "\n\tclass %s: %s\n", ptr(rec.ClassAddr), rec.Descriptor)

	if m := rec.Method; m != nil {
		if m.Kind != dump.MethodCalleeSave {
			fmt.Fprintf(&sb, "\tCODE     %s\n", ptr(m.Code))
			fmt.Fprintf(&sb, "\tJNI STUB %s\n", ptr(m.InvokeStub))
		}
		switch m.Kind {
		case dump.MethodNative:
			if m.NativeMethod != 0 {
				fmt.Fprintf(&sb, "\tNATIVE REGISTERED %s\n", ptr(m.NativeMethod))
			} else {
				sb.WriteString("\tNATIVE UNREGISTERED\n")
			}
		case dump.MethodAbstract:
			sb.WriteString("\tABSTRACT\n")
		case dump.MethodCalleeSave:
			sb.WriteString("\tCALLEE SAVE METHOD\n")
		default:
			fmt.Fprintf(&sb, "\tSIZE Code=%d GC=%d Mapping=%d\n",
				m.DexInstructionBytes, m.RegisterMapBytes, m.MappingTableBytes)
		}
	}
	r.print(sb.String())
}

func (r *TextRenderer) ImageStats(s *model.ImageStats) {
	r.print("\n")
	r.print("STATS:\n")
	writeImageStats(r, s)
}

func (r *TextRenderer) OatLocation(location, translated string) {
	r.print("OAT LOCATION:\n")
	r.printf("%s\n", located(location, translated))
	r.afterLocation = true
}

func (r *TextRenderer) OatChecksumMismatch(expected, actual uint32) {
	r.endLocation()
	r.printf("WARNING: oat checksum %08x does not match image oat checksum %08x\n\n", actual, expected)
}
