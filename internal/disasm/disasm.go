// Package disasm renders compiled method code for the instruction set an oat
// file was built for.
package disasm

import (
	"encoding/binary"
	"fmt"
	"strings"

	"golang.org/x/arch/arm/armasm"
	"golang.org/x/arch/arm64/arm64asm"
	"golang.org/x/arch/x86/x86asm"

	"github.com/oatdump/internal/oat"
)

// Inst is one decoded instruction, or one undecodable unit rendered as data.
type Inst struct {
	Addr uint32
	Raw  []byte
	Text string
}

// Options controls disassembly.
type Options struct {
	BaseAddr uint32 // address of data[0]
	MaxInsts int    // 0 means no limit
}

// Supported reports whether code for isa can be disassembled.
func Supported(isa oat.InstructionSet) bool {
	switch isa {
	case oat.ISAArm, oat.ISAThumb2, oat.ISAArm64, oat.ISAX86, oat.ISAX86_64:
		return true
	}
	return false
}

// Disassemble decodes data as code for isa.
func Disassemble(isa oat.InstructionSet, data []byte, opts Options) ([]Inst, error) {
	var step func([]byte, uint32) (int, string)
	switch isa {
	case oat.ISAArm64:
		step = fixedWidth(4, func(b []byte) (string, error) {
			inst, err := arm64asm.Decode(b)
			if err != nil {
				return "", err
			}
			return arm64asm.GNUSyntax(inst), nil
		})
	case oat.ISAArm:
		step = fixedWidth(4, func(b []byte) (string, error) {
			inst, err := armasm.Decode(b, armasm.ModeARM)
			if err != nil {
				return "", err
			}
			return armasm.GNUSyntax(inst), nil
		})
	case oat.ISAThumb2:
		// armasm has no Thumb decoder; halfwords are listed as data.
		step = func(b []byte, _ uint32) (int, string) {
			if len(b) < 2 {
				return 1, fmt.Sprintf(".byte 0x%02x", b[0])
			}
			return 2, fmt.Sprintf(".hword 0x%04x", binary.LittleEndian.Uint16(b))
		}
	case oat.ISAX86, oat.ISAX86_64:
		mode := 32
		if isa == oat.ISAX86_64 {
			mode = 64
		}
		step = func(b []byte, pc uint32) (int, string) {
			inst, err := x86asm.Decode(b, mode)
			if err != nil || inst.Len == 0 {
				return 1, fmt.Sprintf(".byte 0x%02x", b[0])
			}
			return inst.Len, x86asm.GNUSyntax(inst, uint64(pc), nil)
		}
	default:
		return nil, fmt.Errorf("no disassembler for instruction set %s", isa)
	}

	var insts []Inst
	for off := 0; off < len(data); {
		if opts.MaxInsts > 0 && len(insts) >= opts.MaxInsts {
			break
		}
		addr := opts.BaseAddr + uint32(off)
		n, text := step(data[off:], addr)
		insts = append(insts, Inst{Addr: addr, Raw: data[off : off+n], Text: text})
		off += n
	}
	return insts, nil
}

func fixedWidth(width int, decode func([]byte) (string, error)) func([]byte, uint32) (int, string) {
	return func(b []byte, _ uint32) (int, string) {
		if len(b) < width {
			return 1, fmt.Sprintf(".byte 0x%02x", b[0])
		}
		text, err := decode(b[:width])
		if err != nil {
			return width, fmt.Sprintf(".word 0x%08x", binary.LittleEndian.Uint32(b))
		}
		return width, text
	}
}

// Format renders insts one per line with the given indent.
func Format(insts []Inst, indent string) string {
	var sb strings.Builder
	for _, inst := range insts {
		fmt.Fprintf(&sb, "%s0x%08x: %-24x %s\n", indent, inst.Addr, inst.Raw, inst.Text)
	}
	return sb.String()
}
