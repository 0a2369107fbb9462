package dex

import (
	"fmt"
	"unicode/utf16"
)

// decodeMUTF8 decodes the modified UTF-8 used by dex string data. Supplementary
// characters arrive as two encoded surrogates and are recombined.
func decodeMUTF8(b []byte, utf16Len int) (string, error) {
	units := make([]uint16, 0, utf16Len)
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xe0 == 0xc0:
			if i+1 >= len(b) {
				return "", fmt.Errorf("truncated mutf-8 sequence at %d", i)
			}
			units = append(units, uint16(c&0x1f)<<6|uint16(b[i+1]&0x3f))
			i += 2
		case c&0xf0 == 0xe0:
			if i+2 >= len(b) {
				return "", fmt.Errorf("truncated mutf-8 sequence at %d", i)
			}
			units = append(units, uint16(c&0x0f)<<12|uint16(b[i+1]&0x3f)<<6|uint16(b[i+2]&0x3f))
			i += 3
		default:
			return "", fmt.Errorf("invalid mutf-8 byte %#x at %d", c, i)
		}
	}
	return string(utf16.Decode(units)), nil
}
