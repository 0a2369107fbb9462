package artifact

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrTruncated is returned when a read runs past the end of the view.
var ErrTruncated = errors.New("artifact: unexpected end of data")

// Cursor reads little-endian values from a byte view without copying.
type Cursor struct {
	data []byte
	pos  int
}

// NewCursor creates a cursor at the start of data.
func NewCursor(data []byte) *Cursor {
	return &Cursor{data: data}
}

// NewCursorAt creates a cursor positioned at off.
func NewCursorAt(data []byte, off int) (*Cursor, error) {
	c := NewCursor(data)
	if err := c.Seek(off); err != nil {
		return nil, err
	}
	return c, nil
}

// Pos returns the current read position.
func (c *Cursor) Pos() int { return c.pos }

// Remaining returns bytes left to read.
func (c *Cursor) Remaining() int { return len(c.data) - c.pos }

// Seek moves the cursor to an absolute offset.
func (c *Cursor) Seek(off int) error {
	if off < 0 || off > len(c.data) {
		return fmt.Errorf("%w: seek to %d beyond %d", ErrTruncated, off, len(c.data))
	}
	c.pos = off
	return nil
}

func (c *Cursor) need(n int) error {
	if n < 0 || c.pos+n > len(c.data) {
		return fmt.Errorf("%w: need %d bytes at %d, have %d", ErrTruncated, n, c.pos, c.Remaining())
	}
	return nil
}

// Bytes returns the next n bytes as a sub-slice of the view.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.data[c.pos : c.pos+n : c.pos+n]
	c.pos += n
	return b, nil
}

// Uint8 reads one byte.
func (c *Cursor) Uint8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.data[c.pos]
	c.pos++
	return v, nil
}

// Uint16 reads a little-endian uint16.
func (c *Cursor) Uint16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(c.data[c.pos:])
	c.pos += 2
	return v, nil
}

// Uint32 reads a little-endian uint32.
func (c *Cursor) Uint32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(c.data[c.pos:])
	c.pos += 4
	return v, nil
}

// Int32 reads a little-endian int32.
func (c *Cursor) Int32() (int32, error) {
	v, err := c.Uint32()
	return int32(v), err
}

// ULEB128 reads an unsigned LEB128 value of at most five bytes.
func (c *Cursor) ULEB128() (uint32, error) {
	var result uint32
	for i := 0; i < 5; i++ {
		b, err := c.Uint8()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7f) << (7 * i)
		if b&0x80 == 0 {
			return result, nil
		}
	}
	return 0, fmt.Errorf("artifact: uleb128 at %d exceeds 5 bytes", c.pos-5)
}

// Uint32At reads a little-endian uint32 at an absolute offset.
func Uint32At(data []byte, off int) (uint32, error) {
	if off < 0 || off+4 > len(data) {
		return 0, fmt.Errorf("%w: u32 at %d, length %d", ErrTruncated, off, len(data))
	}
	return binary.LittleEndian.Uint32(data[off:]), nil
}

// RoundUp rounds x up to a multiple of n, which must be a power of two.
func RoundUp(x, n int64) int64 {
	return (x + n - 1) &^ (n - 1)
}
