package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	t.Run("maps contents", func(t *testing.T) {
		path := filepath.Join(dir, "boot.oat")
		content := []byte("oat\n007\x00payload")
		require.NoError(t, os.WriteFile(path, content, 0644))

		m, err := Open(path)
		require.NoError(t, err)
		defer m.Close()

		assert.Equal(t, path, m.Path())
		assert.Equal(t, len(content), m.Len())
		assert.Equal(t, content, m.Bytes())
		assert.NoError(t, m.Close())
		assert.NoError(t, m.Close(), "second close is a no-op")
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(dir, "empty.art")
		require.NoError(t, os.WriteFile(path, nil, 0644))

		m, err := Open(path)
		require.NoError(t, err)
		assert.Equal(t, 0, m.Len())
		assert.NoError(t, m.Close())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Open(filepath.Join(dir, "absent.art"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, os.ErrNotExist))
	})

	t.Run("directory", func(t *testing.T) {
		_, err := Open(dir)
		assert.Error(t, err)
	})
}

func TestCursor(t *testing.T) {
	data := []byte{
		0x78, 0x56, 0x34, 0x12, // u32
		0xfe, 0xff, 0xff, 0xff, // i32 -2
		0x34, 0x12, // u16
		0xe5, 0x8e, 0x26, // uleb 624485
		0x7f, // uleb 127
	}
	c := NewCursor(data)

	u32, err := c.Uint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), u32)

	i32, err := c.Int32()
	require.NoError(t, err)
	assert.Equal(t, int32(-2), i32)

	u16, err := c.Uint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(0x1234), u16)

	leb, err := c.ULEB128()
	require.NoError(t, err)
	assert.Equal(t, uint32(624485), leb)

	leb, err = c.ULEB128()
	require.NoError(t, err)
	assert.Equal(t, uint32(127), leb)

	assert.Equal(t, 0, c.Remaining())
	_, err = c.Uint8()
	assert.True(t, errors.Is(err, ErrTruncated))
}

func TestCursor_BytesAndSeek(t *testing.T) {
	data := []byte("abcdef")
	c, err := NewCursorAt(data, 2)
	require.NoError(t, err)

	b, err := c.Bytes(3)
	require.NoError(t, err)
	assert.Equal(t, "cde", string(b))
	assert.Equal(t, 5, c.Pos())

	_, err = c.Bytes(2)
	assert.True(t, errors.Is(err, ErrTruncated))

	assert.Error(t, c.Seek(7))
	_, err = NewCursorAt(data, -1)
	assert.Error(t, err)
}

func TestCursor_ULEB128TooLong(t *testing.T) {
	c := NewCursor([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x01})
	_, err := c.ULEB128()
	assert.Error(t, err)
}

func TestUint32At(t *testing.T) {
	data := []byte{0, 0, 1, 0, 0, 0}
	v, err := Uint32At(data, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), v)

	_, err = Uint32At(data, 3)
	assert.True(t, errors.Is(err, ErrTruncated))
}

func TestRoundUp(t *testing.T) {
	tests := []struct{ x, n, want int64 }{
		{0, 8, 0},
		{1, 8, 8},
		{8, 8, 8},
		{28, 8, 32},
		{33, 8, 40},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RoundUp(tt.x, tt.n))
	}
}

func TestFromBytes(t *testing.T) {
	m := FromBytes("/system/framework/core.jar", []byte{1, 2})
	assert.Equal(t, 2, m.Len())
	assert.NoError(t, m.Close())
}
