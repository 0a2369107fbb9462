package image

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oatdump/internal/testutil"
	apperrors "github.com/oatdump/pkg/errors"
)

func TestReadHeader(t *testing.T) {
	b := testutil.NewImageBuilder(0x70000000)
	b.OatChecksum = 0x1234abcd
	b.OatBegin = 0x71000000
	b.OatEnd = 0x71800000
	b.StandardRoots("/system/framework/boot.oat")

	h, err := ReadHeader(b.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "art\n002", h.MagicString())
	assert.Equal(t, uint32(0x70000000), h.ImageBegin)
	assert.Equal(t, uint32(0x1234abcd), h.OatChecksum)
	assert.Equal(t, uint32(0x71000000), h.OatBegin)
	assert.Equal(t, uint32(0x71800000), h.OatEnd)
	assert.Equal(t, b.Roots, h.ImageRoots)
}

func TestReadHeader_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"short", []byte("art\n002\x00")},
		{"oat magic", append([]byte("oat\n007\x00"), make([]byte, 24)...)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadHeader(tt.data)
			require.Error(t, err)
			assert.True(t, apperrors.IsInvalidArtifact(err))
		})
	}
}

func TestObjectsOffset(t *testing.T) {
	assert.Equal(t, int64(32), ObjectsOffset())
}

func TestRootString(t *testing.T) {
	assert.Equal(t, "kJniStubArray", RootJniStubArray.String())
	assert.Equal(t, "kClassRoots", RootClassRoots.String())
	assert.Equal(t, "Root(11)", NumRoots.String())
	assert.Len(t, CalleeSaveRoots, 3)
}
