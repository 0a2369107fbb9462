package dex

import (
	"archive/zip"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oatdump/internal/testutil"
	apperrors "github.com/oatdump/pkg/errors"
)

func sampleDex() []byte {
	return testutil.BuildDex(
		testutil.DexClass{
			Descriptor:   "Lcom/example/Foo;",
			StaticFields: []testutil.DexField{{Name: "COUNT", Type: "I", AccessFlags: AccStatic}},
			InstanceFields: []testutil.DexField{
				{Name: "name", Type: "Ljava/lang/String;"},
				{Name: "size", Type: "J"},
			},
			DirectMethods: []testutil.DexMethod{
				{Name: "nativeInit", Return: "V", AccessFlags: AccNative | AccStatic},
				{Name: "<init>", Return: "V", AccessFlags: AccConstructor, InsnsUnits: 4},
			},
			VirtualMethods: []testutil.DexMethod{
				{Name: "wait", Return: "V", Params: []string{"J", "I"}, InsnsUnits: 10},
			},
		},
		testutil.DexClass{Descriptor: "Lcom/example/Marker;", AccessFlags: AccInterface | AccAbstract, NoData: true},
	)
}

func TestOpen(t *testing.T) {
	f, err := Open(sampleDex(), "/system/framework/core.jar")
	require.NoError(t, err)

	assert.Equal(t, "/system/framework/core.jar", f.Location())
	assert.Equal(t, "035", f.Version())
	assert.Equal(t, 2, f.NumClassDefs())
}

func TestOpen_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"too short", []byte("dex\n035\x00")},
		{"bad magic", append([]byte("xed\n035\x00"), make([]byte, 0x70)...)},
		{"bad endian tag", func() []byte {
			d := sampleDex()
			d[40] = 0x78
			d[41] = 0x56
			d[42] = 0x34
			d[43] = 0x13
			return d
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Open(tt.data, "x.dex")
			require.Error(t, err)
			assert.True(t, apperrors.IsInvalidArtifact(err))
		})
	}
}

func TestFile_ClassesAndMethods(t *testing.T) {
	f, err := Open(sampleDex(), "core.dex")
	require.NoError(t, err)

	cd, err := f.ClassDef(0)
	require.NoError(t, err)
	desc, err := f.TypeDescriptor(cd.ClassIdx)
	require.NoError(t, err)
	assert.Equal(t, "Lcom/example/Foo;", desc)

	it, err := f.ClassData(cd)
	require.NoError(t, err)
	require.NotNil(t, it)
	assert.Equal(t, uint32(1), it.NumStaticFields())
	assert.Equal(t, uint32(2), it.NumInstanceFields())
	assert.Equal(t, uint32(2), it.NumDirectMethods())
	assert.Equal(t, uint32(1), it.NumVirtualMethods())

	var fields []uint32
	for it.HasNextStaticField() || it.HasNextInstanceField() {
		require.NoError(t, it.Next())
		fields = append(fields, it.Member().Index)
	}
	assert.Equal(t, []uint32{0, 1, 2}, fields)

	type decoded struct {
		name, sig string
		flags     uint32
		insns     uint32
	}
	var methods []decoded
	for it.HasNextDirectMethod() || it.HasNextVirtualMethod() {
		require.NoError(t, it.Next())
		m := it.Member()
		name, err := f.MethodName(m.Index)
		require.NoError(t, err)
		sig, err := f.MethodSignature(m.Index)
		require.NoError(t, err)
		insns, err := f.InsnsSizeInCodeUnits(m.CodeOff)
		require.NoError(t, err)
		methods = append(methods, decoded{name, sig, m.AccessFlags, insns})
	}
	assert.False(t, it.HasNext())
	assert.Equal(t, uint32(0), it.Remaining())
	assert.Equal(t, []decoded{
		{"nativeInit", "()V", AccNative | AccStatic, 0},
		{"<init>", "()V", AccConstructor, 4},
		{"wait", "(JI)V", 0, 10},
	}, methods)

	err = it.Next()
	assert.True(t, apperrors.IsConsistencyFault(err))
}

func TestFile_MarkerClassHasNoData(t *testing.T) {
	f, err := Open(sampleDex(), "core.dex")
	require.NoError(t, err)

	cd, err := f.ClassDef(1)
	require.NoError(t, err)
	it, err := f.ClassData(cd)
	require.NoError(t, err)
	assert.Nil(t, it)

	_, err = f.ClassDef(2)
	assert.Error(t, err)
}

func TestFile_IndexBounds(t *testing.T) {
	f, err := Open(sampleDex(), "core.dex")
	require.NoError(t, err)

	_, err = f.StringByIdx(10_000)
	assert.Error(t, err)
	_, err = f.TypeDescriptor(10_000)
	assert.Error(t, err)
	_, err = f.MethodID(10_000)
	assert.Error(t, err)
}

func TestClassDataIterator_Truncated(t *testing.T) {
	// header claims one static field but the entry is cut short
	it, err := NewClassDataIterator([]byte{1, 0, 0, 0, 0x80}, 0)
	require.NoError(t, err)
	assert.True(t, it.HasNextStaticField())
	err = it.Next()
	assert.True(t, apperrors.IsInvalidArtifact(err))
}

func TestClassDataIterator_CountsExceedData(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
	}{
		{"missing entries", []byte{1, 0, 0, 0}},
		// 0xffffffff direct methods plus one virtual method sums to zero in 32 bits
		{"wrapping sum", []byte{0, 0, 0xff, 0xff, 0xff, 0xff, 0x0f, 1, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClassDataIterator(tt.header, 0)
			assert.True(t, apperrors.IsInvalidArtifact(err), "got %v", err)
		})
	}
}

func TestDecodeMUTF8(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want string
	}{
		{"ascii", []byte("hello"), "hello"},
		{"embedded nul", []byte{'a', 0xc0, 0x80, 'b'}, "a\x00b"},
		{"two byte", []byte{0xc3, 0xa9}, "é"},
		{"three byte", []byte{0xe4, 0xb8, 0xad}, "中"},
		{"surrogate pair", []byte{0xed, 0xa0, 0xbd, 0xed, 0xb8, 0x80}, "😀"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeMUTF8(tt.in, 0)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := decodeMUTF8([]byte{0xe4, 0xb8}, 0)
	assert.Error(t, err)
	_, err = decodeMUTF8([]byte{0xff}, 0)
	assert.Error(t, err)
}

func TestOpenLocation_Archive(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("META-INF/MANIFEST.MF")
	require.NoError(t, err)
	_, err = w.Write([]byte("Manifest-Version: 1.0\n"))
	require.NoError(t, err)
	w, err = zw.Create(ClassesEntry)
	require.NoError(t, err)
	_, err = w.Write(sampleDex())
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	f, err := OpenLocation(buf.Bytes(), "/system/framework/core.jar")
	require.NoError(t, err)
	assert.Equal(t, 2, f.NumClassDefs())

	raw, err := OpenLocation(sampleDex(), "core.dex")
	require.NoError(t, err)
	assert.Equal(t, 2, raw.NumClassDefs())
}

func TestOpenLocation_ArchiveWithoutClasses(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err := zw.Create("res/raw.bin")
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	_, err = OpenLocation(buf.Bytes(), "app.apk")
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidArtifact(err))
}
