package dump

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oatdump/internal/dex"
	"github.com/oatdump/internal/oat"
	"github.com/oatdump/internal/testutil"
	apperrors "github.com/oatdump/pkg/errors"
)

func walkSample(t *testing.T, oatData []byte, disassemble bool) ([]*ClassEntry, error) {
	t.Helper()
	f, err := oat.Open(oatData, oatBegin)
	require.NoError(t, err)
	d, err := dex.Open(sampleDex(), coreLocation)
	require.NoError(t, err)

	var classes []*ClassEntry
	err = NewClassWalker(f.Header().InstructionSet, disassemble).Walk(context.Background(), d, f.DexFiles()[0],
		func(c *ClassEntry) error {
			classes = append(classes, c)
			return nil
		})
	return classes, err
}

func TestClassWalker_Walk(t *testing.T) {
	classes, err := walkSample(t, sampleOat(sampleOatMethods()), false)
	require.NoError(t, err)
	require.Len(t, classes, 2)

	foo := classes[0]
	assert.Equal(t, "Lcom/example/Foo;", foo.Descriptor)
	assert.Equal(t, oat.StatusInitialized, foo.Status)
	require.Len(t, foo.Methods, 3)

	native := foo.Methods[0]
	assert.Equal(t, "nativeInit", native.Name)
	assert.Equal(t, "()V", native.Signature)
	assert.Equal(t, MethodNative, native.Kind)
	assert.Equal(t, uint32(8), native.CodeSize)
	assert.Equal(t, uint32(4), native.InvokeStubSize)
	assert.Zero(t, native.GcMap)
	assert.Zero(t, native.DexInstructionBytes)

	ctor := foo.Methods[1]
	assert.Equal(t, uint32(1), ctor.Ordinal)
	assert.Equal(t, "<init>", ctor.Name)
	assert.Equal(t, MethodManaged, ctor.Kind)
	assert.Equal(t, oatBegin+ctor.CodeOffset, ctor.Code)
	assert.Equal(t, oatBegin+ctor.GcMapOffset, ctor.GcMap)
	assert.Equal(t, uint32(16), ctor.CodeSize)
	assert.Equal(t, uint32(4), ctor.GcMapLen)
	assert.Equal(t, uint32(8), ctor.MappingTableLen)
	assert.Equal(t, uint32(32), ctor.FrameSizeInBytes)
	assert.Equal(t, uint32(0x4000), ctor.CoreSpillMask)
	assert.Equal(t, int64(8), ctor.DexInstructionBytes)
	assert.Nil(t, ctor.Disassembly)

	wait := foo.Methods[2]
	assert.Equal(t, "wait", wait.Name)
	assert.Equal(t, "(JI)V", wait.Signature)
	assert.Zero(t, wait.InvokeStub)
	assert.Equal(t, int64(20), wait.DexInstructionBytes)

	marker := classes[1]
	assert.Equal(t, "Lcom/example/Marker;", marker.Descriptor)
	assert.Equal(t, oat.StatusVerified, marker.Status)
	assert.Empty(t, marker.Methods)
}

func TestClassWalker_Disassemble(t *testing.T) {
	classes, err := walkSample(t, sampleOat(sampleOatMethods()), true)
	require.NoError(t, err)

	for _, m := range classes[0].Methods {
		require.NotEmpty(t, m.Disassembly, m.Name)
		assert.Equal(t, m.Code, m.Disassembly[0].Addr)
	}
}

func TestClassWalker_NativeMethodWithGcMap(t *testing.T) {
	methods := sampleOatMethods()
	methods[0].GCMap = make([]byte, 4)

	_, err := walkSample(t, sampleOat(methods), false)
	require.Error(t, err)
	assert.True(t, apperrors.IsConsistencyFault(err))
	assert.Contains(t, err.Error(), "Lcom/example/Foo;")
}

func TestClassWalker_ManagedMethodWithoutMappingTable(t *testing.T) {
	methods := sampleOatMethods()
	methods[2].MappingTable = nil

	_, err := walkSample(t, sampleOat(methods), false)
	assert.True(t, apperrors.IsConsistencyFault(err))
}

func TestClassWalker_ClassCountMismatch(t *testing.T) {
	data := testutil.BuildOat(testutil.OatSpec{
		InstructionSet: testutil.ISAX86,
		DexFiles: []testutil.OatDexFile{{
			Location: coreLocation,
			Classes:  []testutil.OatClass{{Methods: sampleOatMethods()}},
		}},
	})

	_, err := walkSample(t, data, false)
	assert.True(t, apperrors.IsInvalidArtifact(err))
}

func TestClassWalker_Cancelled(t *testing.T) {
	f, err := oat.Open(sampleOat(sampleOatMethods()), 0)
	require.NoError(t, err)
	d, err := dex.Open(sampleDex(), coreLocation)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewClassWalker(oat.ISAX86, false).Walk(ctx, d, f.DexFiles()[0], func(*ClassEntry) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
