package formatter

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oatdump/pkg/model"
	"github.com/oatdump/pkg/utils"
)

func TestLogSummary_Image(t *testing.T) {
	var buf bytes.Buffer
	LogSummary(&model.DumpSummary{
		ArtifactPath: "/data/boot.art",
		Kind:         model.ArtifactKindImage,
		Checksum:     0xabcdef01,
		OatLocation:  "/system/framework/boot.oat",
		Image: &model.ImageStats{
			FileBytes:   256,
			ObjectBytes: 200,
			ObjectCount: 7,
			Descriptors: []model.DescriptorStat{
				{Descriptor: "[B", Bytes: 40, Count: 2},
				{Descriptor: "Ljava/lang/String;", Bytes: 160, Count: 5},
			},
		},
	}, utils.NewDefaultLogger(utils.LevelDebug, &buf))

	out := buf.String()
	assert.Contains(t, out, "Artifact:  /data/boot.art (image)")
	assert.Contains(t, out, "Checksum:  abcdef01")
	assert.Contains(t, out, "Objects:   7 in 256 bytes")
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("1. Ljava/lang/String;")), bytes.Index(buf.Bytes(), []byte("2. [B")))
	assert.Contains(t, out, "/system/framework/boot.oat NOT FOUND")
}

func TestLogSummary_Oat(t *testing.T) {
	var buf bytes.Buffer
	LogSummary(&model.DumpSummary{
		ArtifactPath: "core.oat",
		Kind:         model.ArtifactKindOat,
		Oat: &model.OatStats{DexFiles: 2, MissingDexFiles: 1, Classes: 9,
			Methods: model.MethodStats{ManagedCodeBytes: 64, DexInstructionBytes: 32}},
	}, utils.NewDefaultLogger(utils.LevelInfo, &buf))

	assert.Contains(t, buf.String(), "Dex files: 2 (1 not found)")
	assert.Contains(t, buf.String(), "Code:      64 bytes, expansion 2.00")
}

func TestLogSummary_Nil(t *testing.T) {
	var buf bytes.Buffer
	LogSummary(nil, utils.NewDefaultLogger(utils.LevelInfo, &buf))
	assert.Empty(t, buf.String())
}

func TestSummaryFields(t *testing.T) {
	fields := SummaryFields(&model.DumpSummary{
		ArtifactPath: "core.oat",
		Kind:         model.ArtifactKindOat,
		Checksum:     7,
		Oat:          &model.OatStats{Classes: 3, Methods: model.MethodStats{ManagedCodeBytes: 10, NativeToManagedCodeBytes: 2}},
	})
	assert.Equal(t, "oat", fields["kind"])
	assert.Equal(t, int64(3), fields["classes"])
	assert.Equal(t, int64(12), fields["code_bytes"])
	assert.NotContains(t, fields, "object_count")
}
