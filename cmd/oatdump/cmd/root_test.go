package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oatdump/internal/testutil"
	apperrors "github.com/oatdump/pkg/errors"
	"github.com/oatdump/pkg/model"
)

const (
	coreLocation = "/system/framework/core.jar"
	bootOat      = "/system/framework/boot.oat"
)

type sandbox struct {
	dir    string
	prefix string
	config string
}

// newSandbox lays out a host sysroot holding core.jar and a config file
// that resolves from the real root and records into a private database.
func newSandbox(t *testing.T) *sandbox {
	dir := t.TempDir()
	s := &sandbox{dir: dir, prefix: filepath.Join(dir, "sysroot")}

	require.NoError(t, os.MkdirAll(filepath.Join(s.prefix, "system/framework"), 0o755))
	testutil.WriteFile(t, filepath.Join(s.prefix, "system/framework"), "core.jar", sampleDex())

	cfg := fmt.Sprintf(`
storage:
  type: local
  local_path: /
database:
  type: sqlite
  path: %s
log:
  level: error
`, filepath.Join(dir, "history.db"))
	s.config = testutil.WriteFile(t, dir, "oatdump.yaml", []byte(cfg))
	return s
}

func (s *sandbox) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root, a := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", s.config}, args...))
	err := root.ExecuteContext(context.Background())
	a.close()
	return out.String(), errOut.String(), err
}

func sampleDex() []byte {
	return testutil.BuildDex(testutil.DexClass{
		Descriptor: "Ljava/lang/Thread;",
		DirectMethods: []testutil.DexMethod{
			{Name: "<init>", Return: "V", InsnsUnits: 3},
		},
	})
}

func sampleOat() []byte {
	return testutil.BuildOat(testutil.OatSpec{
		InstructionSet: testutil.ISAX86,
		DexFiles: []testutil.OatDexFile{{
			Location: coreLocation,
			Checksum: 0xfeedface,
			Classes: []testutil.OatClass{{
				Status: testutil.ClassStatusInitialized,
				Methods: []testutil.OatMethod{{
					Code:         make([]byte, 12),
					FrameSize:    16,
					MappingTable: make([]byte, 4),
					GCMap:        make([]byte, 2),
				}},
			}},
		}},
	})
}

func sampleImage(oatChecksum uint32) []byte {
	b := testutil.NewImageBuilder(0x70000000)
	b.NewString("hello")
	b.StandardRoots(bootOat)
	b.OatChecksum = oatChecksum
	b.OatBegin = 0x60000000
	b.OatEnd = 0x60010000
	return b.Bytes()
}

func TestRoot_RequiresArtifact(t *testing.T) {
	s := newSandbox(t)

	tests := []struct {
		name string
		args []string
	}{
		{"Neither", nil},
		{"Both", []string{"--oat-file", "a.oat", "--image", "b.art"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := s.run(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetErrorCode(err))
		})
	}
}

func TestRoot_OatFile(t *testing.T) {
	s := newSandbox(t)
	path := testutil.WriteFile(t, s.dir, "core.oat", sampleOat())

	out, _, err := s.run(t, "--oat-file="+path, "--host-prefix="+s.prefix)
	require.NoError(t, err)

	assert.Contains(t, out, "MAGIC:\noat\n007\n")
	assert.Contains(t, out, "location: "+coreLocation+" ("+s.prefix+coreLocation+")")
	assert.Contains(t, out, "0: Ljava/lang/Thread;")
	assert.Contains(t, out, "\t\tSIZE Code=6 GC=2 Mapping=4\n")
	assert.NotContains(t, out, "NOT FOUND")
}

func TestOatCmd_MissingDexContinues(t *testing.T) {
	s := newSandbox(t)
	path := testutil.WriteFile(t, s.dir, "core.oat", sampleOat())

	out, _, err := s.run(t, "oat", path, "--host-prefix", filepath.Join(s.dir, "elsewhere"))
	require.NoError(t, err)
	assert.Contains(t, out, "NOT FOUND\n")
	assert.Contains(t, out, "OAT STATS:")
}

func TestOatCmd_InvalidArtifact(t *testing.T) {
	s := newSandbox(t)
	path := testutil.WriteFile(t, s.dir, "junk.oat", []byte("not an oat file at all"))

	_, _, err := s.run(t, "oat", "--oat-file", path)
	require.Error(t, err)
	assert.True(t, apperrors.IsInvalidArtifact(err))
}

func TestImageCmd(t *testing.T) {
	t.Run("OatNotFound", func(t *testing.T) {
		s := newSandbox(t)
		path := testutil.WriteFile(t, s.dir, "boot.art", sampleImage(0))

		out, _, err := s.run(t, "image", path, "--host-prefix", s.prefix)
		require.NoError(t, err)
		assert.Contains(t, out, "MAGIC:\nart\n002\n")
		assert.Contains(t, out, "STATS:\n")
		assert.Contains(t, out, "OAT LOCATION:\n"+bootOat+" ("+s.prefix+bootOat+")\n")
		assert.Contains(t, out, "NOT FOUND\n")
	})

	t.Run("WithOat", func(t *testing.T) {
		s := newSandbox(t)
		oatData := sampleOat()
		testutil.WriteFile(t, filepath.Join(s.prefix, "system/framework"), "boot.oat", oatData)
		path := testutil.WriteFile(t, s.dir, "boot.art", sampleImage(testutil.OatChecksumOf(oatData)))

		out, _, err := s.run(t, "image", "--image", path, "--host-prefix", s.prefix)
		require.NoError(t, err)
		assert.Contains(t, out, "OAT STATS:")
		assert.Contains(t, out, "BEGIN:\n0x60000000\n")
		assert.NotContains(t, out, "WARNING: oat checksum")
	})
}

func TestDump_SummaryAndRecord(t *testing.T) {
	s := newSandbox(t)
	path := testutil.WriteFile(t, s.dir, "core.oat", sampleOat())
	summaryPath := filepath.Join(s.dir, "summary.json")

	_, _, err := s.run(t, "oat", path, "--host-prefix", s.prefix, "--summary-json", summaryPath, "--record")
	require.NoError(t, err)

	raw, err := os.ReadFile(summaryPath)
	require.NoError(t, err)
	var summary model.DumpSummary
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, model.ArtifactKindOat, summary.Kind)
	assert.Equal(t, path, summary.ArtifactPath)
	require.NotNil(t, summary.Oat)
	assert.Equal(t, int64(1), summary.Oat.Classes)

	out, _, err := s.run(t, "history", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ARTIFACT")
	assert.Contains(t, out, path)

	out, _, err = s.run(t, "history", "--json")
	require.NoError(t, err)
	var listed []*model.DumpSummary
	require.NoError(t, json.Unmarshal([]byte(out), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, int64(1), listed[0].Oat.Classes)
}

func TestHistory_Empty(t *testing.T) {
	s := newSandbox(t)
	out, _, err := s.run(t, "history")
	require.NoError(t, err)
	assert.Equal(t, "no dumps recorded\n", out)
}

func TestDump_CompressedOutputAndPublish(t *testing.T) {
	s := newSandbox(t)
	path := testutil.WriteFile(t, s.dir, "core.oat", sampleOat())
	reportPath := filepath.Join(s.dir, "report.txt.zst")
	publishKey := filepath.Join(s.dir, "published", "report.txt.zst")
	require.NoError(t, os.MkdirAll(filepath.Dir(publishKey), 0o755))

	out, _, err := s.run(t, "oat", path,
		"--host-prefix", s.prefix,
		"--output", reportPath,
		"--compress", "zstd",
		"--publish", publishKey)
	require.NoError(t, err)
	assert.Empty(t, out)

	compressed, err := os.ReadFile(reportPath)
	require.NoError(t, err)
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()
	text, err := dec.DecodeAll(compressed, nil)
	require.NoError(t, err)
	assert.Contains(t, string(text), "OAT STATS:")

	published, err := os.ReadFile(publishKey)
	require.NoError(t, err)
	assert.Equal(t, compressed, published)
}

func TestDump_InvalidCompress(t *testing.T) {
	s := newSandbox(t)
	_, _, err := s.run(t, "oat", "x.oat", "--compress", "lz4")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetErrorCode(err))
}

func TestVersionCmd(t *testing.T) {
	s := newSandbox(t)
	out, _, err := s.run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "version dev")
	assert.Contains(t, out, "Go Version:")
}

func TestArtifactPath(t *testing.T) {
	tests := []struct {
		name    string
		flag    string
		args    []string
		want    string
		wantErr bool
	}{
		{"Flag", "a.oat", nil, "a.oat", false},
		{"Arg", "", []string{"b.oat"}, "b.oat", false},
		{"Both", "a.oat", []string{"b.oat"}, "", true},
		{"Neither", "", nil, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := artifactPath(tt.flag, tt.args, "--oat-file")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
