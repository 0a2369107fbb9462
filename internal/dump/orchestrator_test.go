package dump

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oatdump/internal/testutil"
	apperrors "github.com/oatdump/pkg/errors"
	"github.com/oatdump/pkg/model"
	"github.com/oatdump/pkg/utils"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestDumper(opts Options, loc Locator, r Renderer, timer *utils.Timer) *Dumper {
	return NewDumper(opts, loc, r, WithClock(func() time.Time { return fixedNow }), WithTimer(timer))
}

func phaseNames(timer *utils.Timer) []string {
	var names []string
	for _, p := range timer.GetPhases() {
		names = append(names, p.Name)
	}
	return names
}

func TestDumper_DumpOat(t *testing.T) {
	oatData := sampleOat(sampleOatMethods())
	path := testutil.WriteFile(t, t.TempDir(), "core.oat", oatData)
	loc := &mapLocator{artifacts: map[string][]byte{coreLocation: sampleDex()}}
	r := &recordingRenderer{}
	timer := utils.NewTimer("dump")

	summary, err := newTestDumper(Options{}, loc, r, timer).DumpOat(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, path, summary.ArtifactPath)
	assert.Equal(t, model.ArtifactKindOat, summary.Kind)
	assert.Equal(t, testutil.OatChecksumOf(oatData), summary.Checksum)
	assert.True(t, summary.OatFound)
	assert.Equal(t, fixedNow, summary.CreatedAt)
	require.NotNil(t, summary.Oat)
	assert.Equal(t, int64(2), summary.Oat.Classes)
	assert.Nil(t, summary.Image)
	assert.Equal(t, []string{"map", "decode", "render"}, phaseNames(timer))
}

func TestDumper_DumpImage_OatNotFound(t *testing.T) {
	f := newImageFixture()
	path := testutil.WriteFile(t, t.TempDir(), "boot.art", f.b.Bytes())
	loc := &mapLocator{prefix: "/root", artifacts: map[string][]byte{}}
	r := &recordingRenderer{}

	summary, err := newTestDumper(Options{}, loc, r, nil).DumpImage(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{"/root" + bootOat}, loc.resolved)
	assert.Equal(t, []string{
		"image-header 0x70000000", "objects", "image-stats",
		"oat-location /root" + bootOat, "not-found",
	}, r.events)
	assert.Equal(t, model.ArtifactKindImage, summary.Kind)
	assert.Equal(t, bootOat, summary.OatLocation)
	assert.False(t, summary.OatFound)
	assert.Nil(t, summary.Oat)
	require.NotNil(t, summary.Image)
}

func TestDumper_DumpImage_UnusableOatDegrades(t *testing.T) {
	tests := []struct {
		name string
		loc  *mapLocator
	}{
		{"garbage", &mapLocator{artifacts: map[string][]byte{bootOat: []byte("garbage, not an oat file")}}},
		{"truncated", &mapLocator{artifacts: map[string][]byte{bootOat: sampleOat(sampleOatMethods())[:16]}}},
		{"download error", &mapLocator{errs: map[string]error{
			bootOat: apperrors.New(apperrors.CodeDownloadError, "connection reset"),
		}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newImageFixture()
			path := testutil.WriteFile(t, t.TempDir(), "boot.art", f.b.Bytes())
			r := &recordingRenderer{}

			summary, err := newTestDumper(Options{}, tt.loc, r, nil).DumpImage(context.Background(), path)
			require.NoError(t, err)
			assert.Equal(t, []string{
				"image-header 0x70000000", "objects", "image-stats",
				"oat-location " + bootOat, "not-found",
			}, r.events)
			require.NotNil(t, summary)
			assert.False(t, summary.OatFound)
			assert.Nil(t, summary.Oat)
			require.NotNil(t, summary.Image)
		})
	}
}

func TestDumper_DumpImage_WithOat(t *testing.T) {
	oatData := sampleOat(sampleOatMethods())
	f := newImageFixture()
	f.b.OatChecksum = testutil.OatChecksumOf(oatData)
	path := testutil.WriteFile(t, t.TempDir(), "boot.art", f.b.Bytes())
	loc := &mapLocator{prefix: "/root", artifacts: map[string][]byte{
		"/root" + bootOat:      oatData,
		"/root" + coreLocation: sampleDex(),
	}}
	r := &recordingRenderer{}
	timer := utils.NewTimer("dump")

	summary, err := newTestDumper(Options{}, loc, r, timer).DumpImage(context.Background(), path)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"image-header 0x70000000", "objects", "image-stats",
		"oat-location /root" + bootOat,
		"oat-header X86 0x60000000", "dex /root" + coreLocation, "oat-stats",
	}, r.events)
	assert.Zero(t, r.mismatch)
	assert.True(t, summary.OatFound)
	assert.Equal(t, f.b.OatChecksum, summary.Checksum)
	require.NotNil(t, summary.Oat)
	assert.Equal(t, int64(48), summary.Oat.Methods.ManagedCodeBytes)
	assert.Equal(t, []string{"map", "decode", "walk", "render"}, phaseNames(timer))
}

func TestDumper_DumpImage_ChecksumMismatch(t *testing.T) {
	oatData := sampleOat(sampleOatMethods())
	f := newImageFixture()
	f.b.OatChecksum = 0xdeadbeef
	path := testutil.WriteFile(t, t.TempDir(), "boot.art", f.b.Bytes())
	loc := &mapLocator{artifacts: map[string][]byte{bootOat: oatData, coreLocation: sampleDex()}}
	r := &recordingRenderer{}

	summary, err := newTestDumper(Options{}, loc, r, nil).DumpImage(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, [2]uint32{0xdeadbeef, testutil.OatChecksumOf(oatData)}, r.mismatch)
	assert.True(t, summary.OatFound)
}

func TestDumper_DumpImage_AppOnBootImage(t *testing.T) {
	dir := t.TempDir()
	boot := newImageFixture()
	bootPath := testutil.WriteFile(t, dir, "boot.art", boot.b.Bytes())

	app := testutil.NewAppImageBuilder(appBegin, boot.b)
	app.NewObject(boot.b.ObjectClass, 24)
	app.StandardRoots("/data/app/base.oat")
	appData := app.Bytes()
	appPath := testutil.WriteFile(t, dir, "app.art", appData)

	r := &recordingRenderer{}
	summary, err := newTestDumper(Options{BootImage: bootPath}, &mapLocator{}, r, nil).
		DumpImage(context.Background(), appPath)
	require.NoError(t, err)

	assert.Equal(t, "/data/app/base.oat", summary.OatLocation)
	assert.Equal(t, int64(len(appData)), summary.Image.FileBytes)
	for _, o := range r.objects {
		assert.GreaterOrEqual(t, o.Addr, uint32(appBegin))
	}
}

func TestDumper_DumpImage_BootImageIsTarget(t *testing.T) {
	dir := t.TempDir()
	f := newImageFixture()
	testutil.WriteFile(t, dir, "boot.art", f.b.Bytes())
	t.Chdir(dir)

	r := &recordingRenderer{}
	summary, err := newTestDumper(Options{BootImage: "boot.art"}, &mapLocator{}, r, nil).
		DumpImage(context.Background(), filepath.Join(dir, "boot.art"))
	require.NoError(t, err)
	assert.Equal(t, bootOat, summary.OatLocation)
}

func TestDumper_InvalidArtifacts(t *testing.T) {
	dir := t.TempDir()
	garbage := testutil.WriteFile(t, dir, "garbage.bin", []byte("this is not an artifact at all"))
	missing := filepath.Join(dir, "missing.oat")
	d := newTestDumper(Options{}, &mapLocator{}, &recordingRenderer{}, nil)

	tests := []struct {
		name string
		run  func() error
	}{
		{"oat garbage", func() error { _, err := d.DumpOat(context.Background(), garbage); return err }},
		{"image garbage", func() error { _, err := d.DumpImage(context.Background(), garbage); return err }},
		{"missing oat", func() error { _, err := d.DumpOat(context.Background(), missing); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, apperrors.IsInvalidArtifact(err), "got %v", err)
		})
	}
}
