package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/oatdump/pkg/errors"
)

func TestLoad_DefaultValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "oatdump.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("log:\n  level: debug\n"), 0644))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "none", cfg.Dump.Compress)
	assert.Equal(t, "local", cfg.Storage.Type)
	assert.Equal(t, "/", cfg.Storage.LocalPath)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.False(t, cfg.Database.Enabled)
}

func TestLoad_CustomValues(t *testing.T) {
	dir := t.TempDir()
	configFile := filepath.Join(dir, "oatdump.yaml")
	content := `
dump:
  host_prefix: /out/target/product/generic
  boot_image: /system/framework/boot.art
  compress: zstd
  disassemble: true
storage:
  type: cos
  bucket: artifacts
  region: ap-guangzhou
database:
  enabled: true
  type: mysql
  host: db.example.com
  port: 3306
log:
  format: json
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	cfg, err := Load(configFile)
	require.NoError(t, err)

	assert.Equal(t, "/out/target/product/generic", cfg.Dump.HostPrefix)
	assert.Equal(t, "/system/framework/boot.art", cfg.Dump.BootImage)
	assert.Equal(t, "zstd", cfg.Dump.Compress)
	assert.True(t, cfg.Dump.Disassemble)
	assert.Equal(t, "cos", cfg.Storage.Type)
	assert.Equal(t, "artifacts", cfg.Storage.Bucket)
	assert.Equal(t, "mysql", cfg.Database.Type)
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("OATDUMP_DUMP_HOST_PREFIX", "/root")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "/root", cfg.Dump.HostPrefix)
}

func TestLoadFromReader(t *testing.T) {
	cfg, err := LoadFromReader("yaml", []byte("dump:\n  output: /tmp/report.txt\n"))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/report.txt", cfg.Dump.Output)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"bad compression", func(c *Config) { c.Dump.Compress = "lz4" }, "unsupported compression"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "unsupported log format"},
		{"record needs sqlite path", func(c *Config) {
			c.Dump.Record = true
			c.Database.Path = ""
		}, "sqlite database path is required"},
		{"unsupported database", func(c *Config) {
			c.Database.Enabled = true
			c.Database.Type = "oracle"
		}, "unsupported database type"},
		{"disabled database is not checked", func(c *Config) { c.Database.Type = "oracle" }, ""},
		{"postgresql alias", func(c *Config) {
			c.Database.Enabled = true
			c.Database.Type = "postgresql"
		}, ""},
		{"every problem reported", func(c *Config) {
			c.Dump.Compress = "lz4"
			c.Log.Format = "xml"
		}, `unsupported compression "lz4"; unsupported log format "xml"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromReader("yaml", []byte("{}"))
			require.NoError(t, err)
			tt.mutate(cfg)

			err = cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeConfigError))
		})
	}
}
