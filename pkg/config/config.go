// Package config provides configuration management for oatdump.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	apperrors "github.com/oatdump/pkg/errors"
)

// EnvPrefix prefixes environment overrides, e.g. OATDUMP_DUMP_HOST_PREFIX.
const EnvPrefix = "OATDUMP"

// Config holds all configuration for the application.
type Config struct {
	Dump     DumpConfig     `mapstructure:"dump"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Log      LogConfig      `mapstructure:"log"`
}

// DumpConfig holds options that shape a single dump run.
type DumpConfig struct {
	HostPrefix  string `mapstructure:"host_prefix"`
	BootImage   string `mapstructure:"boot_image"`
	Output      string `mapstructure:"output"`
	Compress    string `mapstructure:"compress"` // none, gzip or zstd
	Disassemble bool   `mapstructure:"disassemble"`
	SummaryJSON string `mapstructure:"summary_json"`
	Record      bool   `mapstructure:"record"`
	Publish     string `mapstructure:"publish"` // storage key for the rendered report
	Timing      bool   `mapstructure:"timing"`
}

// StorageConfig selects the backend companion artifacts are resolved from.
type StorageConfig struct {
	Type      string `mapstructure:"type"` // cos or local
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	SecretID  string `mapstructure:"secret_id"`
	SecretKey string `mapstructure:"secret_key"`
	Domain    string `mapstructure:"domain"`     // e.g., "myqcloud.com"
	Scheme    string `mapstructure:"scheme"`     // e.g., "https" or "http"
	LocalPath string `mapstructure:"local_path"` // root for local lookups
}

// DatabaseConfig holds the dump history database configuration.
type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Type     string `mapstructure:"type"` // sqlite, mysql or postgres
	Path     string `mapstructure:"path"` // sqlite file
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	MaxConns int    `mapstructure:"max_conns"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// Load reads configuration from configPath, or from oatdump.yaml in the
// usual places when configPath is empty. A missing file is not an error;
// defaults and OATDUMP_* environment variables still apply.
func Load(configPath string) (*Config, error) {
	v := newViper()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("oatdump")
		v.SetConfigType("yaml")
		for _, dir := range searchPath {
			v.AddConfigPath(dir)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, apperrors.Wrap(apperrors.CodeConfigError, "read config", err)
		}
	}
	return decode(v)
}

// LoadFromReader loads configuration from raw content.
func LoadFromReader(configType string, content []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType(configType)
	if err := v.ReadConfig(bytes.NewReader(content)); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "parse "+configType+" config", err)
	}
	return decode(v)
}

var searchPath = []string{".", "$HOME/.config/oatdump", "/etc/oatdump"}

var defaults = map[string]interface{}{
	"dump.compress": "none",

	"storage.type":       "local",
	"storage.local_path": "/",

	"database.type":      "sqlite",
	"database.path":      "oatdump.db",
	"database.host":      "localhost",
	"database.port":      5432,
	"database.max_conns": 4,

	"log.level":  "info",
	"log.format": "text",
}

// boolKeys and stringKeys have zero defaults but are registered so that
// AutomaticEnv can override them when no config file mentions them.
var (
	boolKeys   = []string{"dump.disassemble", "dump.record", "dump.timing", "database.enabled"}
	stringKeys = []string{"dump.host_prefix", "dump.boot_image", "dump.output", "dump.summary_json", "dump.publish"}
)

func newViper() *viper.Viper {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	for _, k := range boolKeys {
		v.SetDefault(k, false)
	}
	for _, k := range stringKeys {
		v.SetDefault(k, "")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeConfigError, "decode config", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every problem found in c as one CONFIG_ERROR.
// Storage settings are checked when the backend is created.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch c.Dump.Compress {
	case "", "none", "gzip", "zstd":
	default:
		add("unsupported compression %q", c.Dump.Compress)
	}

	if c.Database.Enabled || c.Dump.Record {
		switch strings.ToLower(c.Database.Type) {
		case "", "sqlite":
			if c.Database.Path == "" {
				add("sqlite database path is required")
			}
		case "mysql", "postgres", "postgresql":
			if c.Database.Host == "" {
				add("database host is required")
			}
		default:
			add("unsupported database type %q", c.Database.Type)
		}
	}

	switch c.Log.Format {
	case "", "text", "json":
	default:
		add("unsupported log format %q", c.Log.Format)
	}

	if len(problems) > 0 {
		return apperrors.New(apperrors.CodeConfigError, "invalid config: "+strings.Join(problems, "; "))
	}
	return nil
}
