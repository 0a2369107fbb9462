package utils

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected LogLevel
	}{
		{"debug", LevelDebug},
		{"DEBUG", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"ERROR", LevelError},
		{"unknown", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLogLevel(tt.input))
		})
	}
}

func TestLogLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "UNKNOWN", LogLevel(99).String())
}

func TestDefaultLogger_FilterByLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewDefaultLogger(LevelWarn, buf)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	output := buf.String()
	assert.NotContains(t, output, "debug message")
	assert.NotContains(t, output, "info message")
	assert.Contains(t, output, `level=warning msg="warn message"`)
	assert.Contains(t, output, `level=error msg="error message"`)
}

func TestDefaultLogger_Fields(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewDefaultLogger(LevelInfo, buf)

	logger.WithField("artifact", "boot.oat").
		WithFields(map[string]interface{}{"dex": 2}).
		Info("walking %d classes", 17)

	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(line, "time="))
	assert.Contains(t, line, `level=info msg="walking 17 classes" artifact=boot.oat dex=2`)
}

func TestDefaultLogger_SetLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewDefaultLogger(LevelInfo, buf)
	child := logger.WithField("phase", "walk")

	child.Debug("debug 1")
	assert.NotContains(t, buf.String(), "debug 1")

	logger.SetLevel(LevelDebug)
	child.Debug("debug 2")
	assert.Contains(t, buf.String(), "debug 2")
}

func TestLogrusLogger_JSON(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := NewLogger(LevelInfo, FormatJSON, buf)

	logger.Debug("hidden")
	logger.WithField("space", "boot.art").Warn("checksum mismatch %08x", 0xdeadbeef)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warning", entry["level"])
	assert.Equal(t, "checksum mismatch deadbeef", entry["msg"])
	assert.Equal(t, "boot.art", entry["space"])
}

func TestNewLogger_TextFallback(t *testing.T) {
	buf := &bytes.Buffer{}
	NewLogger(LevelInfo, "yaml", buf).Info("plain")
	assert.Contains(t, buf.String(), `msg=plain`)
}

func TestNullLogger(t *testing.T) {
	logger := &NullLogger{}
	logger.Info("info")
	assert.Equal(t, logger, logger.WithField("key", "value"))
	assert.Equal(t, logger, logger.WithFields(map[string]interface{}{"key": "value"}))
}

func TestGlobalLogger(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	buf := &bytes.Buffer{}
	SetGlobalLogger(NewDefaultLogger(LevelInfo, buf))
	GetGlobalLogger().Info("global log")

	assert.Contains(t, buf.String(), "global log")
}

func TestLoggerInterface(t *testing.T) {
	var _ Logger = &NullLogger{}
	var _ Logger = &LogrusLogger{}
}
