package utils

import (
	"io"
	"os"
	"strings"
)

// LogLevel represents the severity level of a log message.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

// String returns the upper-case level name.
func (l LogLevel) String() string {
	if l < LevelDebug || int(l) >= len(levelNames) {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLogLevel parses a level name. Unknown names mean info.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger is the interface for logging. Messages are printf formats.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	WithField(key string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
}

// Log output formats accepted by NewLogger.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// NewLogger builds a logger for the configured format.
// Unknown formats fall back to text.
func NewLogger(level LogLevel, format string, output io.Writer) Logger {
	if strings.EqualFold(format, FormatJSON) {
		return NewLogrusLogger(level, output)
	}
	return NewDefaultLogger(level, output)
}

// Diagnostics go to stderr so the report owns stdout.
var globalLogger Logger = NewDefaultLogger(LevelInfo, os.Stderr)

// SetGlobalLogger sets the global logger.
func SetGlobalLogger(logger Logger) {
	globalLogger = logger
}

// GetGlobalLogger returns the global logger.
func GetGlobalLogger() Logger {
	return globalLogger
}

// NullLogger discards everything.
type NullLogger struct{}

func (l *NullLogger) Debug(string, ...interface{})             {}
func (l *NullLogger) Info(string, ...interface{})              {}
func (l *NullLogger) Warn(string, ...interface{})              {}
func (l *NullLogger) Error(string, ...interface{})             {}
func (l *NullLogger) WithField(string, interface{}) Logger     { return l }
func (l *NullLogger) WithFields(map[string]interface{}) Logger { return l }
