package utils

import (
	"io"

	"github.com/sirupsen/logrus"
)

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

// LogrusLogger adapts a logrus entry to Logger.
type LogrusLogger struct {
	entry *logrus.Entry
}

// NewDefaultLogger creates a logfmt-style text logger writing to output.
func NewDefaultLogger(level LogLevel, output io.Writer) *LogrusLogger {
	return newLogrus(level, output, &logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: timestampFormat,
	})
}

// NewLogrusLogger creates a JSON logger writing to output.
func NewLogrusLogger(level LogLevel, output io.Writer) *LogrusLogger {
	return newLogrus(level, output, &logrus.JSONFormatter{TimestampFormat: timestampFormat})
}

func newLogrus(level LogLevel, output io.Writer, f logrus.Formatter) *LogrusLogger {
	l := logrus.New()
	l.SetOutput(output)
	l.SetFormatter(f)
	l.SetLevel(toLogrusLevel(level))
	return &LogrusLogger{entry: logrus.NewEntry(l)}
}

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case LevelDebug:
		return logrus.DebugLevel
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// SetLevel changes the minimum level of this logger and every logger derived from it.
func (l *LogrusLogger) SetLevel(level LogLevel) {
	l.entry.Logger.SetLevel(toLogrusLevel(level))
}

func (l *LogrusLogger) Debug(msg string, args ...interface{}) { l.entry.Debugf(msg, args...) }
func (l *LogrusLogger) Info(msg string, args ...interface{})  { l.entry.Infof(msg, args...) }
func (l *LogrusLogger) Warn(msg string, args ...interface{})  { l.entry.Warnf(msg, args...) }
func (l *LogrusLogger) Error(msg string, args ...interface{}) { l.entry.Errorf(msg, args...) }

// WithField returns a child logger carrying key.
func (l *LogrusLogger) WithField(key string, value interface{}) Logger {
	return &LogrusLogger{entry: l.entry.WithField(key, value)}
}

// WithFields returns a child logger carrying fields.
func (l *LogrusLogger) WithFields(fields map[string]interface{}) Logger {
	return &LogrusLogger{entry: l.entry.WithFields(logrus.Fields(fields))}
}
