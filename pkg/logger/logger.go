// Package logger provides structured, component-scoped logging for the
// wallet core. It wraps logrus so call sites can chain contextual fields
// without carrying the underlying library type around.
package logger

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger is a leveled, field-aware logger bound to a named component.
type Logger struct {
	entry *logrus.Entry
}

// New creates a logger for the given component writing to the supplied sink
// at the requested level. Unknown level strings fall back to info.
func New(component, level string, out io.Writer) *Logger {
	base := logrus.New()
	base.SetOutput(out)
	base.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		parsed = logrus.InfoLevel
	}
	base.SetLevel(parsed)

	return &Logger{entry: base.WithField("component", component)}
}

// NewDefault creates an info-level logger for the component writing to
// stderr.
func NewDefault(component string) *Logger {
	return New(component, "info", os.Stderr)
}

// WithField returns a logger with the field attached to every entry.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{entry: l.entry.WithField(key, value)}
}

// WithFields returns a logger with all given fields attached.
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

// WithError returns a logger with the error attached under the standard
// error key.
func (l *Logger) WithError(err error) *Logger {
	return &Logger{entry: l.entry.WithError(err)}
}

func (l *Logger) Debug(args ...interface{}) { l.entry.Debug(args...) }
func (l *Logger) Info(args ...interface{})  { l.entry.Info(args...) }
func (l *Logger) Warn(args ...interface{})  { l.entry.Warn(args...) }
func (l *Logger) Error(args ...interface{}) { l.entry.Error(args...) }

func (l *Logger) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }
func (l *Logger) Infof(format string, args ...interface{})  { l.entry.Infof(format, args...) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.entry.Warnf(format, args...) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }
