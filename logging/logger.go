package logging

import (
	"fmt"

	"github.com/leeforge/logroute/record"
	"github.com/leeforge/logroute/registry"
	"go.uber.org/zap"
)

// Logger is the interface for structured logging through a Dispatcher.
type Logger interface {
	// Trace logs a message at TraceLevel.
	Trace(msg string, fields ...zap.Field)
	// Debug logs a message at DebugLevel.
	Debug(msg string, fields ...zap.Field)
	// Info logs a message at InfoLevel.
	Info(msg string, fields ...zap.Field)
	// Warn logs a message at WarnLevel.
	Warn(msg string, fields ...zap.Field)
	// Error logs a message at ErrorLevel.
	Error(msg string, fields ...zap.Field)
	// Log logs a message at an explicit level.
	Log(level record.Level, msg string, fields ...zap.Field)

	// Tracef logs a formatted message at TraceLevel.
	Tracef(format string, args ...any)
	// Debugf logs a formatted message at DebugLevel.
	Debugf(format string, args ...any)
	// Infof logs a formatted message at InfoLevel.
	Infof(format string, args ...any)
	// Warnf logs a formatted message at WarnLevel.
	Warnf(format string, args ...any)
	// Errorf logs a formatted message at ErrorLevel.
	Errorf(format string, args ...any)

	// Enabled reports whether a record at level would be written.
	Enabled(level record.Level) bool
	// With creates a child logger with additional fields.
	With(fields ...zap.Field) Logger
	// WithError creates a child logger with an error field.
	WithError(err error) Logger
	// Named creates a child logger one segment below this one.
	Named(name string) Logger
	// Name returns the normalized logger name.
	Name() string

	// Zap returns a *zap.Logger that writes through the same routing.
	Zap() *zap.Logger
	// Sync flushes every appender of the active configuration.
	Sync() error
}

// logger is a named handle on a Dispatcher. It holds no configuration, so it
// always follows the active snapshot.
type logger struct {
	d      *Dispatcher
	name   string
	fields []zap.Field
}

// log is shared by every level method; it keeps the call depth constant for
// caller capture.
func (l *logger) log(level record.Level, msg string, fields []zap.Field) {
	l.d.emit(2, l.name, level, msg, l.fields, fields)
}

func (l *logger) logf(level record.Level, format string, args []any) {
	if !l.d.Enabled(l.name, level) {
		return
	}
	l.d.emit(2, l.name, level, fmt.Sprintf(format, args...), l.fields, nil)
}

func (l *logger) Trace(msg string, fields ...zap.Field) {
	l.log(record.TraceLevel, msg, fields)
}

func (l *logger) Debug(msg string, fields ...zap.Field) {
	l.log(record.DebugLevel, msg, fields)
}

func (l *logger) Info(msg string, fields ...zap.Field) {
	l.log(record.InfoLevel, msg, fields)
}

func (l *logger) Warn(msg string, fields ...zap.Field) {
	l.log(record.WarnLevel, msg, fields)
}

func (l *logger) Error(msg string, fields ...zap.Field) {
	l.log(record.ErrorLevel, msg, fields)
}

func (l *logger) Log(level record.Level, msg string, fields ...zap.Field) {
	l.log(level, msg, fields)
}

func (l *logger) Tracef(format string, args ...any) {
	l.logf(record.TraceLevel, format, args)
}

func (l *logger) Debugf(format string, args ...any) {
	l.logf(record.DebugLevel, format, args)
}

func (l *logger) Infof(format string, args ...any) {
	l.logf(record.InfoLevel, format, args)
}

func (l *logger) Warnf(format string, args ...any) {
	l.logf(record.WarnLevel, format, args)
}

func (l *logger) Errorf(format string, args ...any) {
	l.logf(record.ErrorLevel, format, args)
}

func (l *logger) Enabled(level record.Level) bool {
	return l.d.Enabled(l.name, level)
}

func (l *logger) With(fields ...zap.Field) Logger {
	if len(fields) == 0 {
		return l
	}
	return &logger{d: l.d, name: l.name, fields: joinFields(l.fields, fields)}
}

func (l *logger) WithError(err error) Logger {
	return l.With(zap.Error(err))
}

func (l *logger) Named(name string) Logger {
	if name == "" {
		return l
	}
	child := name
	if l.name != registry.RootName {
		child = l.name + registry.Separator + name
	}
	named := l.d.Logger(child)
	if len(l.fields) == 0 {
		return named
	}
	return named.With(l.fields...)
}

func (l *logger) Name() string {
	return l.name
}

func (l *logger) Zap() *zap.Logger {
	zl := zap.New(&dispatchCore{d: l.d, fields: l.fields}, zap.AddCaller())
	if l.name == registry.RootName {
		return zl
	}
	return zl.Named(l.name)
}

func (l *logger) Sync() error {
	return l.d.Flush()
}

// Ensure logger implements Logger.
var _ Logger = (*logger)(nil)
