package logging

import (
	"context"
	"sync"

	"github.com/leeforge/logroute/config"
	"github.com/leeforge/logroute/record"
	"go.uber.org/zap"
)

var (
	globalDispatcher *Dispatcher
	globalMu         sync.RWMutex
)

// initGlobal builds the default dispatcher on first use.
func initGlobal() *Dispatcher {
	globalMu.Lock()
	defer globalMu.Unlock()
	if globalDispatcher == nil {
		d, err := New(DefaultConfig())
		if err != nil {
			// DefaultConfig is static; failing here is a programming error.
			panic(err)
		}
		globalDispatcher = d
	}
	return globalDispatcher
}

// Default returns the global dispatcher, building one from DefaultConfig if
// none was installed.
func Default() *Dispatcher {
	globalMu.RLock()
	d := globalDispatcher
	globalMu.RUnlock()
	if d != nil {
		return d
	}
	return initGlobal()
}

// SetGlobal installs d as the global dispatcher and returns the previous one,
// which the caller is responsible for shutting down.
func SetGlobal(d *Dispatcher) *Dispatcher {
	globalMu.Lock()
	defer globalMu.Unlock()
	prev := globalDispatcher
	globalDispatcher = d
	return prev
}

// Init builds a dispatcher from cfg and installs it globally. The previous
// global dispatcher is shut down.
func Init(cfg *config.Config, opts ...Option) error {
	d, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	if prev := SetGlobal(d); prev != nil {
		_ = prev.Shutdown(context.Background())
	}
	return nil
}

// InitFile loads path, installs the dispatcher globally and, when the file
// sets refresh_rate, reloads it on change.
func InitFile(path string, opts ...Option) (*Dispatcher, error) {
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, err
	}
	d, err := New(cfg, opts...)
	if err != nil {
		return nil, err
	}

	if interval := cfg.RefreshInterval(); interval > 0 {
		files := cfg.Files
		load := func() (*config.Config, error) {
			return config.LoadFiles(config.DefaultEnvPrefix, files...)
		}
		if err := d.Watch(files, interval, load); err != nil {
			_ = d.Shutdown(context.Background())
			return nil, err
		}
	}

	if prev := SetGlobal(d); prev != nil {
		_ = prev.Shutdown(context.Background())
	}
	return d, nil
}

// Shutdown shuts the global dispatcher down.
func Shutdown(ctx context.Context) error {
	globalMu.RLock()
	d := globalDispatcher
	globalMu.RUnlock()
	if d == nil {
		return nil
	}
	return d.Shutdown(ctx)
}

// Global returns the root logger of the global dispatcher.
func Global() Logger {
	return Default().Root()
}

// Get returns a named logger of the global dispatcher.
func Get(name string) Logger {
	return Default().Logger(name)
}

func root() *logger {
	return Default().Root().(*logger)
}

// Package-level convenience functions that delegate to the global root logger.

// Trace logs a message at TraceLevel using the global logger.
func Trace(msg string, fields ...zap.Field) {
	root().log(record.TraceLevel, msg, fields)
}

// Debug logs a message at DebugLevel using the global logger.
func Debug(msg string, fields ...zap.Field) {
	root().log(record.DebugLevel, msg, fields)
}

// Info logs a message at InfoLevel using the global logger.
func Info(msg string, fields ...zap.Field) {
	root().log(record.InfoLevel, msg, fields)
}

// Warn logs a message at WarnLevel using the global logger.
func Warn(msg string, fields ...zap.Field) {
	root().log(record.WarnLevel, msg, fields)
}

// Error logs a message at ErrorLevel using the global logger.
func Error(msg string, fields ...zap.Field) {
	root().log(record.ErrorLevel, msg, fields)
}

// Debugf logs a formatted message at DebugLevel using the global logger.
func Debugf(format string, args ...any) {
	root().logf(record.DebugLevel, format, args)
}

// Infof logs a formatted message at InfoLevel using the global logger.
func Infof(format string, args ...any) {
	root().logf(record.InfoLevel, format, args)
}

// Warnf logs a formatted message at WarnLevel using the global logger.
func Warnf(format string, args ...any) {
	root().logf(record.WarnLevel, format, args)
}

// Errorf logs a formatted message at ErrorLevel using the global logger.
func Errorf(format string, args ...any) {
	root().logf(record.ErrorLevel, format, args)
}

// With creates a child logger from the global logger with additional fields.
func With(fields ...zap.Field) Logger {
	return Global().With(fields...)
}

// WithError creates a child logger from the global logger with an error field.
func WithError(err error) Logger {
	return Global().WithError(err)
}

// Named returns a named logger of the global dispatcher.
func Named(name string) Logger {
	return Get(name)
}

// Sync flushes the global dispatcher's appenders.
func Sync() error {
	return Default().Flush()
}
