package logging

import (
	"github.com/leeforge/logroute/record"
	"go.uber.org/zap/zapcore"
)

// dispatchCore adapts a Dispatcher to zapcore.Core. zap logger names, joined
// with ".", address the same tree as Dispatcher logger names.
type dispatchCore struct {
	d      *Dispatcher
	fields []zapcore.Field
}

// Enabled implements zapcore.LevelEnabler. The level is checked per logger
// name in Check.
func (c *dispatchCore) Enabled(zapcore.Level) bool {
	return true
}

// With implements zapcore.Core.
func (c *dispatchCore) With(fields []zapcore.Field) zapcore.Core {
	return &dispatchCore{d: c.d, fields: joinFields(c.fields, fields)}
}

// Check implements zapcore.Core.
func (c *dispatchCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.d.Enabled(ent.LoggerName, record.FromZapLevel(ent.Level)) {
		return ce.AddCore(ent, c)
	}
	return ce
}

// Write implements zapcore.Core.
func (c *dispatchCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	c.d.emitEntry(ent.LoggerName, ent, c.fields, fields)
	return nil
}

// Sync implements zapcore.Core.
func (c *dispatchCore) Sync() error {
	return c.d.Flush()
}

var _ zapcore.Core = (*dispatchCore)(nil)
