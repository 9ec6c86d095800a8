// Package record defines the log record that flows from the dispatcher to appenders.
package record

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Record is a single log event. It is built per emission and never retained
// past the write path.
type Record struct {
	Time    time.Time
	Level   Level
	Logger  string
	Message string
	Fields  []zap.Field
	Caller  zapcore.EntryCaller
}

// Field returns the rendered value of the first field with the given key.
func (r *Record) Field(key string) (string, bool) {
	for _, f := range r.Fields {
		if f.Key == key {
			return FieldValue(f), true
		}
	}
	return "", false
}

// FieldValue renders a zap field value as text.
func FieldValue(f zap.Field) string {
	enc := zapcore.NewMapObjectEncoder()
	f.AddTo(enc)
	v, ok := enc.Fields[f.Key]
	if !ok {
		return ""
	}
	switch val := v.(type) {
	case string:
		return val
	case error:
		return val.Error()
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

// Entry converts the record into a zapcore entry for zap-based encoders.
func (r *Record) Entry() zapcore.Entry {
	return zapcore.Entry{
		Level:      r.Level.ZapLevel(),
		Time:       r.Time,
		LoggerName: r.Logger,
		Message:    r.Message,
		Caller:     r.Caller,
	}
}
