// Package encoder renders log records into bytes.
//
// Two encoders are provided: a compiled pattern encoder and a JSON encoder
// backed by zapcore. Both are safe for concurrent use and hold no per-call state.
package encoder

import (
	"github.com/leeforge/logroute/errors"
	"github.com/leeforge/logroute/record"
	"go.uber.org/zap/buffer"
)

// Encoder kinds accepted by New.
const (
	KindPattern = "pattern"
	KindJSON    = "json"
)

var pool = buffer.NewPool()

// Get returns a pooled buffer. Callers must Free it.
func Get() *buffer.Buffer {
	return pool.Get()
}

// Encoder renders a record into buf.
type Encoder interface {
	Encode(buf *buffer.Buffer, r *record.Record) error
}

// New builds an encoder of the given kind. An empty kind means pattern,
// and an empty pattern means DefaultPattern.
func New(kind, pattern string) (Encoder, error) {
	switch kind {
	case "", KindPattern:
		if pattern == "" {
			pattern = DefaultPattern
		}
		return Compile(pattern)
	case KindJSON:
		return NewJSON(), nil
	default:
		return nil, errors.NewConfig("unknown encoder kind %q", kind)
	}
}
