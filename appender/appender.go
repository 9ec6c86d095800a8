// Package appender implements the named sinks records are routed to.
//
// Every appender serializes its own writes; different appenders never share a
// lock. Errors are returned to the caller, which reports them through its side
// channel. A rotation failure is reported through the appender's ErrorHandler
// and never surfaces from Append.
package appender

import (
	"github.com/leeforge/logroute/encoder"
	"github.com/leeforge/logroute/errors"
	"github.com/leeforge/logroute/record"
	"go.uber.org/zap/buffer"
)

// Appender kinds understood by the configuration layer.
const (
	KindConsole     = "console"
	KindFile        = "file"
	KindRollingFile = "rolling_file"
	KindLumberjack  = "lumberjack"
)

// Separator terminates every record written by an appender.
const Separator = '\n'

// ErrClosed is returned by Append after Close.
var ErrClosed = errors.New(errors.ErrorTypeAppender, "appender is closed").WithCode("appender_closed")

// Appender is a named sink.
type Appender interface {
	Name() string
	Append(r *record.Record) error
	Flush() error
	Close() error
}

// ErrorHandler receives errors an appender cannot return to its caller,
// such as failed rotations. It must not write to the same appender.
type ErrorHandler func(error)

// Filter decides per record whether an appender accepts it.
type Filter interface {
	Accept(r *record.Record) bool
}

// ThresholdFilter rejects records below Level.
type ThresholdFilter struct {
	Level record.Level
}

// Accept implements Filter.
func (f ThresholdFilter) Accept(r *record.Record) bool {
	return f.Level.Enabled(r.Level)
}

// base carries what every appender shares: its name, encoder and filters.
type base struct {
	name    string
	encoder encoder.Encoder
	filters []Filter
}

func newBase(name string, enc encoder.Encoder, filters []Filter) (base, error) {
	if name == "" {
		return base{}, errors.NewConfig("appender name is required")
	}
	if enc == nil {
		var err error
		if enc, err = encoder.New(encoder.KindPattern, ""); err != nil {
			return base{}, err
		}
	}
	return base{name: name, encoder: enc, filters: filters}, nil
}

// Name implements Appender.
func (b *base) Name() string {
	return b.name
}

func (b *base) accept(r *record.Record) bool {
	for _, f := range b.filters {
		if !f.Accept(r) {
			return false
		}
	}
	return true
}

// encode renders r and terminates it with Separator unless the encoder already did.
func (b *base) encode(r *record.Record) (*buffer.Buffer, error) {
	buf := encoder.Get()
	if err := b.encoder.Encode(buf, r); err != nil {
		buf.Free()
		return nil, errors.NewAppender(b.name, err)
	}
	if n := buf.Len(); n == 0 || buf.Bytes()[n-1] != Separator {
		buf.AppendByte(Separator)
	}
	return buf, nil
}

func report(handler ErrorHandler, err error) {
	if err == nil || handler == nil {
		return
	}
	defer func() { _ = recover() }()
	handler(err)
}
