package appender

import (
	"sync"

	"github.com/leeforge/logroute/encoder"
	"github.com/leeforge/logroute/errors"
	"github.com/leeforge/logroute/record"
	"github.com/leeforge/logroute/utils"
	"gopkg.in/natefinch/lumberjack.v2"
)

const megabyte = 1024 * 1024

// LumberjackConfig configures an appender that delegates rotation to
// lumberjack. Archives are timestamped rather than indexed.
type LumberjackConfig struct {
	Name       string
	Path       string
	Append     bool
	MaxSize    int64 // bytes, rounded up to whole megabytes
	MaxBackups int
	MaxAge     int // days
	Compress   bool
	LocalTime  bool
	Encoder    encoder.Encoder
	Filters    []Filter
}

// Lumberjack writes through a lumberjack.Logger.
type Lumberjack struct {
	base
	mu     sync.Mutex
	logger *lumberjack.Logger
	closed bool
}

// NewLumberjack creates the appender. Parent directories are created and,
// without Append, the active file is truncated here; lumberjack opens it on
// first write.
func NewLumberjack(cfg LumberjackConfig) (*Lumberjack, error) {
	b, err := newBase(cfg.Name, cfg.Encoder, cfg.Filters)
	if err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, errors.NewConfig("appender %s: path is required", cfg.Name)
	}
	if cfg.MaxSize < 0 || cfg.MaxBackups < 0 || cfg.MaxAge < 0 {
		return nil, errors.NewConfig("appender %s: limits must not be negative", cfg.Name)
	}
	if err := prepare(cfg.Path, cfg.Append); err != nil {
		return nil, errors.NewAppender(cfg.Name, err).WithDetail("path", cfg.Path)
	}

	return &Lumberjack{
		base: b,
		logger: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    megabytes(cfg.MaxSize),
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
			Compress:   cfg.Compress,
			LocalTime:  cfg.LocalTime,
		},
	}, nil
}

func prepare(path string, appendMode bool) error {
	if appendMode {
		return utils.EnsureParentDir(path)
	}
	f, err := utils.OpenLogFile(path, true)
	if err != nil {
		return err
	}
	return f.Close()
}

func megabytes(n int64) int {
	if n <= 0 {
		return 0
	}
	return int((n + megabyte - 1) / megabyte)
}

// Append implements Appender.
func (l *Lumberjack) Append(r *record.Record) error {
	if !l.accept(r) {
		return nil
	}
	buf, err := l.encode(r)
	if err != nil {
		return err
	}
	defer buf.Free()

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrClosed
	}
	if _, err := l.logger.Write(buf.Bytes()); err != nil {
		return errors.NewAppender(l.name, err)
	}
	return nil
}

// Rotate forces lumberjack to start a new file.
func (l *Lumberjack) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.logger.Rotate(); err != nil {
		return errors.NewRotation(l.logger.Filename, err)
	}
	return nil
}

// Flush implements Appender. lumberjack does not buffer.
func (l *Lumberjack) Flush() error {
	return nil
}

// Close implements Appender.
func (l *Lumberjack) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.logger.Close(); err != nil {
		return errors.NewAppender(l.name, err)
	}
	return nil
}

var _ Appender = (*Lumberjack)(nil)
