package appender

import (
	"io"
	"os"
	"sync"
	"syscall"

	"github.com/leeforge/logroute/encoder"
	"github.com/leeforge/logroute/errors"
	"github.com/leeforge/logroute/record"
)

// Console targets.
const (
	TargetStdout = "stdout"
	TargetStderr = "stderr"
)

// ConsoleConfig configures a console appender.
type ConsoleConfig struct {
	Name    string
	Target  string
	Encoder encoder.Encoder
	Filters []Filter

	// Writer overrides Target. Used to capture output.
	Writer io.Writer
}

// Console writes records to standard output or standard error.
type Console struct {
	base
	mu   sync.Mutex
	w    io.Writer
	dead error
}

// NewConsole creates a console appender.
func NewConsole(cfg ConsoleConfig) (*Console, error) {
	b, err := newBase(cfg.Name, cfg.Encoder, cfg.Filters)
	if err != nil {
		return nil, err
	}

	w := cfg.Writer
	if w == nil {
		switch cfg.Target {
		case "", TargetStdout:
			w = os.Stdout
		case TargetStderr:
			w = os.Stderr
		default:
			return nil, errors.NewConfig("appender %s: unknown console target %q", cfg.Name, cfg.Target)
		}
	}
	return &Console{base: b, w: w}, nil
}

// Append implements Appender. A closed stream disables the appender for good.
func (c *Console) Append(r *record.Record) error {
	if !c.accept(r) {
		return nil
	}
	buf, err := c.encode(r)
	if err != nil {
		return err
	}
	defer buf.Free()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.dead != nil {
		return c.dead
	}
	if _, err := c.w.Write(buf.Bytes()); err != nil {
		appErr := errors.NewAppender(c.name, err)
		if isClosedStream(err) {
			c.dead = appErr.WithFatal()
		}
		return appErr
	}
	return nil
}

// Flush implements Appender. Console writes are unbuffered.
func (c *Console) Flush() error {
	return nil
}

// Close implements Appender. The underlying stream is left open.
func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dead == nil {
		c.dead = ErrClosed
	}
	return nil
}

func isClosedStream(err error) bool {
	return errors.Is(err, os.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, syscall.EPIPE)
}

var _ Appender = (*Console)(nil)
