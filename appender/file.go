package appender

import (
	"bufio"
	"os"
	"strings"
	"sync"

	"github.com/leeforge/logroute/encoder"
	"github.com/leeforge/logroute/errors"
	"github.com/leeforge/logroute/record"
	"github.com/leeforge/logroute/rotation"
	"github.com/leeforge/logroute/utils"
)

// Durability controls when buffered bytes reach the operating system.
type Durability int

const (
	// DurabilityRecord flushes after every record.
	DurabilityRecord Durability = iota
	// DurabilitySync flushes and fsyncs after every record.
	DurabilitySync
	// DurabilityBuffered flushes only on Flush, Close and rotation.
	DurabilityBuffered
)

func (d Durability) String() string {
	switch d {
	case DurabilitySync:
		return "sync"
	case DurabilityBuffered:
		return "buffered"
	default:
		return "record"
	}
}

// ParseDurability parses record, sync or buffered. Empty means record.
func ParseDurability(s string) (Durability, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "record":
		return DurabilityRecord, nil
	case "sync":
		return DurabilitySync, nil
	case "buffered":
		return DurabilityBuffered, nil
	default:
		return DurabilityRecord, errors.NewConfig("unknown durability %q", s)
	}
}

const bufferSize = 32 * 1024

// FileConfig configures a file appender. A nil Policy gives a plain file.
type FileConfig struct {
	Name       string
	Path       string
	Append     bool
	Durability Durability
	Encoder    encoder.Encoder
	Filters    []Filter
	Policy     rotation.Policy
	OnError    ErrorHandler
}

// FileStats reports rotation outcomes.
type FileStats struct {
	Rotations        int64
	RotationFailures int64
	Size             int64
}

// File writes records to a file, rotating it when a policy says so.
//
// The size check, the rotation and the write of one record happen under a
// single lock, so concurrent writers never interleave or double-rotate.
type File struct {
	base
	path       string
	durability Durability
	policy     rotation.Policy
	onError    ErrorHandler

	mu     sync.Mutex
	file   *os.File
	w      *bufio.Writer
	size   int64
	closed bool
	stats  FileStats
}

// NewFile opens cfg.Path, creating parent directories, and returns the appender.
func NewFile(cfg FileConfig) (*File, error) {
	b, err := newBase(cfg.Name, cfg.Encoder, cfg.Filters)
	if err != nil {
		return nil, err
	}
	if cfg.Path == "" {
		return nil, errors.NewConfig("appender %s: path is required", cfg.Name)
	}

	a := &File{
		base:       b,
		path:       cfg.Path,
		durability: cfg.Durability,
		policy:     cfg.Policy,
		onError:    cfg.OnError,
	}
	if err := a.open(!cfg.Append); err != nil {
		return nil, errors.NewAppender(cfg.Name, err).WithDetail("path", cfg.Path)
	}
	return a, nil
}

// Path returns the active file path.
func (a *File) Path() string {
	return a.path
}

// Stats returns a snapshot of rotation counters.
func (a *File) Stats() FileStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	s.Size = a.size
	return s
}

// Append implements Appender.
func (a *File) Append(r *record.Record) error {
	if !a.accept(r) {
		return nil
	}
	buf, err := a.encode(r)
	if err != nil {
		return err
	}
	defer buf.Free()
	return a.emit(buf.Bytes())
}

func (a *File) emit(p []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}
	if a.policy != nil && a.policy.BeforeWrite(a.size, int64(len(p))) == rotation.Rotate {
		a.rotate()
	}

	if err := a.write(p); err != nil {
		// One retry against a freshly opened handle.
		if rerr := a.open(false); rerr != nil {
			return errors.NewAppender(a.name, errors.Join(err, rerr))
		}
		if err := a.write(p); err != nil {
			return errors.NewAppender(a.name, err)
		}
	}
	return nil
}

func (a *File) write(p []byte) error {
	if a.w == nil {
		return os.ErrClosed
	}
	n, err := a.w.Write(p)
	a.size += int64(n)
	if err != nil {
		return err
	}

	switch a.durability {
	case DurabilityRecord:
		return a.w.Flush()
	case DurabilitySync:
		if err := a.w.Flush(); err != nil {
			return err
		}
		return a.file.Sync()
	}
	return nil
}

// rotate runs the policy. A failed rotation keeps writing to the same file.
func (a *File) rotate() {
	if err := a.closeFile(); err != nil {
		report(a.onError, errors.NewAppender(a.name, err))
	}

	err := a.policy.Rotate(a.path)
	if err != nil {
		a.stats.RotationFailures++
		report(a.onError, err)
	} else {
		a.stats.Rotations++
	}

	if oerr := a.open(err == nil); oerr != nil {
		report(a.onError, errors.NewAppender(a.name, oerr).WithDetail("path", a.path))
	}
}

// open replaces the current handle. truncate discards existing content.
func (a *File) open(truncate bool) error {
	if a.file != nil {
		_ = a.closeFile()
	}

	f, err := utils.OpenLogFile(a.path, truncate)
	if err != nil {
		return err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}

	a.file = f
	a.w = bufio.NewWriterSize(f, bufferSize)
	a.size = info.Size()
	return nil
}

func (a *File) closeFile() error {
	if a.file == nil {
		return nil
	}
	ferr := a.w.Flush()
	cerr := a.file.Close()
	a.file, a.w = nil, nil
	return errors.Join(ferr, cerr)
}

// Flush implements Appender.
func (a *File) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.w == nil {
		return nil
	}
	if err := a.w.Flush(); err != nil {
		return errors.NewAppender(a.name, err)
	}
	if a.durability == DurabilitySync {
		if err := a.file.Sync(); err != nil {
			return errors.NewAppender(a.name, err)
		}
	}
	return nil
}

// Close implements Appender. It is safe to call more than once.
func (a *File) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	if err := a.closeFile(); err != nil {
		return errors.NewAppender(a.name, err)
	}
	return nil
}

var _ Appender = (*File)(nil)
