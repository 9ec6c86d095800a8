package rotation

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/leeforge/logroute/errors"
	"github.com/leeforge/logroute/utils"
)

// Placeholder is replaced by the archive index in a fixed window pattern.
const Placeholder = "{}"

// pendingSuffix names the staged archive while older archives shift.
const pendingSuffix = ".pending"

// Compression applied when the active file moves into the first archive slot.
type Compression int

const (
	CompressNone Compression = iota
	CompressGzip
	CompressZstd
)

func (c Compression) String() string {
	switch c {
	case CompressGzip:
		return "gzip"
	case CompressZstd:
		return "zstd"
	default:
		return "none"
	}
}

// compressionFor derives the codec from the archive pattern suffix.
func compressionFor(pattern string) Compression {
	switch strings.ToLower(filepath.Ext(pattern)) {
	case ".gz":
		return CompressGzip
	case ".zst", ".zstd":
		return CompressZstd
	default:
		return CompressNone
	}
}

// FixedWindowRoller keeps at most Count archives named by substituting the
// index into Pattern. Base holds the newest archive; base+count-1 the oldest.
type FixedWindowRoller struct {
	pattern     string
	count       int
	base        int
	compression Compression
}

// NewFixedWindowRoller validates the window and returns a roller.
func NewFixedWindowRoller(pattern string, count, base int) (*FixedWindowRoller, error) {
	if n := strings.Count(pattern, Placeholder); n != 1 {
		return nil, errors.NewConfig("roller pattern %q must contain exactly one %s, found %d", pattern, Placeholder, n)
	}
	if count < 1 {
		return nil, errors.NewConfig("roller count must be at least 1, got %d", count)
	}
	if base < 0 {
		return nil, errors.NewConfig("roller base must not be negative, got %d", base)
	}
	return &FixedWindowRoller{
		pattern:     pattern,
		count:       count,
		base:        base,
		compression: compressionFor(pattern),
	}, nil
}

// Path returns the archive path for index.
func (r *FixedWindowRoller) Path(index int) string {
	return strings.Replace(r.pattern, Placeholder, strconv.Itoa(index), 1)
}

// Compression reports the codec used for new archives.
func (r *FixedWindowRoller) Compression() Compression {
	return r.compression
}

// Roll implements Roller.
//
// Every archive directory is created and the active file is staged next to
// the base slot before any existing archive is touched, so a failed roll
// leaves the archive history intact. The shift then overwrites the oldest
// archive and the staged file moves into the base slot.
func (r *FixedWindowRoller) Roll(active string) error {
	last := r.base + r.count - 1
	for i := r.base; i <= last; i++ {
		if err := utils.EnsureParentDir(r.Path(i)); err != nil {
			return errors.NewRotation(active, err).WithDetail("step", "prepare").WithDetail("index", i)
		}
	}

	staged := r.Path(r.base) + pendingSuffix
	if err := archive(active, staged, r.compression); err != nil {
		_ = os.Remove(staged)
		return errors.NewRotation(active, err).WithDetail("step", "archive")
	}

	for i := last - 1; i >= r.base; i-- {
		src, dst := r.Path(i), r.Path(i+1)
		if err := os.Rename(src, dst); err != nil && !os.IsNotExist(err) {
			return errors.NewRotation(active, err).WithDetail("step", "shift").WithDetail("index", i).WithDetail("staged", staged)
		}
	}

	if err := os.Rename(staged, r.Path(r.base)); err != nil {
		return errors.NewRotation(active, err).WithDetail("step", "archive").WithDetail("staged", staged)
	}
	return nil
}

// DeleteRoller discards the active file on rotation.
type DeleteRoller struct{}

// Roll implements Roller.
func (DeleteRoller) Roll(active string) error {
	if err := removeIfExists(active); err != nil {
		return errors.NewRotation(active, err).WithDetail("step", "delete")
	}
	return nil
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// archive moves src to dst, compressing on the way when requested.
func archive(src, dst string, c Compression) error {
	if c == CompressNone {
		if err := os.Rename(src, dst); err != nil {
			if errors.Is(err, syscall.EXDEV) {
				return moveByCopy(src, dst)
			}
			return err
		}
		return nil
	}

	if err := compressFile(src, dst, c); err != nil {
		return err
	}
	return os.Remove(src)
}

// moveByCopy handles renames across filesystems.
func moveByCopy(src, dst string) error {
	if err := copyThroughTemp(src, dst, func(w io.Writer, r io.Reader) error {
		_, err := io.Copy(w, r)
		return err
	}); err != nil {
		return err
	}
	return os.Remove(src)
}

func compressFile(src, dst string, c Compression) error {
	return copyThroughTemp(src, dst, func(w io.Writer, r io.Reader) error {
		var zw io.WriteCloser
		switch c {
		case CompressGzip:
			zw = gzip.NewWriter(w)
		case CompressZstd:
			enc, err := zstd.NewWriter(w)
			if err != nil {
				return err
			}
			zw = enc
		default:
			return fmt.Errorf("unsupported compression %s", c)
		}
		if _, err := io.Copy(zw, r); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()
	})
}

// copyThroughTemp writes dst via a temporary sibling renamed into place, so a
// failure never leaves a truncated archive behind.
func copyThroughTemp(src, dst string, fn func(io.Writer, io.Reader) error) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), filepath.Base(dst)+".tmp*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err = fn(tmp, in); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}

var (
	_ Roller = (*FixedWindowRoller)(nil)
	_ Roller = DeleteRoller{}
)
