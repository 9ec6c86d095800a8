package rotation

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/leeforge/logroute/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestSizeTrigger(t *testing.T) {
	trigger, err := NewSizeTrigger(100)
	require.NoError(t, err)

	tests := []struct {
		name     string
		current  int64
		incoming int64
		expected bool
	}{
		{"empty file never rotates", 0, 120, false},
		{"under limit", 10, 20, false},
		{"exactly at limit", 60, 40, false},
		{"over limit", 61, 40, true},
		{"already oversized", 120, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, trigger.Trigger(tt.current, tt.incoming))
		})
	}
}

func TestNewSizeTriggerRejectsNonPositive(t *testing.T) {
	_, err := NewSizeTrigger(0)
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in       string
		expected int64
	}{
		{"1024", 1024},
		{"10 mb", 10 * 1024 * 1024},
		{"512kb", 512 * 1024},
		{"1 GiB", 1 << 30},
		{" 2KB ", 2048},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	for _, bad := range []string{"", "ten mb", "10 parsecs"} {
		_, err := ParseSize(bad)
		assert.True(t, errors.Is(err, errors.ErrConfig), bad)
	}
}

func TestNewFixedWindowRollerValidation(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		count   int
		base    int
	}{
		{"no placeholder", "app.log", 3, 0},
		{"two placeholders", "app.{}.{}.log", 3, 0},
		{"zero count", "app.{}.log", 0, 0},
		{"negative base", "app.{}.log", 3, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFixedWindowRoller(tt.pattern, tt.count, tt.base)
			assert.True(t, errors.Is(err, errors.ErrConfig))
		})
	}
}

func TestFixedWindowRollerEvictsOldest(t *testing.T) {
	dir := t.TempDir()
	active := filepath.Join(dir, "app.log")
	roller, err := NewFixedWindowRoller(filepath.Join(dir, "archive", "app.{}.log"), 3, 1)
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		writeFile(t, active, "generation "+strconv.Itoa(i))
		require.NoError(t, roller.Roll(active))
		_, err := os.Stat(active)
		assert.True(t, os.IsNotExist(err), "active file must be moved away")
	}

	entries, err := os.ReadDir(filepath.Join(dir, "archive"))
	require.NoError(t, err)
	assert.Len(t, entries, 3)

	assert.Equal(t, "generation 5", readFile(t, roller.Path(1)))
	assert.Equal(t, "generation 4", readFile(t, roller.Path(2)))
	assert.Equal(t, "generation 3", readFile(t, roller.Path(3)))
	_, err = os.Stat(roller.Path(4))
	assert.True(t, os.IsNotExist(err))
}

func TestFixedWindowRollerSingleSlot(t *testing.T) {
	dir := t.TempDir()
	active := filepath.Join(dir, "app.log")
	roller, err := NewFixedWindowRoller(filepath.Join(dir, "app.{}.log"), 1, 0)
	require.NoError(t, err)

	writeFile(t, active, "first")
	require.NoError(t, roller.Roll(active))
	writeFile(t, active, "second")
	require.NoError(t, roller.Roll(active))

	assert.Equal(t, "second", readFile(t, roller.Path(0)))
	_, err = os.Stat(roller.Path(1))
	assert.True(t, os.IsNotExist(err))
}

func TestFixedWindowRollerGzip(t *testing.T) {
	dir := t.TempDir()
	active := filepath.Join(dir, "app.log")
	roller, err := NewFixedWindowRoller(filepath.Join(dir, "app.{}.log.gz"), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, CompressGzip, roller.Compression())

	writeFile(t, active, "compressed line\n")
	require.NoError(t, roller.Roll(active))
	writeFile(t, active, "newer line\n")
	require.NoError(t, roller.Roll(active))

	for idx, expected := range map[int]string{0: "newer line\n", 1: "compressed line\n"} {
		f, err := os.Open(roller.Path(idx))
		require.NoError(t, err)
		zr, err := gzip.NewReader(f)
		require.NoError(t, err)
		data, err := io.ReadAll(zr)
		require.NoError(t, err)
		_ = f.Close()
		assert.Equal(t, expected, string(data))
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp*"))
	require.NoError(t, err)
	assert.Empty(t, matches, "temporary files must not be left behind")
}

func TestFixedWindowRollerZstd(t *testing.T) {
	dir := t.TempDir()
	active := filepath.Join(dir, "app.log")
	roller, err := NewFixedWindowRoller(filepath.Join(dir, "app.{}.zst"), 2, 0)
	require.NoError(t, err)
	assert.Equal(t, CompressZstd, roller.Compression())

	content := bytes.Repeat([]byte("zstd payload "), 100)
	writeFile(t, active, string(content))
	require.NoError(t, roller.Roll(active))

	f, err := os.Open(roller.Path(0))
	require.NoError(t, err)
	defer f.Close()
	dec, err := zstd.NewReader(f)
	require.NoError(t, err)
	defer dec.Close()
	data, err := io.ReadAll(dec)
	require.NoError(t, err)
	assert.Equal(t, content, data)
}

func TestFixedWindowRollerFailureLeavesActive(t *testing.T) {
	dir := t.TempDir()
	active := filepath.Join(dir, "app.log")
	blocker := filepath.Join(dir, "blocker")
	writeFile(t, blocker, "a regular file where a directory is expected")

	roller, err := NewFixedWindowRoller(filepath.Join(blocker, "app.{}.log"), 2, 0)
	require.NoError(t, err)

	writeFile(t, active, "still here")
	err = roller.Roll(active)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrRotation))
	assert.Equal(t, "still here", readFile(t, active))
}

func TestFixedWindowRollerFailureKeepsArchives(t *testing.T) {
	dir := t.TempDir()
	active := filepath.Join(dir, "app.log")
	roller, err := NewFixedWindowRoller(filepath.Join(dir, "arch{}", "app.log"), 3, 0)
	require.NoError(t, err)

	// The base slot's directory is a regular file, so every roll fails.
	writeFile(t, filepath.Join(dir, "arch0"), "not a directory")
	writeFile(t, roller.Path(1), "older")
	writeFile(t, roller.Path(2), "oldest")
	writeFile(t, active, "current")

	for i := 0; i < 2; i++ {
		err := roller.Roll(active)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrRotation))
	}

	assert.Equal(t, "current", readFile(t, active))
	assert.Equal(t, "older", readFile(t, roller.Path(1)))
	assert.Equal(t, "oldest", readFile(t, roller.Path(2)))
}

func TestFixedWindowRollerStagingFailureKeepsArchives(t *testing.T) {
	dir := t.TempDir()
	active := filepath.Join(dir, "app.log")
	roller, err := NewFixedWindowRoller(filepath.Join(dir, "app.{}.log"), 2, 0)
	require.NoError(t, err)

	writeFile(t, roller.Path(0), "newest archive")
	writeFile(t, roller.Path(1), "oldest archive")

	// No active file: staging fails before any archive moves.
	err = roller.Roll(active)
	require.Error(t, err)
	assert.Equal(t, "newest archive", readFile(t, roller.Path(0)))
	assert.Equal(t, "oldest archive", readFile(t, roller.Path(1)))
}

func TestDeleteRoller(t *testing.T) {
	dir := t.TempDir()
	active := filepath.Join(dir, "app.log")
	writeFile(t, active, "gone")

	require.NoError(t, DeleteRoller{}.Roll(active))
	_, err := os.Stat(active)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, DeleteRoller{}.Roll(active), "missing file is not an error")
}

func TestCompoundPolicy(t *testing.T) {
	_, err := NewCompound(nil, DeleteRoller{})
	assert.True(t, errors.Is(err, errors.ErrConfig))

	trigger, err := NewSizeTrigger(10)
	require.NoError(t, err)
	policy, err := NewCompound(trigger, DeleteRoller{})
	require.NoError(t, err)

	assert.Equal(t, Continue, policy.BeforeWrite(0, 50))
	assert.Equal(t, Continue, policy.BeforeWrite(5, 5))
	assert.Equal(t, Rotate, policy.BeforeWrite(5, 6))

	dir := t.TempDir()
	active := filepath.Join(dir, "app.log")
	writeFile(t, active, "x")
	require.NoError(t, policy.Rotate(active))
}
