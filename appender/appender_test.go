package appender

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leeforge/logroute/encoder"
	"github.com/leeforge/logroute/errors"
	"github.com/leeforge/logroute/record"
	"github.com/leeforge/logroute/rotation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("gopkg.in/natefinch/lumberjack%2ev2.(*Logger).millRun"),
	)
}

func messageEncoder(t *testing.T) encoder.Encoder {
	t.Helper()
	enc, err := encoder.New(encoder.KindPattern, "{m}")
	require.NoError(t, err)
	return enc
}

func newRecord(level record.Level, msg string) *record.Record {
	return &record.Record{
		Time:    time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC),
		Level:   level,
		Logger:  "app",
		Message: msg,
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	require.NoError(t, sc.Err())
	return lines
}

func TestParseDurability(t *testing.T) {
	tests := []struct {
		in       string
		expected Durability
	}{
		{"", DurabilityRecord},
		{"record", DurabilityRecord},
		{"SYNC", DurabilitySync},
		{" buffered ", DurabilityBuffered},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDurability(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}

	_, err := ParseDurability("eventually")
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestConsoleWritesSeparatedRecords(t *testing.T) {
	var out bytes.Buffer
	c, err := NewConsole(ConsoleConfig{Name: "stdout", Writer: &out, Encoder: messageEncoder(t)})
	require.NoError(t, err)
	assert.Equal(t, "stdout", c.Name())

	require.NoError(t, c.Append(newRecord(record.InfoLevel, "one")))
	require.NoError(t, c.Append(newRecord(record.InfoLevel, "two\n")))
	assert.Equal(t, "one\ntwo\n", out.String())
}

func TestConsoleUnknownTarget(t *testing.T) {
	_, err := NewConsole(ConsoleConfig{Name: "c", Target: "printer"})
	assert.True(t, errors.Is(err, errors.ErrConfig))
}

func TestConsoleClosedStreamIsFatal(t *testing.T) {
	r, w := io.Pipe()
	require.NoError(t, r.Close())

	c, err := NewConsole(ConsoleConfig{Name: "pipe", Writer: w, Encoder: messageEncoder(t)})
	require.NoError(t, err)

	err = c.Append(newRecord(record.InfoLevel, "lost"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrAppender))
	assert.True(t, errors.IsFatal(err))

	assert.False(t, errors.Is(err, ErrClosed), "a broken stream is not a closed appender")

	err = c.Append(newRecord(record.InfoLevel, "still lost"))
	assert.True(t, errors.IsFatal(err), "a dead console stays dead")
}

func TestThresholdFilter(t *testing.T) {
	var out bytes.Buffer
	c, err := NewConsole(ConsoleConfig{
		Name:    "warn-only",
		Writer:  &out,
		Encoder: messageEncoder(t),
		Filters: []Filter{ThresholdFilter{Level: record.WarnLevel}},
	})
	require.NoError(t, err)

	require.NoError(t, c.Append(newRecord(record.InfoLevel, "skipped")))
	require.NoError(t, c.Append(newRecord(record.ErrorLevel, "kept")))
	assert.Equal(t, "kept\n", out.String())
}

func TestFileCreatesParentDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "deeper", "app.log")
	a, err := NewFile(FileConfig{Name: "file", Path: path, Append: true, Encoder: messageEncoder(t)})
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Append(newRecord(record.InfoLevel, "hello")))
	assert.Equal(t, []string{"hello"}, readLines(t, path))
}

func TestFileRecordDurabilityIsReadableWithoutClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	a, err := NewFile(FileConfig{Name: "file", Path: path, Append: true, Encoder: messageEncoder(t)})
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Append(newRecord(record.InfoLevel, "visible")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "visible\n", string(data))
}

func TestFileBufferedDurabilityFlushes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	a, err := NewFile(FileConfig{
		Name:       "file",
		Path:       path,
		Append:     true,
		Durability: DurabilityBuffered,
		Encoder:    messageEncoder(t),
	})
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Append(newRecord(record.InfoLevel, "pending")))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)

	require.NoError(t, a.Flush())
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "pending\n", string(data))
}

func TestFileAppendFlag(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	a, err := NewFile(FileConfig{Name: "keep", Path: path, Append: true, Encoder: messageEncoder(t)})
	require.NoError(t, err)
	require.NoError(t, a.Append(newRecord(record.InfoLevel, "new")))
	require.NoError(t, a.Close())
	assert.Equal(t, []string{"old", "new"}, readLines(t, path))

	b, err := NewFile(FileConfig{Name: "truncate", Path: path, Append: false, Encoder: messageEncoder(t)})
	require.NoError(t, err)
	require.NoError(t, b.Append(newRecord(record.InfoLevel, "fresh")))
	require.NoError(t, b.Close())
	assert.Equal(t, []string{"fresh"}, readLines(t, path))
}

func TestFileAppendAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	a, err := NewFile(FileConfig{Name: "file", Path: path, Encoder: messageEncoder(t)})
	require.NoError(t, err)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	err = a.Append(newRecord(record.InfoLevel, "late"))
	assert.True(t, errors.Is(err, errors.ErrAppender))
	assert.True(t, errors.Is(err, ErrClosed))
}

func TestRollingFileRotatesOncePerOversizedRecord(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	trigger, err := rotation.NewSizeTrigger(100)
	require.NoError(t, err)
	roller, err := rotation.NewFixedWindowRoller(filepath.Join(dir, "app.{}.log"), 10, 0)
	require.NoError(t, err)
	policy, err := rotation.NewCompound(trigger, roller)
	require.NoError(t, err)

	a, err := NewFile(FileConfig{Name: "rolling", Path: path, Append: true, Encoder: messageEncoder(t), Policy: policy})
	require.NoError(t, err)
	defer a.Close()

	// 119 bytes of message plus the separator.
	msg := strings.Repeat("x", 119)
	for i := 0; i < 4; i++ {
		require.NoError(t, a.Append(newRecord(record.InfoLevel, msg)))
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.LessOrEqual(t, info.Size(), int64(120))
	}

	stats := a.Stats()
	assert.Equal(t, int64(3), stats.Rotations)
	assert.Zero(t, stats.RotationFailures)
	for i := 0; i < 3; i++ {
		data, err := os.ReadFile(roller.Path(i))
		require.NoError(t, err)
		assert.Len(t, data, 120)
	}
}

func TestRollingFileRotationFailureFailsOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("not a directory"), 0o644))

	trigger, err := rotation.NewSizeTrigger(10)
	require.NoError(t, err)
	roller, err := rotation.NewFixedWindowRoller(filepath.Join(blocker, "app.{}.log"), 2, 0)
	require.NoError(t, err)
	policy, err := rotation.NewCompound(trigger, roller)
	require.NoError(t, err)

	var (
		mu       sync.Mutex
		reported []error
	)
	a, err := NewFile(FileConfig{
		Name:    "rolling",
		Path:    path,
		Append:  true,
		Encoder: messageEncoder(t),
		Policy:  policy,
		OnError: func(err error) {
			mu.Lock()
			defer mu.Unlock()
			reported = append(reported, err)
		},
	})
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Append(newRecord(record.InfoLevel, "first record")))
	require.NoError(t, a.Append(newRecord(record.InfoLevel, "second record")))

	assert.Equal(t, []string{"first record", "second record"}, readLines(t, path))
	assert.Equal(t, int64(1), a.Stats().RotationFailures)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, reported, 1)
	assert.True(t, errors.Is(reported[0], errors.ErrRotation))
}

func TestRollingFileConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")

	trigger, err := rotation.NewSizeTrigger(512)
	require.NoError(t, err)
	roller, err := rotation.NewFixedWindowRoller(filepath.Join(dir, "app.{}.log"), 50, 0)
	require.NoError(t, err)
	policy, err := rotation.NewCompound(trigger, roller)
	require.NoError(t, err)

	a, err := NewFile(FileConfig{Name: "rolling", Path: path, Append: true, Encoder: messageEncoder(t), Policy: policy})
	require.NoError(t, err)

	const writers = 50
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg := "writer-" + strconv.Itoa(i) + "-" + strings.Repeat("y", 40)
			assert.NoError(t, a.Append(newRecord(record.InfoLevel, msg)))
		}(i)
	}
	wg.Wait()
	require.NoError(t, a.Close())

	files, err := filepath.Glob(filepath.Join(dir, "app*.log"))
	require.NoError(t, err)

	seen := make(map[string]bool)
	for _, f := range files {
		for _, line := range readLines(t, f) {
			require.True(t, strings.HasPrefix(line, "writer-"), "malformed line %q", line)
			require.True(t, strings.HasSuffix(line, strings.Repeat("y", 40)), "malformed line %q", line)
			assert.False(t, seen[line], "duplicate line %q", line)
			seen[line] = true
		}
	}
	assert.Len(t, seen, writers)
}

func TestLumberjackWritesAndRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	l, err := NewLumberjack(LumberjackConfig{
		Name:       "lj",
		Path:       path,
		MaxSize:    1,
		MaxBackups: 2,
		Encoder:    messageEncoder(t),
	})
	require.NoError(t, err)

	require.NoError(t, l.Append(newRecord(record.InfoLevel, "before")))
	require.NoError(t, l.Rotate())
	require.NoError(t, l.Append(newRecord(record.InfoLevel, "after")))
	require.NoError(t, l.Close())

	assert.Equal(t, []string{"after"}, readLines(t, path))
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	err = l.Append(newRecord(record.InfoLevel, "closed"))
	assert.True(t, errors.Is(err, errors.ErrAppender))
}

func TestLumberjackPreparesFileAtLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "logs", "app.log")

	l, err := NewLumberjack(LumberjackConfig{Name: "lj", Path: path, Append: true, Encoder: messageEncoder(t)})
	require.NoError(t, err)
	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	require.NoError(t, l.Append(newRecord(record.InfoLevel, "kept")))
	require.NoError(t, l.Close())

	l, err = NewLumberjack(LumberjackConfig{Name: "lj", Path: path, Append: true, Encoder: messageEncoder(t)})
	require.NoError(t, err)
	require.NoError(t, l.Append(newRecord(record.InfoLevel, "appended")))
	require.NoError(t, l.Close())
	assert.Equal(t, []string{"kept", "appended"}, readLines(t, path))

	l, err = NewLumberjack(LumberjackConfig{Name: "lj", Path: path, Append: false, Encoder: messageEncoder(t)})
	require.NoError(t, err)
	assert.Empty(t, readLines(t, path))
	require.NoError(t, l.Append(newRecord(record.InfoLevel, "fresh")))
	require.NoError(t, l.Close())
	assert.Equal(t, []string{"fresh"}, readLines(t, path))
}

func TestLumberjackValidation(t *testing.T) {
	_, err := NewLumberjack(LumberjackConfig{Name: "lj"})
	assert.True(t, errors.Is(err, errors.ErrConfig))

	_, err = NewLumberjack(LumberjackConfig{Name: "lj", Path: "x.log", MaxAge: -1})
	assert.True(t, errors.Is(err, errors.ErrConfig))

	assert.Equal(t, 0, megabytes(0))
	assert.Equal(t, 1, megabytes(1))
	assert.Equal(t, 1, megabytes(megabyte))
	assert.Equal(t, 2, megabytes(megabyte+1))
}
