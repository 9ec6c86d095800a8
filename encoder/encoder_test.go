package encoder

import (
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/leeforge/logroute/errors"
	"github.com/leeforge/logroute/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var fixedTime = time.Date(2024, 3, 9, 14, 5, 7, 123000000, time.UTC)

func testRecord() *record.Record {
	return &record.Record{
		Time:    fixedTime,
		Level:   record.InfoLevel,
		Logger:  "app::requests",
		Message: "GET /health",
		Fields:  []zap.Field{zap.String("request_id", "r-1"), zap.Int("status", 200)},
		Caller: zapcore.EntryCaller{
			Defined:  true,
			File:     "/src/app/handler.go",
			Line:     42,
			Function: "app.handle",
		},
	}
}

func format(t *testing.T, pattern string, r *record.Record) string {
	t.Helper()
	p, err := Compile(pattern)
	require.NoError(t, err)
	return string(p.Format(r))
}

func TestPatternDirectives(t *testing.T) {
	tests := []struct {
		pattern  string
		expected string
	}{
		{"{d(2006-01-02 15:04:05)(utc)}", "2024-03-09 14:05:07"},
		{"{date(15:04:05.000)(utc)}", "14:05:07.123"},
		{"{l}", "INFO"},
		{"{level}", "INFO"},
		{"{m}", "GET /health"},
		{"{message}", "GET /health"},
		{"{t}", "app::requests"},
		{"{logger}", "app::requests"},
		{"{f}:{L}", "/src/app/handler.go:42"},
		{"{M}", "app.handle"},
		{"{X(request_id)}", "r-1"},
		{"{X(user)(anonymous)}", "anonymous"},
		{"{F}", "request_id=r-1 status=200"},
		{"{m}{n}", "GET /health\n"},
		{"{{literal}}", "{literal}"},
		{"[{l}] {m}", "[INFO] GET /health"},
		{`\(x\)`, "(x)"},
	}

	r := testRecord()
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.expected, format(t, tt.pattern, r))
		})
	}
}

func TestPatternPid(t *testing.T) {
	assert.Equal(t, fmt.Sprint(os.Getpid()), format(t, "{P}", testRecord()))
}

func TestPatternRootLoggerName(t *testing.T) {
	r := testRecord()
	r.Logger = ""
	assert.Equal(t, "root", format(t, "{t}", r))
}

func TestPatternMissingCaller(t *testing.T) {
	r := testRecord()
	r.Caller = zapcore.EntryCaller{}
	assert.Equal(t, ":", format(t, "{f}:{L}", r))
}

func TestPatternFormatSpec(t *testing.T) {
	tests := []struct {
		pattern  string
		expected string
	}{
		{"{l:<6}|", "INFO  |"},
		{"{l:>6}|", "  INFO|"},
		{"{l:^8}|", "  INFO  |"},
		{"{l:*^7}|", "*INFO**|"},
		{"{m:.3}|", "GET|"},
		{"{m:>5.3}|", "  GET|"},
		{"{l:2}|", "INFO|"},
	}

	r := testRecord()
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			assert.Equal(t, tt.expected, format(t, tt.pattern, r))
		})
	}
}

func TestPatternHighlight(t *testing.T) {
	r := testRecord()
	r.Level = record.WarnLevel
	assert.Equal(t, Yellow+"WARN - x"+Reset, format(t, "{h({l} - x)}", r))

	r.Level = record.ErrorLevel
	assert.Equal(t, BoldRed+"ERROR"+Reset, format(t, "{highlight({l})}", r))
}

func TestPatternIsDeterministic(t *testing.T) {
	p, err := Compile(DefaultPattern)
	require.NoError(t, err)

	r := testRecord()
	first := p.Format(r)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, p.Format(r))
	}
}

func TestPatternErrors(t *testing.T) {
	patterns := []string{
		"{",
		"{}",
		"{unknown}",
		"{l(x)}",
		"{m",
		"oops }",
		"{X}",
		"{d(2006)(mars)}",
		"{h({l}",
		"{l:.0}",
		"{l:abc}",
	}

	for _, pattern := range patterns {
		t.Run(pattern, func(t *testing.T) {
			_, err := Compile(pattern)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfig))
		})
	}
}

func TestJSONEncoder(t *testing.T) {
	enc := NewJSON()
	buf := Get()
	defer buf.Free()

	r := testRecord()
	r.Level = record.TraceLevel
	require.NoError(t, enc.Encode(buf, r))

	out := buf.Bytes()
	require.NotEmpty(t, out)
	assert.Equal(t, byte('\n'), out[len(out)-1])

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "trace", decoded["level"])
	assert.Equal(t, "app::requests", decoded["logger"])
	assert.Equal(t, "GET /health", decoded["message"])
	assert.Equal(t, "r-1", decoded["request_id"])
	assert.Equal(t, float64(200), decoded["status"])
	assert.Equal(t, "app/handler.go:42", decoded["caller"])
}

func TestNewEncoder(t *testing.T) {
	enc, err := New("", "")
	require.NoError(t, err)
	p, ok := enc.(*Pattern)
	require.True(t, ok)
	assert.Equal(t, DefaultPattern, p.String())

	enc, err = New(KindJSON, "")
	require.NoError(t, err)
	assert.IsType(t, &JSON{}, enc)

	_, err = New("xml", "")
	assert.True(t, errors.Is(err, errors.ErrConfig))
}
