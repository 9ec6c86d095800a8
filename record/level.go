package record

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"
)

// Level is a record severity. Higher is more severe.
type Level int8

const (
	TraceLevel Level = iota
	DebugLevel
	InfoLevel
	WarnLevel
	ErrorLevel
	// OffLevel disables a logger entirely. It is never attached to a record.
	OffLevel
)

var levelNames = [...]string{
	TraceLevel: "TRACE",
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
	OffLevel:   "OFF",
}

// String returns the upper-case level name.
func (l Level) String() string {
	if l < TraceLevel || l > OffLevel {
		return fmt.Sprintf("Level(%d)", l)
	}
	return levelNames[l]
}

// LowerString returns the lower-case level name.
func (l Level) LowerString() string {
	return strings.ToLower(l.String())
}

// Enabled reports whether a record at level rec passes a threshold of l.
// Off is never a record level, so a record at Off or above passes nothing.
func (l Level) Enabled(rec Level) bool {
	return l != OffLevel && rec >= l && rec < OffLevel
}

// ParseLevel converts a level name (trace, debug, info, warn, error, off) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return TraceLevel, nil
	case "debug":
		return DebugLevel, nil
	case "info":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	case "off":
		return OffLevel, nil
	default:
		return OffLevel, fmt.Errorf("unknown level %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	parsed, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.LowerString()), nil
}

// ZapLevel maps the level onto zapcore. Trace sits one below zap's debug.
func (l Level) ZapLevel() zapcore.Level {
	switch l {
	case TraceLevel:
		return zapcore.DebugLevel - 1
	case DebugLevel:
		return zapcore.DebugLevel
	case InfoLevel:
		return zapcore.InfoLevel
	case WarnLevel:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

// FromZapLevel is the inverse of ZapLevel.
func FromZapLevel(l zapcore.Level) Level {
	switch {
	case l < zapcore.DebugLevel:
		return TraceLevel
	case l == zapcore.DebugLevel:
		return DebugLevel
	case l == zapcore.InfoLevel:
		return InfoLevel
	case l == zapcore.WarnLevel:
		return WarnLevel
	default:
		return ErrorLevel
	}
}
