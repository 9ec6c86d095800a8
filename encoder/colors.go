package encoder

import "github.com/leeforge/logroute/record"

// Color represents a terminal ANSI color escape code.
type Color = string

// Reset code
const (
	Reset Color = "\033[0m"
)

// Foreground colors
const (
	Red     Color = "\033[31m"
	Green   Color = "\033[32m"
	Yellow  Color = "\033[33m"
	Blue    Color = "\033[34m"
	Cyan    Color = "\033[36m"
	White   Color = "\033[37m"
	Gray    Color = "\033[90m"
	BoldRed Color = "\033[1;31m"
)

// ColorScheme maps levels to colors for the highlight directive.
type ColorScheme interface {
	LevelColor(level record.Level) Color
}

// DefaultColorScheme provides configurable level colors.
// Zero values fall back to the defaults.
type DefaultColorScheme struct {
	LevelTrace Color
	LevelDebug Color
	LevelInfo  Color
	LevelWarn  Color
	LevelError Color
}

// NewDefaultColorScheme returns a scheme with the default level colors.
func NewDefaultColorScheme() *DefaultColorScheme {
	return &DefaultColorScheme{
		LevelTrace: Gray,
		LevelDebug: Blue,
		LevelInfo:  Green,
		LevelWarn:  Yellow,
		LevelError: BoldRed,
	}
}

// LevelColor returns the color for a log level.
func (s *DefaultColorScheme) LevelColor(level record.Level) Color {
	switch level {
	case record.TraceLevel:
		return withDefault(s.LevelTrace, Gray)
	case record.DebugLevel:
		return withDefault(s.LevelDebug, Blue)
	case record.InfoLevel:
		return withDefault(s.LevelInfo, Green)
	case record.WarnLevel:
		return withDefault(s.LevelWarn, Yellow)
	case record.ErrorLevel:
		return withDefault(s.LevelError, BoldRed)
	default:
		return White
	}
}

func withDefault(value, defaultValue Color) Color {
	if value == "" {
		return defaultValue
	}
	return value
}

var _ ColorScheme = (*DefaultColorScheme)(nil)
