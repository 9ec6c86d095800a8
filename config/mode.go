package config

import (
	"os"
	"strings"
)

// ModeEnvKey selects the environment overlay files.
const ModeEnvKey = "LOGROUTE_ENV"

// Mode names an environment whose overlay files are merged over the base file.
type Mode string

const (
	DevMode  Mode = "development"
	ProMode  Mode = "production"
	TestMode Mode = "test"
)

// ParseMode folds the usual abbreviations; anything unknown is development.
func ParseMode(env string) Mode {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "pro":
		return ProMode
	case "test", "testing":
		return TestMode
	default:
		return DevMode
	}
}

// CurrentMode reads ModeEnvKey.
func CurrentMode() Mode {
	return ParseMode(os.Getenv(ModeEnvKey))
}

// suffixes lists the overlay suffixes accepted for m, in merge order.
func (m Mode) suffixes() []string {
	switch m {
	case ProMode:
		return []string{"pro", "prod", "production"}
	case TestMode:
		return []string{"test"}
	default:
		return []string{"dev", "development"}
	}
}
