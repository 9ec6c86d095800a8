package config

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/leeforge/logroute/errors"
)

var humanDuration = regexp.MustCompile(`^(\d+)\s*([a-z]+)$`)

var durationUnits = map[string]time.Duration{
	"ms": time.Millisecond, "msec": time.Millisecond, "millisecond": time.Millisecond, "milliseconds": time.Millisecond,
	"s": time.Second, "sec": time.Second, "secs": time.Second, "second": time.Second, "seconds": time.Second,
	"m": time.Minute, "min": time.Minute, "mins": time.Minute, "minute": time.Minute, "minutes": time.Minute,
	"h": time.Hour, "hr": time.Hour, "hrs": time.Hour, "hour": time.Hour, "hours": time.Hour,
	"d": 24 * time.Hour, "day": 24 * time.Hour, "days": 24 * time.Hour,
}

// ParseRefreshRate accepts a Go duration ("30s", "1m30s") or a single
// humantime quantity ("30 seconds", "1 minute"). Empty disables refresh.
func ParseRefreshRate(s string) (time.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		m := humanDuration.FindStringSubmatch(s)
		if m == nil {
			return 0, errors.NewConfig("invalid refresh_rate %q", s)
		}
		unit, ok := durationUnits[m[2]]
		if !ok {
			return 0, errors.NewConfig("invalid refresh_rate %q: unknown unit %q", s, m[2])
		}
		n, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return 0, errors.NewConfig("invalid refresh_rate %q", s)
		}
		d = time.Duration(n) * unit
	}

	if d < 0 {
		return 0, errors.NewConfig("refresh_rate must not be negative, got %s", s)
	}
	return d, nil
}

// RefreshInterval returns the parsed refresh rate, or zero when unset or invalid.
func (c *Config) RefreshInterval() time.Duration {
	d, _ := ParseRefreshRate(c.RefreshRate)
	return d
}
