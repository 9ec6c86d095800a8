package rotation

import (
	"strings"

	"github.com/docker/go-units"
	"github.com/leeforge/logroute/errors"
)

// SizeTrigger fires when the next write would push the active file past Limit.
// It never fires on an empty file, so a record larger than Limit lands in a
// fresh file rather than causing a rotation of nothing.
type SizeTrigger struct {
	Limit int64
}

// NewSizeTrigger validates limit and returns a trigger.
func NewSizeTrigger(limit int64) (*SizeTrigger, error) {
	if limit <= 0 {
		return nil, errors.NewConfig("size trigger limit must be positive, got %d", limit)
	}
	return &SizeTrigger{Limit: limit}, nil
}

// Trigger implements Trigger.
func (t *SizeTrigger) Trigger(current, incoming int64) bool {
	return current > 0 && current+incoming > t.Limit
}

// ParseSize parses sizes such as "10 mb", "512kb", "1 GiB" or "1024" into bytes.
// Units are binary multiples.
func ParseSize(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.NewConfig("empty size")
	}
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrorTypeConfig, "invalid size "+s)
	}
	return n, nil
}

var _ Trigger = (*SizeTrigger)(nil)
