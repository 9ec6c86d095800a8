// Package rotation decides when an active log file must be rotated and performs
// the rotation.
//
// A Policy combines a Trigger, consulted before every write, with a Roller that
// archives the active file. The caller owns the file handle: it closes the file
// before Rotate and reopens it afterwards, whatever the outcome.
package rotation

import (
	"github.com/leeforge/logroute/errors"
)

// Decision is the outcome of consulting a policy before a write.
type Decision int

const (
	// Continue appends to the active file.
	Continue Decision = iota
	// Rotate archives the active file before the write.
	Rotate
)

func (d Decision) String() string {
	if d == Rotate {
		return "rotate"
	}
	return "continue"
}

// Trigger decides whether the next write requires a rotation.
type Trigger interface {
	Trigger(current, incoming int64) bool
}

// Roller archives the file at active. On success the active path no longer
// holds the old contents.
type Roller interface {
	Roll(active string) error
}

// Policy is consulted by rolling file appenders.
type Policy interface {
	BeforeWrite(current, incoming int64) Decision
	Rotate(active string) error
}

// Compound pairs a trigger with a roller.
type Compound struct {
	trigger Trigger
	roller  Roller
}

// NewCompound builds a compound policy.
func NewCompound(trigger Trigger, roller Roller) (*Compound, error) {
	if trigger == nil {
		return nil, errors.NewConfig("compound policy requires a trigger")
	}
	if roller == nil {
		return nil, errors.NewConfig("compound policy requires a roller")
	}
	return &Compound{trigger: trigger, roller: roller}, nil
}

// BeforeWrite implements Policy.
func (c *Compound) BeforeWrite(current, incoming int64) Decision {
	if c.trigger.Trigger(current, incoming) {
		return Rotate
	}
	return Continue
}

// Rotate implements Policy. Failures are returned as rotation errors.
func (c *Compound) Rotate(active string) error {
	if err := c.roller.Roll(active); err != nil {
		if errors.Is(err, errors.ErrRotation) {
			return err
		}
		return errors.NewRotation(active, err)
	}
	return nil
}

var _ Policy = (*Compound)(nil)
