package logging

import (
	"fmt"

	"github.com/leeforge/logroute/errors"
	"github.com/leeforge/logroute/record"
	"go.uber.org/zap"
)

// Hook is called for each accepted record before it reaches the appenders.
// It may add fields to the record. A failing hook never stops the write.
type Hook func(r *record.Record) error

// runHooks invokes every hook, reporting failures and panics on the side channel.
func (d *Dispatcher) runHooks(r *record.Record) {
	for i, hook := range d.hooks {
		if err := callHook(hook, r); err != nil {
			d.metrics.RecordHookError()
			d.status.Warn("log hook failed",
				zap.Int("hook", i),
				zap.String("logger", r.Logger),
				zap.Error(err),
			)
		}
	}
}

func callHook(hook Hook, r *record.Record) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Newf(errors.ErrorTypeInternal, "hook panicked: %v", p)
		}
	}()
	if err := hook(r); err != nil {
		return fmt.Errorf("hook: %w", err)
	}
	return nil
}

// LevelFieldHook adds the record level under key, useful for encoders that
// only render fields.
func LevelFieldHook(key string) Hook {
	return func(r *record.Record) error {
		r.Fields = append(r.Fields, zap.String(key, r.Level.LowerString()))
		return nil
	}
}
