package logging

import (
	"github.com/leeforge/logroute/registry"
)

// Logger returns the named logger, creating it if necessary. Names are
// normalized, so "app.db" and "app::db" return the same logger. "" and
// "root" return the root logger.
func (d *Dispatcher) Logger(name string) Logger {
	// Fast path: check if logger exists
	if v, ok := d.loggers.Load(name); ok {
		return v.(*logger)
	}

	// Slow path: create the logger under its normalized name
	l := &logger{d: d, name: registry.DisplayName(name)}
	if l.name != name {
		if v, ok := d.loggers.Load(l.name); ok {
			l = v.(*logger)
		} else if actual, loaded := d.loggers.LoadOrStore(l.name, l); loaded {
			l = actual.(*logger)
		}
	}
	actual, loaded := d.loggers.LoadOrStore(name, l)
	if loaded {
		return actual.(*logger)
	}
	return l
}

// Root returns the root logger.
func (d *Dispatcher) Root() Logger {
	return d.Logger(registry.RootName)
}
