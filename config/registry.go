package config

import (
	"sort"
	"strings"

	"github.com/leeforge/logroute/errors"
	"github.com/leeforge/logroute/record"
	"github.com/leeforge/logroute/registry"
)

// AppenderNames returns the configured appender names, lower-cased and sorted.
func (c *Config) AppenderNames() []string {
	names := make([]string, 0, len(c.Appenders))
	for name := range c.Appenders {
		names = append(names, strings.ToLower(name))
	}
	sort.Strings(names)
	return names
}

// Registry builds the logger tree described by the root and loggers sections.
func (c *Config) Registry() (*registry.Registry, error) {
	root := registry.Spec{Appenders: c.Root.Appenders}
	if c.Root.Level != "" {
		lvl, err := record.ParseLevel(c.Root.Level)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "root level")
		}
		root.Level = &lvl
	}

	specs := make([]registry.Spec, 0, len(c.Loggers))
	for _, name := range sortedKeys(c.Loggers) {
		l := c.Loggers[name]
		spec := registry.Spec{Name: name, Appenders: l.Appenders, Additive: l.IsAdditive()}
		if l.Level != "" {
			lvl, err := record.ParseLevel(l.Level)
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeConfig, "logger "+name+" level")
			}
			spec.Level = &lvl
		}
		specs = append(specs, spec)
	}
	return registry.New(root, specs, c.AppenderNames())
}
