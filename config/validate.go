package config

import (
	"fmt"
	"sort"
	"strings"

	validatorV10 "github.com/go-playground/validator/v10"
	"github.com/leeforge/logroute/encoder"
	"github.com/leeforge/logroute/errors"
	"github.com/leeforge/logroute/record"
	"github.com/leeforge/logroute/registry"
	"github.com/leeforge/logroute/rotation"
)

var validator *validatorV10.Validate

func init() {
	validator = validatorV10.New()
}

func getValidationMessage(fe validatorV10.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	default:
		return fmt.Sprintf("failed validation for tag '%s'", fe.Tag())
	}
}

// Validate checks enums and ranges, then the rules spanning several fields:
// required paths and policies, parseable sizes, levels and patterns, known
// appender references and unique logger paths. All problems are reported
// together as one config error.
func (c *Config) Validate() error {
	var errs []error

	if err := validator.Struct(c); err != nil {
		var fieldErrs validatorV10.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				errs = append(errs, fmt.Errorf("%s %s", strings.TrimPrefix(fe.Namespace(), "Config."), getValidationMessage(fe)))
			}
		} else {
			errs = append(errs, err)
		}
	}

	if _, err := ParseRefreshRate(c.RefreshRate); err != nil {
		errs = append(errs, err)
	}

	folded := make(map[string]string, len(c.Appenders))
	for _, name := range sortedKeys(c.Appenders) {
		key := strings.ToLower(name)
		if prev, ok := folded[key]; ok {
			errs = append(errs, fmt.Errorf("appenders %q and %q differ only by case", prev, name))
		}
		folded[key] = name
		errs = append(errs, c.Appenders[name].validate(name)...)
	}

	if c.Root.Level != "" {
		if _, err := record.ParseLevel(c.Root.Level); err != nil {
			errs = append(errs, fmt.Errorf("root: %w", err))
		}
	}
	errs = append(errs, c.checkRefs("root", c.Root.Appenders)...)

	paths := make(map[string]string, len(c.Loggers))
	for _, name := range sortedKeys(c.Loggers) {
		l := c.Loggers[name]
		path, err := registry.Normalize(name)
		switch {
		case err != nil:
			errs = append(errs, err)
		case path == "":
			errs = append(errs, fmt.Errorf("logger %q collides with the root logger", name))
		default:
			if prev, ok := paths[path]; ok {
				errs = append(errs, fmt.Errorf("loggers %q and %q both resolve to %q", prev, name, path))
			}
			paths[path] = name
		}
		if l.Level != "" {
			if _, err := record.ParseLevel(l.Level); err != nil {
				errs = append(errs, fmt.Errorf("logger %s: %w", name, err))
			}
		}
		errs = append(errs, c.checkRefs("logger "+name, l.Appenders)...)
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.NewConfig("invalid configuration").WithInnerError(errors.Join(errs...))
}

func (c *Config) checkRefs(owner string, refs []string) []error {
	known := make(map[string]struct{}, len(c.Appenders))
	for name := range c.Appenders {
		known[strings.ToLower(name)] = struct{}{}
	}

	var errs []error
	for _, ref := range refs {
		if _, ok := known[strings.ToLower(strings.TrimSpace(ref))]; !ok {
			errs = append(errs, fmt.Errorf("%s references unknown appender %q", owner, ref))
		}
	}
	return errs
}

func (a AppenderConfig) validate(name string) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("appender "+name+": "+format, args...))
	}

	switch a.Kind {
	case "file", "rolling_file", "lumberjack":
		if a.Path == "" {
			fail("path is required for kind %s", a.Kind)
		}
	}

	if a.Kind == "rolling_file" {
		if a.Policy == nil {
			fail("policy is required for kind rolling_file")
		} else {
			if _, err := rotation.ParseSize(a.Policy.Trigger.Limit); err != nil {
				fail("trigger limit: %v", err)
			}
			if a.Policy.Roller.Kind != "delete" {
				if _, err := rotation.NewFixedWindowRoller(a.Policy.Roller.Pattern, a.Policy.Roller.Count, a.Policy.Roller.Base); err != nil {
					fail("roller: %v", err)
				}
			}
		}
	}

	if a.Kind == "lumberjack" && a.MaxSize != "" {
		if _, err := rotation.ParseSize(a.MaxSize); err != nil {
			fail("max_size: %v", err)
		}
	}

	if _, err := encoder.New(a.Encoder.Kind, a.Encoder.Pattern); err != nil {
		fail("encoder: %v", err)
	}

	for i, f := range a.Filters {
		if _, err := record.ParseLevel(f.Level); err != nil {
			fail("filter %d: %v", i, err)
		}
	}
	return errs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
