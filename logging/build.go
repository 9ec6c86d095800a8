package logging

import (
	"io"
	"sort"
	"strings"

	"github.com/leeforge/logroute/appender"
	"github.com/leeforge/logroute/config"
	"github.com/leeforge/logroute/encoder"
	"github.com/leeforge/logroute/errors"
	"github.com/leeforge/logroute/record"
	"github.com/leeforge/logroute/rotation"
)

// DefaultConfig routes every logger at info and above to stdout.
func DefaultConfig() *config.Config {
	return &config.Config{
		Appenders: map[string]config.AppenderConfig{
			"stdout": {
				Kind:       appender.KindConsole,
				Target:     appender.TargetStdout,
				Durability: "record",
				Encoder:    config.EncoderConfig{Kind: encoder.KindPattern},
			},
		},
		Root: config.LoggerConfig{
			Level:     "info",
			Appenders: []string{"stdout"},
		},
	}
}

// builder turns a validated configuration into a snapshot.
type builder struct {
	stdout, stderr io.Writer
	cacheSize      int
	onError        func(appenderName string, err error)

	// coldStart allows append: false to truncate. Reloads always append so a
	// refresh never wipes the file the previous generation is still writing.
	coldStart bool
}

func (b *builder) build(generation uint64, cfg *config.Config) (_ *snapshot, err error) {
	if cfg == nil {
		return nil, errors.NewConfig("configuration is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Registry references are case-folded, so appenders are keyed the same way.
	byName := make(map[string]config.AppenderConfig, len(cfg.Appenders))
	order := make([]string, 0, len(cfg.Appenders))
	for name, ac := range cfg.Appenders {
		name = strings.ToLower(name)
		byName[name] = ac
		order = append(order, name)
	}
	sort.Strings(order)

	built := make(map[string]appender.Appender, len(order))
	defer func() {
		if err != nil {
			for _, a := range built {
				_ = a.Close()
			}
		}
	}()

	for _, name := range order {
		a, err := b.buildAppender(name, byName[name])
		if err != nil {
			return nil, err
		}
		built[name] = a
	}

	reg, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	s, err := newSnapshot(generation, cfg, reg, built, order, b.cacheSize)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeInternal, "create route cache")
	}
	return s, nil
}

func (b *builder) buildAppender(name string, ac config.AppenderConfig) (appender.Appender, error) {
	enc, err := encoder.New(ac.Encoder.Kind, ac.Encoder.Pattern)
	if err != nil {
		return nil, err
	}
	filters, err := buildFilters(ac.Filters)
	if err != nil {
		return nil, err
	}
	onError := func(err error) {
		if b.onError != nil {
			b.onError(name, err)
		}
	}

	switch ac.Kind {
	case appender.KindConsole:
		cc := appender.ConsoleConfig{Name: name, Target: ac.Target, Encoder: enc, Filters: filters}
		switch ac.Target {
		case "", appender.TargetStdout:
			cc.Writer = b.stdout
		case appender.TargetStderr:
			cc.Writer = b.stderr
		}
		return appender.NewConsole(cc)

	case appender.KindFile, appender.KindRollingFile:
		durability, err := appender.ParseDurability(ac.Durability)
		if err != nil {
			return nil, err
		}
		fc := appender.FileConfig{
			Name:       name,
			Path:       ac.Path,
			Append:     ac.IsAppend() || !b.coldStart,
			Durability: durability,
			Encoder:    enc,
			Filters:    filters,
			OnError:    onError,
		}
		if ac.Kind == appender.KindRollingFile {
			if fc.Policy, err = buildPolicy(ac.Policy); err != nil {
				return nil, err
			}
		}
		return appender.NewFile(fc)

	case appender.KindLumberjack:
		var maxSize int64
		if ac.MaxSize != "" {
			if maxSize, err = rotation.ParseSize(ac.MaxSize); err != nil {
				return nil, err
			}
		}
		return appender.NewLumberjack(appender.LumberjackConfig{
			Name:       name,
			Path:       ac.Path,
			Append:     ac.IsAppend() || !b.coldStart,
			MaxSize:    maxSize,
			MaxBackups: ac.MaxBackups,
			MaxAge:     ac.MaxAge,
			Compress:   ac.Compress,
			LocalTime:  ac.LocalTime,
			Encoder:    enc,
			Filters:    filters,
		})
	}
	return nil, errors.NewConfig("appender %s: unknown kind %q", name, ac.Kind)
}

func buildPolicy(pc *config.PolicyConfig) (rotation.Policy, error) {
	if pc == nil {
		return nil, errors.NewConfig("rolling_file requires a policy")
	}
	limit, err := rotation.ParseSize(pc.Trigger.Limit)
	if err != nil {
		return nil, err
	}
	trigger, err := rotation.NewSizeTrigger(limit)
	if err != nil {
		return nil, err
	}

	var roller rotation.Roller
	switch pc.Roller.Kind {
	case "delete":
		roller = rotation.DeleteRoller{}
	default:
		if roller, err = rotation.NewFixedWindowRoller(pc.Roller.Pattern, pc.Roller.Count, pc.Roller.Base); err != nil {
			return nil, err
		}
	}
	return rotation.NewCompound(trigger, roller)
}

func buildFilters(fcs []config.FilterConfig) ([]appender.Filter, error) {
	if len(fcs) == 0 {
		return nil, nil
	}
	filters := make([]appender.Filter, 0, len(fcs))
	for _, fc := range fcs {
		lvl, err := record.ParseLevel(fc.Level)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "filter level")
		}
		filters = append(filters, appender.ThresholdFilter{Level: lvl})
	}
	return filters, nil
}
