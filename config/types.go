package config

// Validator is implemented by configuration sections with cross-field rules.
type Validator interface {
	Validate() error
}

// Options locate the configuration files.
type Options struct {
	// BasePath is the directory searched for FileName and its overlays.
	BasePath string
	FileName string
	FileType string

	// EnvPrefix scopes environment overrides, e.g. LOGROUTE_ROOT_LEVEL.
	EnvPrefix string

	// Mode selects overlay files. Empty means CurrentMode().
	Mode Mode
}

// Config is the declarative logging configuration.
type Config struct {
	RefreshRate string                    `mapstructure:"refresh_rate" yaml:"refresh_rate,omitempty"`
	Appenders   map[string]AppenderConfig `mapstructure:"appenders" yaml:"appenders" validate:"dive"`
	Root        LoggerConfig              `mapstructure:"root" yaml:"root"`
	Loggers     map[string]LoggerConfig   `mapstructure:"loggers" yaml:"loggers,omitempty" validate:"dive"`

	// Files lists the files merged to produce this configuration.
	Files []string `mapstructure:"-" yaml:"-"`
}

// AppenderConfig configures one named appender.
type AppenderConfig struct {
	Kind       string         `mapstructure:"kind" yaml:"kind" validate:"required,oneof=console file rolling_file lumberjack"`
	Target     string         `mapstructure:"target" yaml:"target,omitempty" default:"stdout" validate:"omitempty,oneof=stdout stderr"`
	Path       string         `mapstructure:"path" yaml:"path,omitempty"`
	Append     *bool          `mapstructure:"append" yaml:"append,omitempty" default:"true"`
	Durability string         `mapstructure:"durability" yaml:"durability,omitempty" default:"record" validate:"omitempty,oneof=record sync buffered"`
	Encoder    EncoderConfig  `mapstructure:"encoder" yaml:"encoder,omitempty"`
	Policy     *PolicyConfig  `mapstructure:"policy" yaml:"policy,omitempty"`
	Filters    []FilterConfig `mapstructure:"filters" yaml:"filters,omitempty" validate:"dive"`

	// lumberjack only
	MaxSize    string `mapstructure:"max_size" yaml:"max_size,omitempty"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups,omitempty" validate:"gte=0"`
	MaxAge     int    `mapstructure:"max_age" yaml:"max_age,omitempty" validate:"gte=0"`
	Compress   bool   `mapstructure:"compress" yaml:"compress,omitempty"`
	LocalTime  bool   `mapstructure:"local_time" yaml:"local_time,omitempty"`
}

// EncoderConfig selects how records are rendered.
type EncoderConfig struct {
	Kind    string `mapstructure:"kind" yaml:"kind,omitempty" default:"pattern" validate:"omitempty,oneof=pattern json"`
	Pattern string `mapstructure:"pattern" yaml:"pattern,omitempty"`
}

// PolicyConfig configures rotation for rolling_file appenders.
type PolicyConfig struct {
	Kind    string        `mapstructure:"kind" yaml:"kind,omitempty" default:"compound" validate:"omitempty,oneof=compound"`
	Trigger TriggerConfig `mapstructure:"trigger" yaml:"trigger"`
	Roller  RollerConfig  `mapstructure:"roller" yaml:"roller"`
}

type TriggerConfig struct {
	Kind  string `mapstructure:"kind" yaml:"kind,omitempty" default:"size" validate:"omitempty,oneof=size"`
	Limit string `mapstructure:"limit" yaml:"limit" validate:"required"`
}

type RollerConfig struct {
	Kind    string `mapstructure:"kind" yaml:"kind,omitempty" default:"fixed_window" validate:"omitempty,oneof=fixed_window delete"`
	Pattern string `mapstructure:"pattern" yaml:"pattern,omitempty"`
	Count   int    `mapstructure:"count" yaml:"count,omitempty" default:"1" validate:"omitempty,gte=1"`
	Base    int    `mapstructure:"base" yaml:"base,omitempty" validate:"gte=0"`
}

// FilterConfig configures a per-appender filter.
type FilterConfig struct {
	Kind  string `mapstructure:"kind" yaml:"kind,omitempty" default:"threshold" validate:"omitempty,oneof=threshold"`
	Level string `mapstructure:"level" yaml:"level" validate:"required"`
}

// LoggerConfig configures the root logger or a named logger. Additive is
// ignored for the root.
type LoggerConfig struct {
	Level     string   `mapstructure:"level" yaml:"level,omitempty"`
	Appenders []string `mapstructure:"appenders" yaml:"appenders,omitempty"`
	Additive  *bool    `mapstructure:"additive" yaml:"additive,omitempty" default:"true"`
}

// IsAppend reports the append flag, defaulting to true.
func (a AppenderConfig) IsAppend() bool {
	return a.Append == nil || *a.Append
}

// IsAdditive reports the additive flag, defaulting to true.
func (l LoggerConfig) IsAdditive() bool {
	return l.Additive == nil || *l.Additive
}
