// Package config loads the declarative logging configuration.
//
// Files are read with viper and merged in order: the base file, its .local
// variant, then the overlays of the current mode. Environment variables
// override merged values. Keys use "/" as delimiter so logger names such as
// "app.db" survive intact; viper folds keys to lower case.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/creasty/defaults"
	"github.com/leeforge/logroute/errors"
	"github.com/leeforge/logroute/utils"
	"github.com/spf13/viper"
)

// KeyDelimiter separates nested configuration keys.
const KeyDelimiter = "/"

// DefaultEnvPrefix scopes environment overrides.
const DefaultEnvPrefix = "LOGROUTE"

var envToken = regexp.MustCompile(`\$ENV\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// DefaultOptions reads LOGROUTE_CONFIG_PATH, falling back to "config".
func DefaultOptions() Options {
	basePath := os.Getenv("LOGROUTE_CONFIG_PATH")
	if basePath == "" {
		basePath = "config"
	}
	return Options{
		BasePath:  basePath,
		FileName:  "logging",
		FileType:  "yaml",
		EnvPrefix: DefaultEnvPrefix,
	}
}

// Load merges the files located by opts and returns the validated configuration.
func Load(opts Options) (*Config, error) {
	files := ConfigFiles(opts)
	if len(files) == 0 {
		return nil, errors.NewConfig("no configuration file %s.%s found in %s", opts.FileName, opts.FileType, opts.BasePath)
	}
	return LoadFiles(opts.EnvPrefix, files...)
}

// LoadFile loads a single file with the default environment prefix.
func LoadFile(path string) (*Config, error) {
	return LoadFiles(DefaultEnvPrefix, path)
}

// LoadFiles merges files in order; later files win key by key.
func LoadFiles(envPrefix string, files ...string) (*Config, error) {
	v := newViper()
	for _, file := range files {
		tempV := newViper()
		tempV.SetConfigFile(file)
		if err := tempV.ReadInConfig(); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "read "+file)
		}
		merge(v, tempV)
	}

	cfg, err := decode(v, envPrefix)
	if err != nil {
		return nil, err
	}
	cfg.Files = absPaths(files)
	return cfg, nil
}

// Parse decodes configuration held in memory. format is yaml, json or toml.
func Parse(data []byte, format string) (*Config, error) {
	v := newViper()
	v.SetConfigType(format)
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "parse "+format)
	}
	return decode(v, DefaultEnvPrefix)
}

func newViper() *viper.Viper {
	return viper.NewWithOptions(viper.KeyDelimiter(KeyDelimiter))
}

func merge(dst, src *viper.Viper) {
	for _, key := range src.AllKeys() {
		dst.Set(key, src.Get(key))
	}
}

func decode(v *viper.Viper, envPrefix string) (*Config, error) {
	applyEnvOverrides(v, envPrefix)

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "decode configuration")
	}
	if err := applyDefaults(cfg); err != nil {
		return nil, err
	}
	substituteEnv(cfg)
	normalizeRefs(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets PREFIX_KEY_PATH replace any key present in the files.
// "/", "." and "::" in a key all map to "_".
func applyEnvOverrides(v *viper.Viper, envPrefix string) {
	for _, key := range v.AllKeys() {
		envKey := EnvKey(envPrefix, key)
		if envValue := os.Getenv(envKey); envValue != "" {
			v.Set(key, envValue)
		}
	}
}

// EnvKey returns the environment variable that overrides key.
func EnvKey(envPrefix, key string) string {
	replacer := strings.NewReplacer("::", "_", KeyDelimiter, "_", ".", "_")
	envKey := strings.ToUpper(replacer.Replace(key))
	if envPrefix != "" {
		envKey = envPrefix + "_" + envKey
	}
	return envKey
}

// applyDefaults fills zero values from `default` tags. Map values are not
// addressable, so each element is defaulted on a copy and written back.
func applyDefaults(cfg *Config) error {
	if err := defaults.Set(&cfg.Root); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "set root defaults")
	}

	for name, a := range cfg.Appenders {
		if err := defaults.Set(&a); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "set defaults for appender "+name)
		}
		if err := defaults.Set(&a.Encoder); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "set encoder defaults for appender "+name)
		}
		if a.Policy != nil {
			if err := defaults.Set(a.Policy); err != nil {
				return errors.Wrap(err, errors.ErrorTypeConfig, "set policy defaults for appender "+name)
			}
		}
		for i := range a.Filters {
			if err := defaults.Set(&a.Filters[i]); err != nil {
				return errors.Wrap(err, errors.ErrorTypeConfig, "set filter defaults for appender "+name)
			}
		}
		cfg.Appenders[name] = a
	}

	for name, l := range cfg.Loggers {
		if err := defaults.Set(&l); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "set defaults for logger "+name)
		}
		cfg.Loggers[name] = l
	}
	return nil
}

// substituteEnv resolves $ENV{VAR} in paths and archive patterns. Unset
// variables are left literally.
func substituteEnv(cfg *Config) {
	for name, a := range cfg.Appenders {
		a.Path = ExpandEnv(a.Path)
		if a.Policy != nil {
			a.Policy.Roller.Pattern = ExpandEnv(a.Policy.Roller.Pattern)
		}
		cfg.Appenders[name] = a
	}
}

// ExpandEnv replaces $ENV{VAR} tokens with the variable's value.
func ExpandEnv(s string) string {
	if !strings.Contains(s, "$ENV{") {
		return s
	}
	return envToken.ReplaceAllStringFunc(s, func(token string) string {
		name := envToken.FindStringSubmatch(token)[1]
		if value, ok := os.LookupEnv(name); ok {
			return value
		}
		return token
	})
}

// normalizeRefs folds appender references to lower case to match viper's keys.
func normalizeRefs(cfg *Config) {
	lower := func(refs []string) []string {
		for i, r := range refs {
			refs[i] = strings.ToLower(strings.TrimSpace(r))
		}
		return refs
	}
	cfg.Root.Appenders = lower(cfg.Root.Appenders)
	for name, l := range cfg.Loggers {
		l.Appenders = lower(l.Appenders)
		cfg.Loggers[name] = l
	}
}

// ConfigFiles lists the existing files for opts in merge order.
func ConfigFiles(opts Options) (configFiles []string) {
	mode := opts.Mode
	if mode == "" {
		mode = CurrentMode()
	}

	fileNames := []string{
		opts.FileName,
		fmt.Sprintf("%s.local", opts.FileName),
	}
	for _, suffix := range mode.suffixes() {
		fileNames = append(fileNames,
			fmt.Sprintf("%s.%s", opts.FileName, suffix),
			fmt.Sprintf("%s.%s.local", opts.FileName, suffix),
		)
	}

	for _, fileName := range fileNames {
		file := filepath.Join(opts.BasePath, fmt.Sprintf("%s.%s", fileName, opts.FileType))
		if isDir, exists, _ := utils.Exists(file); exists && !isDir {
			configFiles = append(configFiles, file)
		}
	}
	return configFiles
}

func absPaths(files []string) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		if abs, err := filepath.Abs(f); err == nil {
			f = abs
		}
		out = append(out, f)
	}
	return out
}
