package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/fsutil"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix selects the environment variables read by Load.
// MODSYNC_SETTINGS__GAME_VERSION sets settings.game_version.
const EnvPrefix = "MODSYNC_"

// LoadOptions control Load.
type LoadOptions struct {
	// Path is the YAML file; empty selects DefaultConfigPath. A missing
	// file is not an error.
	Path string
	// Environ replaces os.Environ when set.
	Environ []string
	// Overrides are applied last, keyed by dotted path
	// (e.g. "settings.loader").
	Overrides map[string]any
}

// Load builds the effective configuration.
func Load(opts LoadOptions) (*Config, error) {
	path := opts.Path
	if path == "" {
		path = DefaultConfigPath()
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(defaultsMap(), "."), nil); err != nil {
		return nil, errors.Wrap(err, "failed to load defaults")
	}

	if _, err := os.Stat(absPath); err == nil {
		if err := k.Load(file.Provider(absPath), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(errors.ErrConfigParse, "%s: %v", absPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "failed to open config file: %s", absPath)
	}

	if err := loadEnv(k, opts.Environ); err != nil {
		return nil, err
	}

	if len(opts.Overrides) > 0 {
		if err := k.Load(confmap.Provider(opts.Overrides, "."), nil); err != nil {
			return nil, errors.Wrap(err, "failed to apply overrides")
		}
	}

	var cfg Config
	unmarshalConf := koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			Result:           &cfg,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
			),
		},
	}
	if err := k.UnmarshalWithConf("", &cfg, unmarshalConf); err != nil {
		return nil, errors.Wrap(errors.ErrConfigParse, err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadEnv(k *koanf.Koanf, environ []string) error {
	key := func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
	}
	if environ == nil {
		if err := k.Load(env.Provider(EnvPrefix, ".", key), nil); err != nil {
			return errors.Wrap(err, "failed to load env vars")
		}
		return nil
	}

	vars := make(map[string]any)
	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) {
			continue
		}
		vars[key(name)] = value
	}
	if err := k.Load(confmap.Provider(vars, "."), nil); err != nil {
		return errors.Wrap(err, "failed to load env vars")
	}
	return nil
}

func defaultsMap() map[string]any {
	d := DefaultConfig()
	providers := make([]any, 0, len(d.Providers))
	for _, p := range d.Providers {
		providers = append(providers, map[string]any{"name": p.Name, "enabled": p.Enabled})
	}
	s := d.Settings
	return map[string]any{
		"providers":                     providers,
		"settings.mods_dir":             s.ModsDir,
		"settings.concurrency":          s.Concurrency,
		"settings.max_dependency_depth": s.MaxDependencyDepth,
		"settings.keep_previous":        s.KeepPrevious,
		"settings.duplicate_policy":     s.DuplicatePolicy,
		"settings.http_timeout":         s.HTTPTimeout,
		"settings.retry_attempts":       s.RetryAttempts,
		"settings.retry_base_delay":     s.RetryBaseDelay,
		"settings.retry_max_delay":      s.RetryMaxDelay,
		"settings.hooks_dir":            s.HooksDir,
		"settings.output_format":        s.OutputFormat,
		"settings.log_level":            s.LogLevel,
	}
}

// Save writes c to path as YAML, replacing the file atomically.
func (c *Config) Save(path string) error {
	if path == "" {
		return errors.ErrEmptyConfigPath
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return errors.Wrap(errors.ErrInvalidConfigPath, err.Error())
	}
	if err := fsutil.EnsureFileDir(absPath); err != nil {
		return errors.Wrap(errors.ErrConfigDirectory, err.Error())
	}

	// Provider tokens may be present.
	err = fsutil.WriteFileAtomic(absPath, fsutil.FileModeSecure, func(w io.Writer) error {
		return c.encode(w)
	})
	if err != nil {
		return errors.Wrap(errors.ErrConfigFileCreate, err.Error())
	}
	return nil
}

// ToYAML converts the config to YAML bytes.
func (c *Config) ToYAML() ([]byte, error) {
	var buf bytes.Buffer
	if err := c.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Config) encode(w io.Writer) error {
	encoder := yamlv3.NewEncoder(w)
	encoder.SetIndent(YAMLIndent)
	if err := encoder.Encode(c); err != nil {
		return errors.Wrap(errors.ErrConfigEncode, err.Error())
	}
	if err := encoder.Close(); err != nil {
		return errors.Wrap(errors.ErrConfigEncode, err.Error())
	}
	return nil
}
