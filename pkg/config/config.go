// Package config provides configuration management for modsync. Settings are
// layered: built-in defaults, then the YAML config file, then MODSYNC_*
// environment variables, then explicit overrides (usually command-line flags).
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/glorpus-work/modsync/pkg/platform"
)

// Config represents the application configuration.
type Config struct {
	Providers []ProviderConfig `yaml:"providers" koanf:"providers"`
	Settings  Settings         `yaml:"settings" koanf:"settings"`
}

// ProviderConfig enables and points one remote catalog.
type ProviderConfig struct {
	Name    string `yaml:"name" koanf:"name"`
	Enabled bool   `yaml:"enabled" koanf:"enabled"`
	URL     string `yaml:"url,omitempty" koanf:"url"`
	Token   string `yaml:"token,omitempty" koanf:"token"`
}

// Settings represents general application settings.
type Settings struct {
	ModsDir     string `yaml:"mods_dir" koanf:"mods_dir"`
	GameVersion string `yaml:"game_version,omitempty" koanf:"game_version"`
	Loader      string `yaml:"loader,omitempty" koanf:"loader"`

	// Pipeline settings
	Concurrency        int    `yaml:"concurrency" koanf:"concurrency"`
	MaxDependencyDepth int    `yaml:"max_dependency_depth" koanf:"max_dependency_depth"`
	KeepPrevious       bool   `yaml:"keep_previous" koanf:"keep_previous"`
	DuplicatePolicy    string `yaml:"duplicate_policy" koanf:"duplicate_policy"` // reject, keep-newest

	// Network settings
	HTTPTimeout    time.Duration `yaml:"http_timeout" koanf:"http_timeout"`
	RetryAttempts  int           `yaml:"retry_attempts" koanf:"retry_attempts"`
	RetryBaseDelay time.Duration `yaml:"retry_base_delay" koanf:"retry_base_delay"`
	RetryMaxDelay  time.Duration `yaml:"retry_max_delay" koanf:"retry_max_delay"`

	HooksDir    string `yaml:"hooks_dir,omitempty" koanf:"hooks_dir"`
	MetricsFile string `yaml:"metrics_file,omitempty" koanf:"metrics_file"`

	// Output settings
	OutputFormat string `yaml:"output_format" koanf:"output_format"` // text, json
	LogLevel     string `yaml:"log_level" koanf:"log_level"`         // debug, info, warn, error
}

// Default configuration values.
const (
	// AppName names the config and data directories.
	AppName = "modsync"

	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// DefaultConcurrency is the default number of artifacts processed at once.
	DefaultConcurrency = 4

	// DefaultMaxDependencyDepth bounds dependency chains.
	DefaultMaxDependencyDepth = 8

	DefaultRetryAttempts  = 3
	DefaultRetryBaseDelay = 500 * time.Millisecond
	DefaultRetryMaxDelay  = 5 * time.Second

	// YAMLIndent is the number of spaces to use for YAML indentation.
	YAMLIndent = 2
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Providers: []ProviderConfig{
			{Name: string(model.ProviderModrinth), Enabled: true},
			{Name: string(model.ProviderCurseForge), Enabled: false},
			{Name: string(model.ProviderGitHub), Enabled: true},
		},
		Settings: Settings{
			ModsDir:            DefaultModsDir(),
			Concurrency:        DefaultConcurrency,
			MaxDependencyDepth: DefaultMaxDependencyDepth,
			DuplicatePolicy:    "reject",
			HTTPTimeout:        DefaultHTTPTimeout,
			RetryAttempts:      DefaultRetryAttempts,
			RetryBaseDelay:     DefaultRetryBaseDelay,
			RetryMaxDelay:      DefaultRetryMaxDelay,
			HooksDir:           filepath.Join(xdg.ConfigHome, AppName, "hooks"),
			OutputFormat:       "text",
			LogLevel:           "info",
		},
	}
}

// DefaultConfigPath returns $XDG_CONFIG_HOME/modsync/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, AppName, "config.yaml")
}

// DefaultModsDir returns the mods folder of the default game installation.
func DefaultModsDir() string {
	return modsDirFor(runtime.GOOS)
}

func modsDirFor(goos string) string {
	switch goos {
	case platform.OSWindows:
		base := os.Getenv("APPDATA")
		if base == "" {
			base = xdg.ConfigHome
		}
		return filepath.Join(base, ".minecraft", "mods")
	case platform.OSDarwin:
		return filepath.Join(xdg.Home, "Library", "Application Support", "minecraft", "mods")
	case platform.OSLinux:
		return filepath.Join(xdg.Home, ".minecraft", "mods")
	default:
		return filepath.Join(xdg.Home, ".minecraft", "mods")
	}
}

// Provider returns the settings for the named provider, or nil.
func (c *Config) Provider(name string) *ProviderConfig {
	for i := range c.Providers {
		if strings.EqualFold(c.Providers[i].Name, name) {
			return &c.Providers[i]
		}
	}
	return nil
}

// EnableProvider enables or disables a provider.
func (c *Config) EnableProvider(name string, enabled bool) bool {
	p := c.Provider(name)
	if p == nil {
		return false
	}
	p.Enabled = enabled
	return true
}

// Target returns the configured game version and loader.
func (c *Config) Target() platform.Target {
	return platform.Target{GameVersion: c.Settings.GameVersion, Loader: c.Settings.Loader}.Normalize()
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c == nil {
		return errors.ErrConfigValidation
	}
	if err := validateProviders(c.Providers); err != nil {
		return errors.Wrap(errors.ErrConfigValidation, err.Error())
	}
	if err := validateSettings(c.Settings); err != nil {
		return errors.Wrap(errors.ErrConfigValidation, err.Error())
	}
	return nil
}

func validateProviders(providers []ProviderConfig) error {
	seen := make(map[model.ProviderTag]bool)
	for i, p := range providers {
		if p.Name == "" {
			return errors.Wrapf(errors.ErrInvalidInput, "provider at index %d has no name", i)
		}
		tag, err := model.ParseProviderTag(p.Name)
		if err != nil {
			return err
		}
		if seen[tag] {
			return errors.Wrapf(errors.ErrInvalidInput, "provider %q listed twice", p.Name)
		}
		seen[tag] = true
	}
	return nil
}

func validateSettings(s Settings) error {
	if s.ModsDir == "" {
		return errors.Wrap(errors.ErrInvalidInput, "mods_dir cannot be empty")
	}
	if s.Loader != "" && !platform.IsValidLoader(s.Loader) {
		return errors.Wrapf(errors.ErrInvalidInput, "unknown loader %q (valid: %s)", s.Loader, strings.Join(platform.ValidLoaders(), ", "))
	}
	if s.Concurrency < 1 {
		return errors.Wrap(errors.ErrInvalidInput, "concurrency must be at least 1")
	}
	if s.MaxDependencyDepth < 1 {
		return errors.Wrap(errors.ErrInvalidInput, "max_dependency_depth must be at least 1")
	}
	switch s.DuplicatePolicy {
	case "", "reject", "keep-newest":
	default:
		return errors.Wrapf(errors.ErrInvalidInput, "unknown duplicate_policy %q (valid: reject, keep-newest)", s.DuplicatePolicy)
	}
	if s.HTTPTimeout < 0 {
		return errors.Wrap(errors.ErrInvalidInput, "http_timeout cannot be negative")
	}
	if s.RetryAttempts < 1 {
		return errors.Wrap(errors.ErrInvalidInput, "retry_attempts must be at least 1")
	}
	if s.RetryBaseDelay < 0 || s.RetryMaxDelay < s.RetryBaseDelay {
		return errors.Wrap(errors.ErrInvalidInput, "retry delays must satisfy 0 <= retry_base_delay <= retry_max_delay")
	}
	switch s.OutputFormat {
	case "text", "json":
	default:
		return errors.Wrapf(errors.ErrInvalidInput, "unknown output_format %q (valid: text, json)", s.OutputFormat)
	}
	switch strings.ToLower(s.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return errors.Wrapf(errors.ErrInvalidInput, "unknown log_level %q (valid: debug, info, warn, error)", s.LogLevel)
	}
	return nil
}
