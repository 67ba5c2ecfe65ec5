package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/glorpus-work/modsync/internal/logger"
	"github.com/glorpus-work/modsync/pkg/config"
	"github.com/glorpus-work/modsync/pkg/engine"
	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/hooks"
	mhttp "github.com/glorpus-work/modsync/pkg/http"
	"github.com/glorpus-work/modsync/pkg/metrics"
	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/glorpus-work/modsync/pkg/provider"
	"github.com/glorpus-work/modsync/pkg/provider/github"
	"github.com/glorpus-work/modsync/pkg/provider/modrinth"
	"github.com/prometheus/client_golang/prometheus"
)

// These variables will be set by the main package
var (
	ConfigPath   *string
	Verbose      *bool
	NoColor      *bool
	OutputFormat *string
	ModsDir      *string
	GameVersion  *string
	Loader       *string
	Provider     *string
)

// stdout is where command results are printed.
var stdout io.Writer = os.Stdout

// SetOutput redirects command results, for tests.
func SetOutput(w io.Writer) { stdout = w }

func str(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func getConfigPath() string {
	if path := str(ConfigPath); path != "" {
		return path
	}
	return config.DefaultConfigPath()
}

// flagOverrides maps global flags onto config keys.
func flagOverrides() map[string]any {
	out := make(map[string]any)
	set := func(key string, p *string) {
		if v := str(p); v != "" {
			out[key] = v
		}
	}
	set("settings.output_format", OutputFormat)
	set("settings.mods_dir", ModsDir)
	set("settings.game_version", GameVersion)
	set("settings.loader", Loader)
	if Verbose != nil && *Verbose {
		out["settings.log_level"] = "debug"
	}
	return out
}

// loadConfig loads the layered configuration and applies its logging settings.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{Path: getConfigPath(), Overrides: flagOverrides()})
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger.InitLogger(cfg.Settings.LogLevel, logger.OutputFormat(cfg.Settings.OutputFormat))
	if NoColor != nil && *NoColor {
		logger.SetNoColor(true)
	}
	return cfg, nil
}

// constraints builds the platform constraints from cfg and the --provider flag.
func constraints(cfg *config.Config) (model.Constraints, error) {
	tag, err := providerFlag()
	if err != nil {
		return model.Constraints{}, err
	}
	c := model.Constraints{Target: cfg.Target(), Provider: tag}
	if err := c.Validate(); err != nil {
		return c, errors.Wrapf(errors.ErrInvalidInput, "%v (set --game-version and --loader, or configure them)", err)
	}
	return c, nil
}

// providerFlag parses --provider; empty means every provider.
func providerFlag() (model.ProviderTag, error) {
	p := str(Provider)
	if p == "" {
		return "", nil
	}
	tag, err := model.ParseProviderTag(p)
	if err != nil {
		return "", errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	return tag, nil
}

// newRegistry builds a client per configured provider. Disabled providers,
// and curseforge which needs a partner key this tool does not carry, are
// registered as unavailable.
func newRegistry(cfg *config.Config) *provider.Registry {
	hc := mhttp.NewHTTPClient(cfg.Settings.HTTPTimeout, mhttp.DefaultUserAgent)
	var clients []provider.Client
	for _, p := range cfg.Providers {
		tag, err := model.ParseProviderTag(p.Name)
		if err != nil {
			continue
		}
		if !p.Enabled {
			clients = append(clients, provider.NewUnavailable(tag, "disabled in configuration"))
			continue
		}
		switch tag {
		case model.ProviderModrinth:
			clients = append(clients, modrinth.New(hc, p.URL, p.Token))
		case model.ProviderGitHub:
			clients = append(clients, github.New(hc, p.URL, p.Token))
		default:
			clients = append(clients, provider.NewUnavailable(tag, "no client available"))
		}
	}

	policy := provider.RetryPolicy{
		Attempts:  cfg.Settings.RetryAttempts,
		BaseDelay: cfg.Settings.RetryBaseDelay,
		MaxDelay:  cfg.Settings.RetryMaxDelay,
	}
	return provider.NewRegistry(clients...).Wrap(func(c provider.Client) provider.Client {
		return provider.WithCache(provider.WithRetry(c, policy), 0)
	})
}

// session bundles what one command run needs.
type session struct {
	cfg    *config.Config
	engine *engine.Engine
	// exportMetrics is set for commands that change the mods directory.
	exportMetrics bool
}

func newSession(cfg *config.Config) (*session, error) {
	runner, err := hooks.LoadDir(cfg.Settings.HooksDir)
	if err != nil {
		return nil, err
	}
	e := engine.New(newRegistry(cfg), engine.Config{
		MaxDepth: cfg.Settings.MaxDependencyDepth,
		Scripts:  runner,
		Metrics:  metrics.New(prometheus.NewRegistry()),
		Hooks:    engine.Hooks{OnEvent: logEvent},
	})
	return &session{cfg: cfg, engine: e}, nil
}

// close writes the metrics textfile when one is configured. Read-only
// commands leave the previous run's file alone.
func (s *session) close() {
	path := s.cfg.Settings.MetricsFile
	if path == "" || !s.exportMetrics {
		return
	}
	if err := s.engine.Metrics.WriteTextfile(path); err != nil {
		logger.Warn("Could not write metrics file", logger.Fields{"path": path, "error": err})
	}
}

func logEvent(e engine.Event) {
	fields := logger.Fields{"phase": e.Phase}
	if e.ID != "" {
		fields["artifact"] = e.ID
	}
	if e.Msg != "" {
		fields["detail"] = e.Msg
	}
	logger.Debug("progress", fields)
}

func jsonOutput(cfg *config.Config) bool {
	return strings.EqualFold(cfg.Settings.OutputFormat, "json")
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withSession loads config and runs fn for a read-only command.
func withSession(ctx context.Context, fn func(ctx context.Context, s *session) error) error {
	return runSession(ctx, false, fn)
}

// withChangeSession runs fn for a command that installs, replaces or renames
// artifacts, and exports its metrics afterwards.
func withChangeSession(ctx context.Context, fn func(ctx context.Context, s *session) error) error {
	return runSession(ctx, true, fn)
}

func runSession(ctx context.Context, exportMetrics bool, fn func(ctx context.Context, s *session) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, err := newSession(cfg)
	if err != nil {
		return err
	}
	s.exportMetrics = exportMetrics
	defer s.close()
	return fn(ctx, s)
}
