// Package engine ties scanning, identity and version resolution, downloads,
// embedded records and toggles together into the operations the CLI exposes.
package engine

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/glorpus-work/modsync/internal/logger"
	"github.com/glorpus-work/modsync/pkg/download"
	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/fsutil"
	"github.com/glorpus-work/modsync/pkg/hooks"
	"github.com/glorpus-work/modsync/pkg/identity"
	"github.com/glorpus-work/modsync/pkg/lock"
	"github.com/glorpus-work/modsync/pkg/metadata"
	"github.com/glorpus-work/modsync/pkg/metrics"
	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/glorpus-work/modsync/pkg/provider"
	"github.com/glorpus-work/modsync/pkg/resolver"
	"github.com/glorpus-work/modsync/pkg/scanner"
	"github.com/glorpus-work/modsync/pkg/toggle"
)

// BackupSuffix names the previous file retained by KeepPrevious.
const BackupSuffix = ".bak"

// Engine runs the directory operations. The zero value is not usable; build
// one with New.
type Engine struct {
	Providers  *provider.Registry
	Identities identity.Resolver
	Versions   resolver.Resolver
	Downloads  download.Manager
	Store      metadata.Store
	Scanner    *scanner.Scanner
	Toggles    *toggle.Manager
	Locks      *lock.Keyed
	Scripts    hooks.Runner
	Metrics    *metrics.Recorder
	Hooks      Hooks
	Now        func() time.Time
}

// Config holds what New needs beyond the provider registry.
type Config struct {
	MaxDepth int
	Scripts  hooks.Runner
	Metrics  *metrics.Recorder
	Hooks    Hooks
}

// New wires the default components around providers.
func New(providers *provider.Registry, cfg Config) *Engine {
	store := metadata.NewStore()
	locks := lock.New()
	dl := download.NewManager()
	if cfg.Metrics != nil {
		rec := cfg.Metrics
		dl.OnAttempt = func(tag model.ProviderTag) { rec.Download(string(tag)) }
	}
	return &Engine{
		Providers:  providers,
		Identities: identity.NewResolver(providers),
		Versions:   resolver.NewResolver(providers, cfg.MaxDepth),
		Downloads:  dl,
		Store:      store,
		Scanner:    scanner.New(store),
		Toggles:    toggle.NewManager(locks),
		Locks:      locks,
		Scripts:    cfg.Scripts,
		Metrics:    cfg.Metrics,
		Hooks:      cfg.Hooks,
		Now:        time.Now,
	}
}

// ListArtifacts returns every artifact in dir with its record and toggle state.
func (e *Engine) ListArtifacts(ctx context.Context, dir string) ([]Listing, error) {
	snap, err := e.Scanner.Scan(ctx, dir)
	if err != nil {
		return nil, err
	}
	out := make([]Listing, 0, len(snap.Artifacts))
	for _, a := range snap.Artifacts {
		l := Listing{
			Name:     a.Canonical,
			Path:     a.Path,
			State:    a.State,
			Record:   a.Record,
			Conflict: snap.Conflicted(a.Canonical),
		}
		if a.MetadataErr != nil {
			l.MetadataError = a.MetadataErr.Error()
		}
		out = append(out, l)
	}
	return out, nil
}

// ApplyToggles brings the named artifacts of dir into the desired states.
// The returned error is set only when the batch was rejected before any
// rename; per-artifact failures are in the results.
func (e *Engine) ApplyToggles(ctx context.Context, dir string, desired map[string]model.ToggleState) (toggle.Results, error) {
	emit(e.Hooks, Event{Phase: "scanning", Msg: dir})
	snap, err := e.Scanner.Scan(ctx, dir)
	if err != nil {
		return nil, err
	}
	results, err := e.Toggles.Apply(ctx, snap.Artifacts, desired)
	if err != nil {
		emit(e.Hooks, Event{Phase: "error", Msg: err.Error()})
		return nil, err
	}
	for _, res := range results {
		e.Metrics.Toggle(string(res.To), res.Err == nil)
		if res.Err != nil {
			emit(e.Hooks, Event{Phase: "error", ID: res.Name, Msg: res.Err.Error()})
		}
	}
	emit(e.Hooks, Event{Phase: "done", Msg: string(results.Status())})
	return results, nil
}

// replacement describes one file swap and its record.
type replacement struct {
	tmp      string // verified download in the artifact's directory
	path     string // file to replace or create
	record   *model.Record
	create   bool // path must not exist yet
	keepPrev bool
}

// replace embeds the record into the verified download and moves it into
// place with a single rename while holding the artifact's slot lock. Readers
// see either the previous file or the new bytes together with their record.
func (e *Engine) replace(ctx context.Context, r replacement) (path, backup string, err error) {
	if err := e.Store.Write(ctx, r.tmp, r.record); err != nil {
		_ = os.Remove(r.tmp)
		return "", "", errors.Wrap(err, "write record")
	}

	unlock, err := e.Locks.Lock(ctx, lock.Key(r.path))
	if err != nil {
		_ = os.Remove(r.tmp)
		return "", "", err
	}
	defer unlock()

	if r.create {
		if err := fsutil.RenameNoReplace(r.tmp, r.path); err != nil {
			_ = os.Remove(r.tmp)
			if errors.Is(err, os.ErrExist) {
				return "", "", &errors.ConflictError{Path: r.path}
			}
			return "", "", err
		}
		return r.path, "", nil
	}

	path, err = currentPath(r.path)
	if err != nil {
		_ = os.Remove(r.tmp)
		return "", "", err
	}

	var saved string
	if r.keepPrev {
		if saved, err = fsutil.Backup(path); err != nil {
			_ = os.Remove(r.tmp)
			return "", "", errors.Wrap(err, "back up artifact")
		}
	}
	if err := os.Rename(r.tmp, path); err != nil {
		_ = os.Remove(r.tmp)
		if saved != "" {
			_ = os.Remove(saved)
		}
		return "", "", errors.Wrap(err, "replace artifact")
	}
	if saved == "" {
		return path, "", nil
	}

	canonical, _ := model.SplitName(path)
	kept := filepath.Join(filepath.Dir(path), canonical+BackupSuffix)
	if err := os.Rename(saved, kept); err != nil {
		logger.Warn("Could not keep previous file", logger.Fields{"path": kept, "error": err})
		_ = os.Remove(saved)
		return path, "", nil
	}
	return path, kept, nil
}

// currentPath follows an artifact that was toggled after the directory was
// scanned.
func currentPath(path string) (string, error) {
	if _, err := os.Lstat(path); err == nil {
		return path, nil
	}
	canonical, state := model.SplitName(path)
	other := model.Disabled
	if state == model.Disabled {
		other = model.Enabled
	}
	alt := filepath.Join(filepath.Dir(path), model.FileNameFor(canonical, other))
	if _, err := os.Lstat(alt); err == nil {
		return alt, nil
	}
	return "", errors.Wrapf(errors.ErrNotFound, "%s no longer exists", path)
}

func (e *Engine) runHook(ctx context.Context, hookType hooks.HookType, hc hooks.HookContext) error {
	if e.Scripts == nil || !e.Scripts.Has(hookType) {
		return nil
	}
	return e.Scripts.Run(ctx, hookType, hc)
}

func (e *Engine) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}
