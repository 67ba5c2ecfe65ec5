package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glorpus-work/modsync/internal/logger"
	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/fsutil"
	"github.com/glorpus-work/modsync/pkg/hooks"
	"github.com/glorpus-work/modsync/pkg/model"
)

// ResolveAndInstall installs target and its required dependencies into dir.
// When dir already holds a tracked artifact of the same project, that
// artifact is updated in place instead.
func (e *Engine) ResolveAndInstall(ctx context.Context, dir string, target Target, c model.Constraints) (*Report, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	if err := fsutil.EnsureDir(dir); err != nil {
		return nil, errors.Wrapf(err, "create mods directory %s", dir)
	}

	emit(e.Hooks, Event{Phase: "identifying", Msg: target.String()})
	id, err := e.targetIdentity(ctx, target, c.Provider)
	if err != nil {
		return nil, err
	}

	snap, err := e.Scanner.Scan(ctx, dir)
	if err != nil {
		return nil, err
	}
	b := e.newBatch(dir, c, UpdateOptions{Concurrency: 1, DuplicatePolicy: DuplicateReject})
	for _, a := range snap.Artifacts {
		if a.Record == nil {
			continue
		}
		if _, ok := b.present[a.Record.Identity().Key()]; !ok {
			b.present[a.Record.Identity().Key()] = a
		}
	}

	started := time.Now()
	var out Outcome
	if existing, ok := b.present[id.Key()]; ok {
		out = Outcome{Name: existing.Canonical, Path: existing.Path, Identity: id, FromVersion: existing.Record.VersionID}
		if snap.Conflicted(existing.Canonical) {
			out.Status = StatusFailed
			out.Err = &errors.ConflictError{Path: existing.Path, Existing: otherPath(snap.Conflicts[existing.Canonical], existing.Path)}
		} else {
			out = b.update(ctx, existing, out)
		}
	} else {
		out = b.install(ctx, id)
	}
	e.Metrics.Outcome(string(out.Status), time.Since(started))
	if out.Status == StatusFailed {
		emit(e.Hooks, Event{Phase: "error", ID: out.Name, Msg: out.Error()})
	}

	report := b.finish([]Outcome{out})
	emit(e.Hooks, Event{Phase: "done", Msg: string(report.Status())})
	return report, nil
}

func (e *Engine) targetIdentity(ctx context.Context, target Target, only model.ProviderTag) (model.Identity, error) {
	if target.Identity.IsZero() {
		return e.Identities.ResolveQuery(ctx, target.Query, only)
	}
	id := target.Identity
	if id.Provider == "" {
		id.Provider = only
	}
	if id.Provider == "" || id.ID == "" {
		return model.Identity{}, errors.Wrapf(errors.ErrInvalidInput, "identity %q needs a provider and a project id", id.String())
	}
	if _, err := model.ParseProviderTag(string(id.Provider)); err != nil {
		return model.Identity{}, errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	return id, nil
}

// install places a project that is not in the directory yet.
func (b *batch) install(ctx context.Context, id model.Identity) Outcome {
	e := b.e
	out := Outcome{Name: id.String(), Identity: id}
	fail := func(err error) Outcome {
		out.Status = StatusFailed
		out.Err = err
		return out
	}

	emit(e.Hooks, Event{Phase: "resolving", ID: out.Name})
	res, err := e.Versions.Resolve(ctx, id, b.c)
	if err != nil {
		return fail(err)
	}
	b.addOptional(res.Optional)
	root := res.Root
	out.Name = artifactFileName(root)
	out.Path = filepath.Join(b.dir, out.Name)
	out.ToVersion = root.ID

	if err := b.ensureDependencies(ctx, res.Dependencies, out.Name); err != nil {
		return fail(err)
	}
	if err := b.place(ctx, root, out.Path, "install"); err != nil {
		if errors.Is(err, errPlanned) {
			out.Status = StatusPlanned
			return out
		}
		return fail(err)
	}
	out.Status = StatusSucceeded
	return out
}

// ensureDependencies installs every missing member of a resolved closure,
// in order. A dependency already in the directory is left to its own
// pipeline. Each project is installed at most once per batch.
func (b *batch) ensureDependencies(ctx context.Context, deps []*model.Version, owner string) error {
	for _, v := range deps {
		key := v.Identity.Key()
		if _, ok := b.present[key]; ok {
			continue
		}
		_, err, _ := b.flight.Do(key, func() (any, error) {
			b.mu.Lock()
			prev, done := b.deps[key]
			b.mu.Unlock()
			if done {
				return nil, prev
			}
			err := b.installDependency(ctx, v, owner)
			b.mu.Lock()
			b.deps[key] = err
			b.mu.Unlock()
			return nil, err
		})
		if err != nil {
			return errors.Wrapf(err, "dependency %s", v.Identity)
		}
	}
	return nil
}

func (b *batch) installDependency(ctx context.Context, v *model.Version, owner string) error {
	started := time.Now()
	name := artifactFileName(v)
	out := Outcome{
		Name:      name,
		Path:      filepath.Join(b.dir, name),
		Identity:  v.Identity,
		ToVersion: v.ID,
		Reason:    "required by " + owner,
	}
	err := b.place(ctx, v, out.Path, "install")
	switch {
	case err == nil:
		out.Status = StatusSucceeded
	case errors.Is(err, errPlanned):
		out.Status = StatusPlanned
		err = nil
	default:
		out.Status = StatusFailed
		out.Err = err
	}
	b.e.Metrics.Outcome(string(out.Status), time.Since(started))
	b.addOutcome(out)
	return err
}

var errPlanned = fmt.Errorf("dry run: nothing fetched")

// place downloads v and creates path with its record. In a dry run nothing
// is fetched and errPlanned is returned.
func (b *batch) place(ctx context.Context, v *model.Version, path, operation string) error {
	e := b.e
	if b.opts.DryRun {
		return errPlanned
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	name := filepath.Base(path)
	emit(e.Hooks, Event{Phase: "downloading", ID: name, Msg: v.ID})
	tmp, err := e.Downloads.Fetch(ctx, e.Providers.Get(v.Identity.Provider), v, b.dir)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		removeQuiet(tmp)
		return err
	}

	hc := hooks.HookContext{
		Operation:  operation,
		Artifact:   name,
		Path:       path,
		Dir:        b.dir,
		Provider:   string(v.Identity.Provider),
		ProjectID:  v.Identity.ID,
		NewVersion: v.ID,
	}
	if err := e.runHook(ctx, hooks.PreUpdate, hc); err != nil {
		removeQuiet(tmp)
		return err
	}

	emit(e.Hooks, Event{Phase: "installing", ID: name, Msg: v.ID})
	if _, _, err := e.replace(ctx, replacement{
		tmp:    tmp,
		path:   path,
		record: model.NewRecord(v, b.c, e.now()),
		create: true,
	}); err != nil {
		return err
	}
	if err := e.runHook(ctx, hooks.PostUpdate, hc); err != nil {
		logger.Warn("post-update hook failed", logger.Fields{"artifact": name, "error": err})
	}
	logger.Debug("Artifact installed", logger.Fields{"artifact": name, "version": v.ID})
	return nil
}

// artifactFileName returns the file name a new artifact is installed under.
func artifactFileName(v *model.Version) string {
	name := filepath.Base(strings.TrimSpace(v.FileName))
	if name == "." || name == string(filepath.Separator) || !model.IsArtifactName(name) {
		slug := v.Identity.Slug
		if slug == "" {
			slug = strings.ReplaceAll(v.Identity.ID, "/", "-")
		}
		name = slug + "-" + v.ID + model.ArtifactExt
	}
	canonical, _ := model.SplitName(name)
	return canonical
}

func removeQuiet(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logger.Debug("Could not remove scratch file", logger.Fields{"path": path, "error": err})
	}
}
