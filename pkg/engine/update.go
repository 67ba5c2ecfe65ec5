package engine

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/glorpus-work/modsync/internal/logger"
	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/hooks"
	"github.com/glorpus-work/modsync/pkg/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// batch is the state shared by the pipelines of one operation.
type batch struct {
	e    *Engine
	dir  string
	c    model.Constraints
	opts UpdateOptions

	// present maps identity keys to artifacts already in dir.
	present map[string]*model.Artifact

	flight singleflight.Group
	mu     sync.Mutex
	deps   map[string]error
	extra  []Outcome
	opt    map[string]model.Identity
}

func (e *Engine) newBatch(dir string, c model.Constraints, opts UpdateOptions) *batch {
	return &batch{
		e:       e,
		dir:     dir,
		c:       c,
		opts:    opts,
		present: make(map[string]*model.Artifact),
		deps:    make(map[string]error),
		opt:     make(map[string]model.Identity),
	}
}

func (b *batch) addOutcome(o Outcome) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.extra = append(b.extra, o)
}

func (b *batch) addOptional(ids []model.Identity) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		b.opt[id.Key()] = id
	}
}

func (b *batch) finish(items []Outcome) *Report {
	report := &Report{Items: append(items, b.extra...)}
	for key, id := range b.opt {
		if _, ok := b.present[key]; !ok {
			report.Optional = append(report.Optional, id)
		}
	}
	report.sort()
	return report
}

// UpdateDirectory brings every artifact in dir to the version selected for c.
// Artifacts are processed concurrently and independently: a failure is
// recorded in the report and never stops the others. The returned error is
// reserved for problems with the operation itself, such as an unreadable
// directory or invalid constraints.
func (e *Engine) UpdateDirectory(ctx context.Context, dir string, c model.Constraints, opts UpdateOptions) (*Report, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	policy, err := ParseDuplicatePolicy(string(opts.DuplicatePolicy))
	if err != nil {
		return nil, err
	}
	opts.DuplicatePolicy = policy
	if opts.Concurrency < 1 {
		opts.Concurrency = DefaultConcurrency
	}

	emit(e.Hooks, Event{Phase: "scanning", Msg: dir})
	snap, err := e.Scanner.Scan(ctx, dir)
	if err != nil {
		return nil, err
	}

	b := e.newBatch(dir, c, opts)
	items := make([]Outcome, len(snap.Artifacts))
	started := make([]time.Time, len(snap.Artifacts))
	ids := make([]model.Identity, len(snap.Artifacts))

	// Identities first: duplicates can only be detected once every artifact
	// is known.
	g := new(errgroup.Group)
	g.SetLimit(opts.Concurrency)
	for i, a := range snap.Artifacts {
		started[i] = time.Now()
		items[i] = Outcome{Name: a.Canonical, Path: a.Path}
		if a.Record != nil {
			items[i].FromVersion = a.Record.VersionID
		}
		if snap.Conflicted(a.Canonical) {
			items[i].Status = StatusFailed
			items[i].Err = &errors.ConflictError{Path: a.Path, Existing: otherPath(snap.Conflicts[a.Canonical], a.Path)}
			continue
		}
		g.Go(func() error {
			id, err := e.identify(ctx, a, c.Provider)
			if err != nil {
				items[i].Status = StatusFailed
				items[i].Err = err
				return nil
			}
			ids[i] = id
			items[i].Identity = id
			return nil
		})
	}
	_ = g.Wait()

	b.applyDuplicatePolicy(snap.Artifacts, items, ids)

	g = new(errgroup.Group)
	g.SetLimit(opts.Concurrency)
	for i, a := range snap.Artifacts {
		if items[i].Status != "" {
			continue
		}
		g.Go(func() error {
			items[i] = b.update(ctx, a, items[i])
			return nil
		})
	}
	_ = g.Wait()

	for i := range items {
		e.Metrics.Outcome(string(items[i].Status), time.Since(started[i]))
		if items[i].Status == StatusFailed {
			emit(e.Hooks, Event{Phase: "error", ID: items[i].Name, Msg: items[i].Error()})
		}
	}
	report := b.finish(items)
	emit(e.Hooks, Event{Phase: "done", Msg: string(report.Status())})
	return report, nil
}

func (e *Engine) identify(ctx context.Context, a *model.Artifact, only model.ProviderTag) (model.Identity, error) {
	if err := ctx.Err(); err != nil {
		return model.Identity{}, err
	}
	emit(e.Hooks, Event{Phase: "identifying", ID: a.Canonical})
	id, err := e.Identities.Resolve(ctx, a, only)
	if err != nil {
		return model.Identity{}, err
	}
	if a.Record != nil {
		e.Metrics.Identified("record")
	} else {
		e.Metrics.Identified("inferred")
	}
	return id, nil
}

// applyDuplicatePolicy groups identified artifacts by project and settles
// groups with more than one member. It also fills b.present.
func (b *batch) applyDuplicatePolicy(artifacts []*model.Artifact, items []Outcome, ids []model.Identity) {
	groups := make(map[string][]int)
	var order []string
	for i := range artifacts {
		if items[i].Status != "" || ids[i].IsZero() {
			continue
		}
		key := ids[i].Key()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], i)
	}

	for _, key := range order {
		members := groups[key]
		b.present[key] = artifacts[members[0]]
		if len(members) == 1 {
			continue
		}

		paths := make([]string, 0, len(members))
		for _, i := range members {
			paths = append(paths, artifacts[i].Path)
		}
		if b.opts.DuplicatePolicy == DuplicateReject {
			for _, i := range members {
				items[i].Status = StatusFailed
				items[i].Err = &errors.DuplicateError{Identity: key, Paths: paths}
			}
			continue
		}

		keep := members[0]
		for _, i := range members[1:] {
			if installedAfter(artifacts[i], artifacts[keep]) {
				keep = i
			}
		}
		b.present[key] = artifacts[keep]
		for _, i := range members {
			if i == keep {
				continue
			}
			items[i].Status = StatusSkipped
			items[i].Reason = "duplicate of " + filepath.Base(artifacts[keep].Path)
		}
	}
}

// installedAfter orders duplicates by record install time. Untracked
// artifacts sort before tracked ones.
func installedAfter(a, b *model.Artifact) bool {
	switch {
	case a.Record == nil:
		return false
	case b.Record == nil:
		return true
	default:
		return a.Record.InstalledAt.After(b.Record.InstalledAt)
	}
}

func otherPath(paths []string, self string) string {
	for _, p := range paths {
		if p != self {
			return p
		}
	}
	return ""
}

// update runs the version, download, replace and record stages for one
// identified artifact.
func (b *batch) update(ctx context.Context, a *model.Artifact, out Outcome) Outcome {
	e := b.e
	fail := func(err error) Outcome {
		out.Status = StatusFailed
		out.Err = err
		return out
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	emit(e.Hooks, Event{Phase: "resolving", ID: a.Canonical, Msg: out.Identity.String()})
	res, err := e.Versions.Resolve(ctx, out.Identity, b.c)
	if err != nil {
		return fail(err)
	}
	b.addOptional(res.Optional)
	root := res.Root
	out.ToVersion = root.ID

	if a.Record != nil && a.Record.VersionID == root.ID {
		out.Status = StatusSkipped
		out.Reason = "already current"
		emit(e.Hooks, Event{Phase: "skipped", ID: a.Canonical, Msg: root.ID})
		return out
	}

	if err := b.ensureDependencies(ctx, res.Dependencies, a.Canonical); err != nil {
		return fail(err)
	}
	if b.opts.DryRun {
		out.Status = StatusPlanned
		return out
	}

	if err := ctx.Err(); err != nil {
		return fail(err)
	}
	emit(e.Hooks, Event{Phase: "downloading", ID: a.Canonical, Msg: root.ID})
	tmp, err := e.Downloads.Fetch(ctx, e.Providers.Get(root.Identity.Provider), root, b.dir)
	if err != nil {
		return fail(err)
	}

	hc := hooks.HookContext{
		Operation:  "update",
		Artifact:   a.Canonical,
		Path:       a.Path,
		Dir:        b.dir,
		Provider:   string(out.Identity.Provider),
		ProjectID:  out.Identity.ID,
		OldVersion: out.FromVersion,
		NewVersion: root.ID,
	}
	if err := ctx.Err(); err != nil {
		removeQuiet(tmp)
		return fail(err)
	}
	if err := e.runHook(ctx, hooks.PreUpdate, hc); err != nil {
		removeQuiet(tmp)
		return fail(err)
	}

	emit(e.Hooks, Event{Phase: "replacing", ID: a.Canonical, Msg: root.ID})
	path, backup, err := e.replace(ctx, replacement{
		tmp:      tmp,
		path:     a.Path,
		record:   model.NewRecord(root, b.c, e.now()),
		keepPrev: b.opts.KeepPrevious,
	})
	if err != nil {
		return fail(err)
	}
	out.Path = path
	out.Backup = backup
	out.Status = StatusSucceeded

	hc.Path = path
	if err := e.runHook(ctx, hooks.PostUpdate, hc); err != nil {
		logger.Warn("post-update hook failed", logger.Fields{"artifact": a.Canonical, "error": err})
	}
	logger.Debug("Artifact updated", logger.Fields{"artifact": a.Canonical, "from": out.FromVersion, "to": root.ID})
	return out
}
