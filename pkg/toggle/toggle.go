// Package toggle enables and disables artifacts by renaming them between their
// canonical name and the canonical name plus the disabled suffix.
package toggle

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/glorpus-work/modsync/internal/logger"
	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/fsutil"
	"github.com/glorpus-work/modsync/pkg/lock"
	"github.com/glorpus-work/modsync/pkg/model"
)

const stagePattern = ".modsync-*.toggle"

// Result is the outcome of one requested toggle.
type Result struct {
	Name    string            `json:"name"`
	Path    string            `json:"path"`
	NewPath string            `json:"new_path,omitempty"`
	From    model.ToggleState `json:"from,omitempty"`
	To      model.ToggleState `json:"to"`
	Changed bool              `json:"changed"`
	Err     error             `json:"-"`
}

// Results holds one Result per requested name, sorted by name.
type Results []Result

// Failed returns the results that carry an error.
func (r Results) Failed() Results {
	var out Results
	for _, res := range r {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Status summarizes the batch.
func (r Results) Status() model.BatchStatus {
	return model.StatusOf(len(r), len(r.Failed()))
}

// Manager renames artifacts. Each rename holds the artifact's slot lock so it
// never interleaves with an update replacing the same file.
type Manager struct {
	locks *lock.Keyed
}

// NewManager creates a Manager sharing locks with other writers.
func NewManager(locks *lock.Keyed) *Manager {
	if locks == nil {
		locks = lock.New()
	}
	return &Manager{locks: locks}
}

// Enable renames a disabled artifact to its canonical name.
func (m *Manager) Enable(ctx context.Context, path string) (string, error) {
	return m.Set(ctx, path, model.Enabled)
}

// Disable renames an enabled artifact to its disabled name.
func (m *Manager) Disable(ctx context.Context, path string) (string, error) {
	return m.Set(ctx, path, model.Disabled)
}

// Set moves the artifact at path into state and returns its new path. It is a
// no-op when the artifact is already in state. An occupied destination fails
// with a ConflictError and leaves both files untouched.
func (m *Manager) Set(ctx context.Context, path string, state model.ToggleState) (string, error) {
	canonical, current := model.SplitName(path)
	dst := filepath.Join(filepath.Dir(path), model.FileNameFor(canonical, state))
	if current == state {
		return path, nil
	}

	unlock, err := m.locks.Lock(ctx, lock.Key(path))
	if err != nil {
		return "", err
	}
	defer unlock()

	if err := rename(path, dst); err != nil {
		return "", err
	}
	logger.Debug("Toggled artifact", logger.Fields{"from": filepath.Base(path), "to": filepath.Base(dst)})
	return dst, nil
}

func rename(src, dst string) error {
	err := fsutil.RenameNoReplace(src, dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrExist):
		return &errors.ConflictError{Path: src, Existing: dst}
	case errors.Is(err, os.ErrNotExist):
		return errors.Wrapf(errors.ErrNotFound, "%s", src)
	default:
		return err
	}
}

type op struct {
	res    *Result
	src    string
	dst    string
	staged string
}

// Apply brings the artifacts named in desired into the requested states.
// Keys are current file names or canonical names; a canonical name applies
// to every artifact sharing it.
//
// The resulting name set is checked before anything is renamed: if two
// artifacts would end up with the same file name the whole batch fails with
// ErrNameConflict and nothing is touched. Once renaming starts, a failing
// item is recorded in its Result and the remaining items still run.
func (m *Manager) Apply(ctx context.Context, artifacts []*model.Artifact, desired map[string]model.ToggleState) (Results, error) {
	byName := make(map[string]*model.Artifact, len(artifacts))
	byCanonical := make(map[string][]*model.Artifact)
	for _, a := range artifacts {
		byName[filepath.Base(a.Path)] = a
		byCanonical[a.Canonical] = append(byCanonical[a.Canonical], a)
	}

	names := make([]string, 0, len(desired))
	for name := range desired {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make(Results, 0, len(names))
	target := make(map[string]model.ToggleState)
	for _, name := range names {
		state := desired[name]
		var matches []*model.Artifact
		if a, ok := byName[name]; ok {
			matches = []*model.Artifact{a}
		} else {
			canonical, _ := model.SplitName(name)
			matches = byCanonical[canonical]
		}
		if len(matches) == 0 {
			results = append(results, Result{Name: name, To: state, Err: errors.Wrapf(errors.ErrNotFound, "no artifact named %s", name)})
			continue
		}
		for _, a := range matches {
			target[a.Path] = state
			results = append(results, Result{Name: name, Path: a.Path, From: a.State, To: state})
		}
	}

	if err := validateNames(artifacts, target); err != nil {
		return nil, err
	}

	var disables, enables []*op
	for i := range results {
		res := &results[i]
		if res.Err != nil {
			continue
		}
		if res.From == res.To {
			res.NewPath = res.Path
			continue
		}
		canonical, _ := model.SplitName(res.Path)
		o := &op{res: res, src: res.Path, dst: filepath.Join(filepath.Dir(res.Path), model.FileNameFor(canonical, res.To))}
		if res.To == model.Disabled {
			disables = append(disables, o)
		} else {
			enables = append(enables, o)
		}
	}

	ordered := append(disables, enables...)
	pending := make(map[string]bool, len(ordered))
	for _, o := range ordered {
		pending[o.src] = true
	}

	for _, o := range ordered {
		if err := ctx.Err(); err != nil {
			o.res.Err = err
			continue
		}
		m.run(ctx, o, pending)
	}
	for _, o := range ordered {
		if o.staged == "" || o.res.Err != nil {
			continue
		}
		m.finish(ctx, o)
	}

	logger.Debug("Applied toggles", logger.Fields{"requested": len(desired), "renamed": len(ordered)})
	return results, nil
}

// run renames one artifact. When the destination is held by another artifact
// that is about to move away, the source is parked under a scratch name and
// finished after every direct rename has run.
func (m *Manager) run(ctx context.Context, o *op, pending map[string]bool) {
	unlock, err := m.locks.Lock(ctx, lock.Key(o.src))
	if err != nil {
		o.res.Err = err
		return
	}
	defer unlock()

	delete(pending, o.src)
	if pending[o.dst] {
		staged, err := stageName(o.src)
		if err == nil {
			err = rename(o.src, staged)
		}
		if err != nil {
			o.res.Err = err
			return
		}
		o.staged = staged
		return
	}

	if err := rename(o.src, o.dst); err != nil {
		o.res.Err = err
		return
	}
	o.res.NewPath = o.dst
	o.res.Changed = true
}

func (m *Manager) finish(ctx context.Context, o *op) {
	unlock, err := m.locks.Lock(ctx, lock.Key(o.dst))
	if err != nil {
		o.res.Err = err
		o.res.NewPath = o.staged
		return
	}
	defer unlock()

	if err := rename(o.staged, o.dst); err != nil {
		logger.Warn("Staged toggle could not be finished", logger.Fields{"staged": o.staged, "target": o.dst, "error": err})
		if rerr := rename(o.staged, o.src); rerr == nil {
			o.res.Err = err
			return
		}
		o.res.Err = errors.Wrapf(err, "artifact left at %s", o.staged)
		o.res.NewPath = o.staged
		return
	}
	o.res.NewPath = o.dst
	o.res.Changed = true
}

func stageName(src string) (string, error) {
	f, err := fsutil.CreateTempSibling(src, stagePattern)
	if err != nil {
		return "", err
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		return "", err
	}
	return name, nil
}

// validateNames fails when applying target would leave two artifacts with
// the same file name.
func validateNames(artifacts []*model.Artifact, target map[string]model.ToggleState) error {
	owners := make(map[string]string, len(artifacts))
	for _, a := range artifacts {
		state := a.State
		if s, ok := target[a.Path]; ok {
			state = s
		}
		name := filepath.Join(a.Dir(), model.FileNameFor(a.Canonical, state))
		if other, ok := owners[name]; ok {
			return &errors.ConflictError{Path: a.Path, Existing: other}
		}
		owners[name] = a.Path
	}
	return nil
}
