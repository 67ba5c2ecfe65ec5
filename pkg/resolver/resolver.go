// Package resolver picks the version of a project to install and walks its
// required dependencies.
package resolver

import (
	"context"

	"github.com/glorpus-work/modsync/internal/logger"
	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/glorpus-work/modsync/pkg/platform"
	"github.com/glorpus-work/modsync/pkg/provider"
)

// DefaultMaxDepth bounds the length of a required-dependency chain.
const DefaultMaxDepth = 8

// Resolver selects versions for a target.
type Resolver interface {
	// Resolve selects the version of id to install for c and the required
	// closure beneath it.
	Resolve(ctx context.Context, id model.Identity, c model.Constraints) (*model.Resolution, error)
}

// ManagerImpl resolves against the clients of a registry.
type ManagerImpl struct {
	providers *provider.Registry
	maxDepth  int
}

// NewResolver creates a resolver. A maxDepth below one selects DefaultMaxDepth.
func NewResolver(providers *provider.Registry, maxDepth int) *ManagerImpl {
	if maxDepth < 1 {
		maxDepth = DefaultMaxDepth
	}
	return &ManagerImpl{providers: providers, maxDepth: maxDepth}
}

// Select returns the version to install from versions:
// the most recent exact platform+loader match, else the most recent
// compatible one. Versions that fit neither are never returned.
func Select(versions []*model.Version, target platform.Target) (*model.Version, error) {
	var exact, compatible *model.Version
	for _, v := range versions {
		switch v.Match(target) {
		case platform.Exact:
			if exact == nil || v.Newer(exact) {
				exact = v
			}
		case platform.Compatible:
			if compatible == nil || v.Newer(compatible) {
				compatible = v
			}
		}
	}
	if exact != nil {
		return exact, nil
	}
	if compatible != nil {
		return compatible, nil
	}
	return nil, errors.Wrapf(errors.ErrIncompatible, "none of %d versions supports %s", len(versions), target)
}

// Resolve implements Resolver.
func (m *ManagerImpl) Resolve(ctx context.Context, id model.Identity, c model.Constraints) (*model.Resolution, error) {
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(errors.ErrInvalidInput, err.Error())
	}
	w := &walk{
		manager:  m,
		target:   c.Target.Normalize(),
		selected: make(map[string]*model.Version),
		deps:     make(map[string][]string),
		optional: make(map[string]model.Identity),
	}
	if err := w.resolveNode(ctx, id, 0); err != nil {
		return nil, err
	}
	if err := w.checkIncompatible(); err != nil {
		return nil, err
	}

	rootKey := id.Key()
	res := &model.Resolution{Root: w.selected[rootKey]}
	for _, key := range w.topoOrder(rootKey) {
		if key != rootKey {
			res.Dependencies = append(res.Dependencies, w.selected[key])
		}
	}
	for _, key := range w.optionalOrder {
		if _, chosen := w.selected[key]; !chosen {
			res.Optional = append(res.Optional, w.optional[key])
		}
	}

	logger.Debug("Resolved version", logger.Fields{
		"project":      id.String(),
		"version":      res.Root.ID,
		"dependencies": len(res.Dependencies),
		"optional":     len(res.Optional),
	})
	return res, nil
}

type walk struct {
	manager       *ManagerImpl
	target        platform.Target
	selected      map[string]*model.Version // identity key -> chosen version
	deps          map[string][]string       // identity key -> required dep keys
	optional      map[string]model.Identity
	optionalOrder []string
}

func (w *walk) resolveNode(ctx context.Context, id model.Identity, depth int) error {
	key := id.Key()
	if _, ok := w.selected[key]; ok {
		return nil
	}
	if depth > w.manager.maxDepth {
		return errors.Wrapf(errors.ErrIncompatible, "dependency chain deeper than %d at %s", w.manager.maxDepth, id)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	versions, err := w.manager.providers.Get(id.Provider).ListVersions(ctx, id, w.target)
	if err != nil {
		return errors.Wrapf(err, "list versions of %s", id)
	}
	v, err := Select(versions, w.target)
	if err != nil {
		return errors.Wrapf(err, "%s", id)
	}
	w.selected[key] = v

	for _, edge := range v.Dependencies {
		dep := edge.Target
		if dep.Provider == "" {
			dep.Provider = id.Provider
		}
		switch edge.Kind {
		case model.DependencyRequired:
			w.deps[key] = append(w.deps[key], dep.Key())
			if err := w.resolveNode(ctx, dep, depth+1); err != nil {
				return err
			}
		case model.DependencyOptional:
			if _, ok := w.optional[dep.Key()]; !ok {
				w.optional[dep.Key()] = dep
				w.optionalOrder = append(w.optionalOrder, dep.Key())
			}
		}
	}
	return nil
}

// checkIncompatible fails when a selected version declares another selected
// project incompatible.
func (w *walk) checkIncompatible() error {
	for key, v := range w.selected {
		for _, edge := range v.Dependencies {
			if edge.Kind != model.DependencyIncompatible {
				continue
			}
			dep := edge.Target
			if dep.Provider == "" {
				dep.Provider = v.Identity.Provider
			}
			if _, ok := w.selected[dep.Key()]; ok {
				return errors.Wrapf(errors.ErrIncompatible, "%s declares %s incompatible", key, dep.Key())
			}
		}
	}
	return nil
}

func (w *walk) topoOrder(root string) []string {
	order := make([]string, 0, len(w.selected))
	seen := make(map[string]bool, len(w.selected))
	var dfs func(n string)
	dfs = func(n string) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, m := range w.deps[n] {
			dfs(m)
		}
		order = append(order, n)
	}
	dfs(root)
	return order
}
