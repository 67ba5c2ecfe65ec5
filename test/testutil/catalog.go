// Package testutil holds fixtures shared by package tests: an in-memory
// catalog standing in for a remote provider, and jar builders.
package testutil

import (
	"bytes"
	"context"
	"crypto/sha512"
	"encoding/hex"
	"io"
	"sync"
	"time"

	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/glorpus-work/modsync/pkg/platform"
	"github.com/glorpus-work/modsync/pkg/provider"
)

// Catalog is an in-memory provider.Client and provider.HashLookup.
type Catalog struct {
	tag model.ProviderTag

	mu       sync.Mutex
	projects []model.Identity
	search   map[string][]model.Identity
	versions map[string][]*model.Version
	files    map[string][]byte
	hashes   map[string]*model.Version
	corrupt  map[string]int

	// Failures injected per method; nil means succeed.
	SearchErr   error
	ListErr     error
	DownloadErr error

	searches, lists, downloads, hashLookups int
}

var (
	_ provider.Client     = (*Catalog)(nil)
	_ provider.HashLookup = (*Catalog)(nil)
)

// NewCatalog creates an empty catalog for tag.
func NewCatalog(tag model.ProviderTag) *Catalog {
	return &Catalog{
		tag:      tag,
		search:   make(map[string][]model.Identity),
		versions: make(map[string][]*model.Version),
		files:    make(map[string][]byte),
		hashes:   make(map[string]*model.Version),
		corrupt:  make(map[string]int),
	}
}

// Project builds an identity owned by this catalog.
func (c *Catalog) Project(id, slug, name string) model.Identity {
	return model.Identity{Provider: c.tag, ID: id, Slug: slug, Name: name}
}

// AddProject makes id visible to every search that has no explicit result.
func (c *Catalog) AddProject(id model.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.projects = append(c.projects, id)
}

// SetSearch fixes the result of one query.
func (c *Catalog) SetSearch(query string, ids ...model.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.search[query] = ids
}

// Release describes one version to publish.
type Release struct {
	ID           string
	Number       string
	GameVersions []string
	Loaders      []string
	Published    time.Time
	Dependencies []model.DependencyEdge
	Content      []byte
}

// AddVersion publishes a version of project. Versions are listed in the order
// they were added, so add the newest first. The sha512 of Content becomes the
// published checksum.
func (c *Catalog) AddVersion(project model.Identity, r Release) *model.Version {
	sum := sha512.Sum512(r.Content)
	digest := hex.EncodeToString(sum[:])
	v := &model.Version{
		ID:               r.ID,
		Identity:         project,
		Number:           r.Number,
		PlatformVersions: r.GameVersions,
		Loaders:          r.Loaders,
		DownloadRef:      "mem://" + string(c.tag) + "/" + r.ID,
		FileName:         project.Slug + "-" + r.Number + ".jar",
		Checksum:         model.Checksum{Algorithm: "sha512", Value: digest},
		PublishedAt:      r.Published,
		Dependencies:     r.Dependencies,
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.versions[project.ID] = append(c.versions[project.ID], v)
	c.files[v.ID] = r.Content
	c.hashes[digest] = v
	return v
}

// CorruptNext makes the next n downloads of versionID return damaged bytes.
func (c *Catalog) CorruptNext(versionID string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.corrupt[versionID] = n
}

// Tag implements provider.Client.
func (c *Catalog) Tag() model.ProviderTag { return c.tag }

// Search implements provider.Client.
func (c *Catalog) Search(_ context.Context, query string) ([]model.Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.searches++
	if c.SearchErr != nil {
		return nil, c.SearchErr
	}
	ids, ok := c.search[query]
	if !ok {
		ids = c.projects
	}
	if len(ids) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "no results for %q", query)
	}
	return append([]model.Identity(nil), ids...), nil
}

// ListVersions implements provider.Client. Like the real catalogs it returns
// every build of the project; filtering is left to the resolver.
func (c *Catalog) ListVersions(_ context.Context, id model.Identity, _ platform.Target) ([]*model.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists++
	if c.ListErr != nil {
		return nil, c.ListErr
	}
	vs, ok := c.versions[id.ID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "project %s", id.ID)
	}
	return append([]*model.Version(nil), vs...), nil
}

// Download implements provider.Client.
func (c *Catalog) Download(_ context.Context, v *model.Version) (*provider.Payload, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.downloads++
	if c.DownloadErr != nil {
		return nil, c.DownloadErr
	}
	data, ok := c.files[v.ID]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "file for %s", v.ID)
	}
	if c.corrupt[v.ID] > 0 {
		c.corrupt[v.ID]--
		data = append([]byte("damaged"), data...)
	}
	return &provider.Payload{Body: io.NopCloser(bytes.NewReader(data)), FileName: v.FileName}, nil
}

// LookupHash implements provider.HashLookup.
func (c *Catalog) LookupHash(_ context.Context, algorithm, digest string) (*model.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hashLookups++
	if algorithm != "sha512" {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "algorithm %s", algorithm)
	}
	v, ok := c.hashes[digest]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "hash %s", digest)
	}
	return v, nil
}

// Calls returns how often each method was called.
func (c *Catalog) Calls() (searches, lists, downloads, hashLookups int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.searches, c.lists, c.downloads, c.hashLookups
}

// Downloads returns the number of Download calls.
func (c *Catalog) Downloads() int {
	_, _, d, _ := c.Calls()
	return d
}
