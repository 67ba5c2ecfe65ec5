package provider

import (
	"context"
	"fmt"

	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/glorpus-work/modsync/pkg/platform"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"
)

// DefaultCacheSize bounds the number of version lists kept per run.
const DefaultCacheSize = 256

type caching struct {
	inner    Client
	versions *lru.Cache[string, []*model.Version]
	group    singleflight.Group
}

// WithCache memoizes ListVersions for the lifetime of the returned client and
// collapses concurrent identical calls into one request. Build one per
// operation; state is never carried across runs.
func WithCache(c Client, size int) Client {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, []*model.Version](size)
	if err != nil {
		// lru.New only fails on a non-positive size.
		panic(err)
	}
	return &caching{inner: c, versions: cache}
}

func (c *caching) Tag() model.ProviderTag { return c.inner.Tag() }

func (c *caching) Search(ctx context.Context, query string) ([]model.Identity, error) {
	return c.inner.Search(ctx, query)
}

func (c *caching) ListVersions(ctx context.Context, id model.Identity, target platform.Target) ([]*model.Version, error) {
	key := fmt.Sprintf("%s|%s", id.Key(), target.Normalize())
	if v, ok := c.versions.Get(key); ok {
		return v, nil
	}
	res, err, _ := c.group.Do(key, func() (any, error) {
		versions, err := c.inner.ListVersions(ctx, id, target)
		if err != nil {
			return nil, err
		}
		c.versions.Add(key, versions)
		return versions, nil
	})
	if err != nil {
		return nil, err
	}
	return res.([]*model.Version), nil
}

func (c *caching) Download(ctx context.Context, v *model.Version) (*Payload, error) {
	return c.inner.Download(ctx, v)
}

func (c *caching) LookupHash(ctx context.Context, algorithm, digest string) (*model.Version, error) {
	hl, ok := c.inner.(HashLookup)
	if !ok {
		return nil, errors.Wrapf(errors.ErrUnavailable, "%s: hash lookup not supported", c.inner.Tag())
	}
	return hl.LookupHash(ctx, algorithm, digest)
}
