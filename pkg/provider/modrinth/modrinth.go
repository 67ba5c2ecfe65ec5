// Package modrinth implements the provider capability against the Modrinth v2 API.
package modrinth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/glorpus-work/modsync/internal/logger"
	"github.com/glorpus-work/modsync/pkg/errors"
	mhttp "github.com/glorpus-work/modsync/pkg/http"
	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/glorpus-work/modsync/pkg/platform"
	"github.com/glorpus-work/modsync/pkg/provider"
)

// DefaultBaseURL is the public API endpoint.
const DefaultBaseURL = "https://api.modrinth.com"

// SearchLimit caps the number of hits requested per search.
const SearchLimit = 10

// Client talks to one Modrinth API endpoint.
type Client struct {
	http    mhttp.Client
	baseURL string
	token   string
}

// New creates a client. An empty baseURL selects the public API.
func New(hc mhttp.Client, baseURL, token string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/"), token: token}
}

func (c *Client) Tag() model.ProviderTag { return model.ProviderModrinth }

func (c *Client) header() http.Header {
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", c.token)
	}
	return h
}

type searchResponse struct {
	Hits []struct {
		ProjectID string `json:"project_id"`
		Slug      string `json:"slug"`
		Title     string `json:"title"`
	} `json:"hits"`
}

// Search implements provider.Client.
func (c *Client) Search(ctx context.Context, query string) ([]model.Identity, error) {
	facets, _ := json.Marshal([][]string{{"project_type:mod"}})
	q := url.Values{}
	q.Set("query", query)
	q.Set("limit", strconv.Itoa(SearchLimit))
	q.Set("facets", string(facets))

	var resp searchResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/v2/search?"+q.Encode(), c.header(), &resp); err != nil {
		return nil, errors.Wrapf(err, "modrinth search %q", query)
	}
	if len(resp.Hits) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "modrinth search %q returned no hits", query)
	}
	out := make([]model.Identity, 0, len(resp.Hits))
	for _, h := range resp.Hits {
		out = append(out, model.Identity{Provider: model.ProviderModrinth, ID: h.ProjectID, Slug: h.Slug, Name: h.Title})
	}
	return out, nil
}

type versionFile struct {
	URL      string            `json:"url"`
	Filename string            `json:"filename"`
	Primary  bool              `json:"primary"`
	Hashes   map[string]string `json:"hashes"`
}

type versionDependency struct {
	ProjectID      string `json:"project_id"`
	VersionID      string `json:"version_id"`
	DependencyType string `json:"dependency_type"`
}

type versionResponse struct {
	ID            string              `json:"id"`
	ProjectID     string              `json:"project_id"`
	VersionNumber string              `json:"version_number"`
	GameVersions  []string            `json:"game_versions"`
	Loaders       []string            `json:"loaders"`
	DatePublished time.Time           `json:"date_published"`
	Dependencies  []versionDependency `json:"dependencies"`
	Files         []versionFile       `json:"files"`
}

// loaderFilter lists the catalog loaders whose builds run under target.
func loaderFilter(loader string) []string {
	loader = platform.NormalizeLoader(loader)
	if loader == platform.LoaderQuilt {
		return []string{platform.LoaderQuilt, platform.LoaderFabric}
	}
	return []string{loader}
}

// ListVersions implements provider.Client.
func (c *Client) ListVersions(ctx context.Context, id model.Identity, target platform.Target) ([]*model.Version, error) {
	gv, _ := json.Marshal([]string{target.GameVersion})
	loaders, _ := json.Marshal(loaderFilter(target.Loader))
	q := url.Values{}
	q.Set("game_versions", string(gv))
	q.Set("loaders", string(loaders))

	endpoint := fmt.Sprintf("%s/v2/project/%s/version?%s", c.baseURL, url.PathEscape(id.ID), q.Encode())
	var resp []versionResponse
	if err := c.http.GetJSON(ctx, endpoint, c.header(), &resp); err != nil {
		return nil, errors.Wrapf(err, "modrinth versions of %s", id.Key())
	}

	out := make([]*model.Version, 0, len(resp))
	for i := range resp {
		v, ok := toVersion(&resp[i], id)
		if !ok {
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// LookupHash implements provider.HashLookup.
func (c *Client) LookupHash(ctx context.Context, algorithm, digest string) (*model.Version, error) {
	endpoint := fmt.Sprintf("%s/v2/version_file/%s?algorithm=%s", c.baseURL, url.PathEscape(digest), url.QueryEscape(algorithm))
	var resp versionResponse
	if err := c.http.GetJSON(ctx, endpoint, c.header(), &resp); err != nil {
		return nil, errors.Wrap(err, "modrinth hash lookup")
	}

	id := model.Identity{Provider: model.ProviderModrinth, ID: resp.ProjectID}
	var project struct {
		ID    string `json:"id"`
		Slug  string `json:"slug"`
		Title string `json:"title"`
	}
	if err := c.http.GetJSON(ctx, c.baseURL+"/v2/project/"+url.PathEscape(resp.ProjectID), c.header(), &project); err == nil {
		id.Slug, id.Name = project.Slug, project.Title
	} else {
		logger.Debug("Project lookup after hash match failed", logger.Fields{"project": resp.ProjectID, "error": err})
	}

	v, ok := toVersion(&resp, id)
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "modrinth version %s has no downloadable file", resp.ID)
	}
	return v, nil
}

// Download implements provider.Client.
func (c *Client) Download(ctx context.Context, v *model.Version) (*provider.Payload, error) {
	if v.DownloadRef == "" {
		return nil, errors.Wrapf(errors.ErrNotFound, "version %s has no download reference", v.ID)
	}
	body, err := c.http.Open(ctx, v.DownloadRef, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "modrinth download %s", v.ID)
	}
	return &provider.Payload{Body: body, Checksum: v.Checksum, FileName: v.FileName}, nil
}

func toVersion(r *versionResponse, id model.Identity) (*model.Version, bool) {
	file := primaryFile(r.Files)
	if file == nil {
		logger.Debug("Skipping version without files", logger.Fields{"version": r.ID})
		return nil, false
	}
	if id.ID == "" {
		id.ID = r.ProjectID
	}
	v := &model.Version{
		ID:               r.ID,
		Identity:         id,
		Number:           r.VersionNumber,
		PlatformVersions: r.GameVersions,
		Loaders:          r.Loaders,
		DownloadRef:      file.URL,
		FileName:         file.Filename,
		Checksum:         pickHash(file.Hashes),
		PublishedAt:      r.DatePublished,
	}
	for _, d := range r.Dependencies {
		kind, ok := dependencyKind(d.DependencyType)
		if !ok {
			continue
		}
		if d.ProjectID == "" {
			// Version-pinned edges without a project id cannot be keyed by identity.
			logger.Debug("Skipping dependency without project id", logger.Fields{"version": r.ID, "dep_version": d.VersionID})
			continue
		}
		v.Dependencies = append(v.Dependencies, model.DependencyEdge{
			Target: model.Identity{Provider: model.ProviderModrinth, ID: d.ProjectID},
			Kind:   kind,
		})
	}
	return v, true
}

func dependencyKind(s string) (model.DependencyKind, bool) {
	switch s {
	case "required":
		return model.DependencyRequired, true
	case "optional":
		return model.DependencyOptional, true
	case "incompatible":
		return model.DependencyIncompatible, true
	default:
		// "embedded" dependencies ship inside the jar.
		return "", false
	}
}

func primaryFile(files []versionFile) *versionFile {
	for i := range files {
		if files[i].Primary {
			return &files[i]
		}
	}
	if len(files) > 0 {
		return &files[0]
	}
	return nil
}

func pickHash(h map[string]string) model.Checksum {
	for _, alg := range []string{"sha512", "sha256", "sha1"} {
		if v := h[alg]; v != "" {
			return model.Checksum{Algorithm: alg, Value: strings.ToLower(v)}
		}
	}
	return model.Checksum{}
}
