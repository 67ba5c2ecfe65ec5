// Package github resolves mods distributed as release assets of source
// repositories. A project identity is the "owner/repo" pair.
package github

import (
	"context"
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

// DefaultBaseURL is the public REST endpoint.
const DefaultBaseURL = "https://api.github.com"

const (
	searchPerPage   = 10
	releasesPerPage = 30
)

// Client lists releases of one GitHub API endpoint.
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

func (c *Client) Tag() model.ProviderTag { return model.ProviderGitHub }

func (c *Client) header() http.Header {
	h := http.Header{}
	h.Set("Accept", "application/vnd.github+json")
	h.Set("X-GitHub-Api-Version", "2022-11-28")
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	return h
}

type searchResponse struct {
	Items []struct {
		FullName string `json:"full_name"`
		Name     string `json:"name"`
	} `json:"items"`
}

// Search implements provider.Client.
func (c *Client) Search(ctx context.Context, query string) ([]model.Identity, error) {
	q := url.Values{}
	q.Set("q", query+" in:name")
	q.Set("per_page", strconv.Itoa(searchPerPage))

	var resp searchResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/search/repositories?"+q.Encode(), c.header(), &resp); err != nil {
		return nil, errors.Wrapf(err, "github search %q", query)
	}
	if len(resp.Items) == 0 {
		return nil, errors.Wrapf(errors.ErrNotFound, "github search %q returned no repositories", query)
	}
	out := make([]model.Identity, 0, len(resp.Items))
	for _, it := range resp.Items {
		out = append(out, model.Identity{Provider: model.ProviderGitHub, ID: it.FullName, Slug: it.Name, Name: it.Name})
	}
	return out, nil
}

type asset struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	BrowserDownloadURL string `json:"browser_download_url"`
	Digest             string `json:"digest"`
}

type release struct {
	TagName     string    `json:"tag_name"`
	Draft       bool      `json:"draft"`
	PublishedAt time.Time `json:"published_at"`
	Assets      []asset   `json:"assets"`
}

// ListVersions implements provider.Client. Each release contributes at most
// one version: its first jar asset whose name carries both the target game
// version and a loader usable for the target.
func (c *Client) ListVersions(ctx context.Context, id model.Identity, target platform.Target) ([]*model.Version, error) {
	owner, repo, ok := strings.Cut(id.ID, "/")
	if !ok || owner == "" || repo == "" {
		return nil, errors.Wrapf(errors.ErrNotFound, "github identity %q is not owner/repo", id.ID)
	}
	endpoint := fmt.Sprintf("%s/repos/%s/%s/releases?per_page=%d", c.baseURL, url.PathEscape(owner), url.PathEscape(repo), releasesPerPage)

	var releases []release
	if err := c.http.GetJSON(ctx, endpoint, c.header(), &releases); err != nil {
		return nil, errors.Wrapf(err, "github releases of %s", id.ID)
	}

	target = target.Normalize()
	out := make([]*model.Version, 0, len(releases))
	for _, rel := range releases {
		if rel.Draft {
			continue
		}
		a, loader := matchAsset(rel.Assets, target)
		if a == nil {
			logger.Debug("No matching asset in release", logger.Fields{"repo": id.ID, "tag": rel.TagName, "target": target.String()})
			continue
		}
		out = append(out, &model.Version{
			ID:               strconv.FormatInt(a.ID, 10),
			Identity:         id,
			Number:           strings.TrimPrefix(rel.TagName, "v"),
			PlatformVersions: []string{target.GameVersion},
			Loaders:          []string{loader},
			DownloadRef:      a.BrowserDownloadURL,
			FileName:         a.Name,
			Checksum:         parseDigest(a.Digest),
			PublishedAt:      rel.PublishedAt,
		})
	}
	return out, nil
}

// Download implements provider.Client.
func (c *Client) Download(ctx context.Context, v *model.Version) (*provider.Payload, error) {
	if v.DownloadRef == "" {
		return nil, errors.Wrapf(errors.ErrNotFound, "asset %s has no download url", v.ID)
	}
	h := http.Header{}
	if c.token != "" {
		h.Set("Authorization", "Bearer "+c.token)
	}
	body, err := c.http.Open(ctx, v.DownloadRef, h)
	if err != nil {
		return nil, errors.Wrapf(err, "github download %s", v.FileName)
	}
	return &provider.Payload{Body: body, Checksum: v.Checksum, FileName: v.FileName}, nil
}

func matchAsset(assets []asset, target platform.Target) (*asset, string) {
	loaders := []string{target.Loader}
	if target.Loader == platform.LoaderQuilt {
		loaders = append(loaders, platform.LoaderFabric)
	}
	for _, loader := range loaders {
		for i := range assets {
			name := strings.ToLower(assets[i].Name)
			if !strings.HasSuffix(name, model.ArtifactExt) || strings.HasSuffix(name, "-sources.jar") {
				continue
			}
			if containsToken(name, loader) && containsToken(name, strings.ToLower(target.GameVersion)) {
				return &assets[i], loader
			}
		}
	}
	return nil, ""
}

// containsToken reports whether tok occurs in s delimited by non-alphanumerics,
// so that "1.21" does not match inside "1.21.1", "11.21" or "1.1.21". A dot
// between digits joins version components and is not a delimiter.
func containsToken(s, tok string) bool {
	if tok == "" {
		return false
	}
	for start := 0; ; {
		i := strings.Index(s[start:], tok)
		if i < 0 {
			return false
		}
		i += start
		end := i + len(tok)
		before := i == 0 || !isWordByte(s[i-1]) && !(s[i-1] == '.' && i >= 2 && isDigit(s[i-2]))
		after := end == len(s) || !isWordByte(s[end]) && !(s[end] == '.' && end+1 < len(s) && isDigit(s[end+1]))
		if before && after {
			return true
		}
		start = i + 1
	}
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isWordByte(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

func parseDigest(d string) model.Checksum {
	alg, value, ok := strings.Cut(d, ":")
	if !ok || value == "" {
		return model.Checksum{}
	}
	return model.Checksum{Algorithm: strings.ToLower(alg), Value: strings.ToLower(value)}
}
