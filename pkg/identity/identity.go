// Package identity works out which remote project a local artifact belongs to.
package identity

import (
	"context"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"github.com/glorpus-work/modsync/internal/logger"
	"github.com/glorpus-work/modsync/pkg/download"
	"github.com/glorpus-work/modsync/pkg/errors"
	"github.com/glorpus-work/modsync/pkg/model"
	"github.com/glorpus-work/modsync/pkg/platform"
	"github.com/glorpus-work/modsync/pkg/provider"
)

const (
	// DefaultThreshold is the similarity a candidate must exceed to be accepted.
	DefaultThreshold = 0.80
	// DefaultMargin is how close the runner-up may come before the result is ambiguous.
	DefaultMargin = 0.05
)

const (
	hashAlgorithm         = "sha512"
	maxReportedCandidates = 5
)

// Resolver maps artifacts to identities.
type Resolver interface {
	// Resolve returns the identity of a. When only is set, inference is
	// restricted to that provider.
	Resolve(ctx context.Context, a *model.Artifact, only model.ProviderTag) (model.Identity, error)

	// ResolveQuery searches for a free-text query and applies the same
	// confidence rules as file name inference.
	ResolveQuery(ctx context.Context, query string, only model.ProviderTag) (model.Identity, error)
}

// Candidate is a scored search hit.
type Candidate struct {
	Identity model.Identity
	Score    float64
}

// ManagerImpl resolves identities through a registry.
type ManagerImpl struct {
	providers *provider.Registry
	threshold float64
	margin    float64
}

// NewResolver creates a resolver with the default threshold and margin.
func NewResolver(providers *provider.Registry) *ManagerImpl {
	return &ManagerImpl{providers: providers, threshold: DefaultThreshold, margin: DefaultMargin}
}

// Resolve implements Resolver. An embedded record is trusted as-is and no
// provider is contacted. Untracked artifacts are looked up by content hash,
// then by a query derived from the file name.
func (m *ManagerImpl) Resolve(ctx context.Context, a *model.Artifact, only model.ProviderTag) (model.Identity, error) {
	if a.Record != nil {
		return a.Record.Identity(), nil
	}
	clients := m.providers.Select(only)

	if id, ok := m.lookupHash(ctx, a, clients); ok {
		return id, nil
	}
	if err := ctx.Err(); err != nil {
		return model.Identity{}, err
	}

	query := QueryFromFileName(a.Canonical)
	if query == "" {
		return model.Identity{}, errors.Wrapf(errors.ErrNotFound, "no search terms in %s", a.Canonical)
	}
	candidates, err := m.search(ctx, query, clients)
	if err != nil {
		return model.Identity{}, err
	}
	return m.pick(query, candidates)
}

// Candidates returns every scored search hit for query, best first.
func (m *ManagerImpl) Candidates(ctx context.Context, query string, only model.ProviderTag) ([]Candidate, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "empty query")
	}
	return m.search(ctx, query, m.providers.Select(only))
}

// ResolveQuery implements Resolver.
func (m *ManagerImpl) ResolveQuery(ctx context.Context, query string, only model.ProviderTag) (model.Identity, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return model.Identity{}, errors.Wrap(errors.ErrInvalidInput, "empty query")
	}
	candidates, err := m.search(ctx, query, m.providers.Select(only))
	if err != nil {
		return model.Identity{}, err
	}
	return m.pick(query, candidates)
}

func (m *ManagerImpl) lookupHash(ctx context.Context, a *model.Artifact, clients []provider.Client) (model.Identity, bool) {
	var digest string
	for _, c := range clients {
		hl, ok := c.(provider.HashLookup)
		if !ok {
			continue
		}
		if digest == "" {
			d, err := download.HashFile(a.Path, hashAlgorithm)
			if err != nil {
				logger.Warn("Could not hash artifact", logger.Fields{"path": a.Path, "error": err})
				return model.Identity{}, false
			}
			digest = d
		}
		v, err := hl.LookupHash(ctx, hashAlgorithm, digest)
		if err != nil || v == nil {
			logger.Debug("Hash lookup missed", logger.Fields{"provider": c.Tag(), "file": a.Canonical, "error": err})
			continue
		}
		logger.Debug("Identified by hash", logger.Fields{"provider": c.Tag(), "file": a.Canonical, "project": v.Identity.ID})
		return v.Identity, true
	}
	return model.Identity{}, false
}

// search collects scored candidates from every client. A provider that is
// down or rejects the query is skipped. If every provider is down the result
// is ErrUnavailable; if every provider failed for other reasons the last
// failure is returned.
func (m *ManagerImpl) search(ctx context.Context, query string, clients []provider.Client) ([]Candidate, error) {
	var (
		candidates []Candidate
		seen       = make(map[string]bool)
		down       int
		lastDown   error
		failed     int
		lastFailed error
	)
	for _, c := range clients {
		ids, err := c.Search(ctx, query)
		switch {
		case err == nil:
		case errors.Is(err, errors.ErrNotFound):
			continue
		case errors.IsProviderDown(err):
			logger.Warn("Provider unavailable during search", logger.Fields{"provider": c.Tag(), "error": err})
			down++
			lastDown = err
			continue
		default:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.Warn("Search failed, skipping provider", logger.Fields{"provider": c.Tag(), "error": err})
			failed++
			lastFailed = errors.Wrapf(err, "search %s", c.Tag())
			continue
		}
		for _, id := range ids {
			if seen[id.Key()] {
				continue
			}
			seen[id.Key()] = true
			candidates = append(candidates, Candidate{Identity: id, Score: Score(query, id)})
		}
	}
	if len(candidates) == 0 {
		if len(clients) > 0 && down+failed == len(clients) {
			if failed > 0 {
				return nil, lastFailed
			}
			return nil, errors.Wrapf(errors.ErrUnavailable, "no provider could search for %q: %v", query, lastDown)
		}
		return nil, errors.Wrapf(errors.ErrNotFound, "no project matches %q", query)
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	return candidates, nil
}

func (m *ManagerImpl) pick(query string, candidates []Candidate) (model.Identity, error) {
	best := candidates[0]
	confident := best.Score > m.threshold
	if confident && len(candidates) > 1 && best.Score-candidates[1].Score <= m.margin {
		confident = false
	}
	logger.Debug("Scored search candidates", logger.Fields{"query": query, "best": best.Identity.Key(), "score": best.Score, "candidates": len(candidates)})
	if confident {
		return best.Identity, nil
	}

	amb := &errors.AmbiguousError{Query: query}
	for i, c := range candidates {
		if i == maxReportedCandidates {
			break
		}
		amb.Candidates = append(amb.Candidates, c.Identity.String())
	}
	return model.Identity{}, amb
}

// Score is the similarity of query to the closer of the identity's slug and
// display name, in [0, 1]. The project id is only used when both are empty.
func Score(query string, id model.Identity) float64 {
	fields := []string{id.Slug, id.Name}
	if id.Slug == "" && id.Name == "" {
		fields = []string{id.ID}
	}
	q := normalize(query)
	best := 0.0
	for _, f := range fields {
		n := normalize(f)
		if n == "" {
			continue
		}
		if sim := levenshtein.Similarity(q, n, nil); sim > best {
			best = sim
		}
	}
	return best
}

func normalize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// QueryFromFileName turns an artifact file name into search terms by dropping
// the disabled suffix, the extension, version tokens and loader names.
func QueryFromFileName(name string) string {
	canonical, _ := model.SplitName(name)
	stem := strings.TrimSuffix(canonical, filepath.Ext(canonical))

	tokens := strings.FieldsFunc(stem, func(r rune) bool {
		return r == '-' || r == '_' || r == '+' || r == ' '
	})
	kept := tokens[:0]
	for _, tok := range tokens {
		if isNoise(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

func isNoise(tok string) bool {
	lower := strings.ToLower(tok)
	switch {
	case lower == "":
		return true
	case unicode.IsDigit(rune(lower[0])):
		return true
	case len(lower) > 2 && strings.HasPrefix(lower, "mc") && unicode.IsDigit(rune(lower[2])):
		return true
	case len(lower) > 1 && lower[0] == 'v' && unicode.IsDigit(rune(lower[1])):
		return true
	case platform.IsValidLoader(lower) && lower != platform.LoaderAny:
		return true
	}
	return false
}
