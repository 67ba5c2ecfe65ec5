// Package model provides the data structures shared by providers, resolvers
// and the update engine: remote identities, versions, local artifacts and
// their embedded provenance records.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/glorpus-work/modsync/pkg/platform"
)

// ProviderTag names one remote catalog.
type ProviderTag string

const (
	// ProviderModrinth is the primary mod registry.
	ProviderModrinth ProviderTag = "modrinth"
	// ProviderCurseForge is the second registry; its client is currently the unavailable variant.
	ProviderCurseForge ProviderTag = "curseforge"
	// ProviderGitHub resolves mods published as source-control releases.
	ProviderGitHub ProviderTag = "github"
)

// ProviderTags returns every known provider tag in default search order.
func ProviderTags() []ProviderTag {
	return []ProviderTag{ProviderModrinth, ProviderCurseForge, ProviderGitHub}
}

// ParseProviderTag parses a provider name.
func ParseProviderTag(s string) (ProviderTag, error) {
	tag := ProviderTag(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ProviderTags() {
		if tag == known {
			return tag, nil
		}
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// Identity is the canonical remote name of a mod project.
type Identity struct {
	Provider ProviderTag `json:"provider"`
	ID       string      `json:"id"`
	Slug     string      `json:"slug,omitempty"`
	Name     string      `json:"name,omitempty"`
}

// Key returns the "provider:id" string used for visited sets and deduplication.
func (i Identity) Key() string {
	return string(i.Provider) + ":" + i.ID
}

func (i Identity) String() string {
	if i.Slug != "" && i.Slug != i.ID {
		return fmt.Sprintf("%s (%s)", i.Key(), i.Slug)
	}
	return i.Key()
}

// IsZero reports whether the identity is unset.
func (i Identity) IsZero() bool { return i.Provider == "" && i.ID == "" }

// Checksum is a content digest published by a provider.
type Checksum struct {
	Algorithm string `json:"algorithm"` // sha1, sha256 or sha512
	Value     string `json:"value"`     // lowercase hex
}

// IsZero reports whether no checksum is known.
func (c Checksum) IsZero() bool { return c.Value == "" }

func (c Checksum) String() string {
	if c.IsZero() {
		return "none"
	}
	return c.Algorithm + ":" + c.Value
}

// DependencyKind classifies a dependency edge.
type DependencyKind string

const (
	DependencyRequired     DependencyKind = "required"
	DependencyOptional     DependencyKind = "optional"
	DependencyIncompatible DependencyKind = "incompatible"
)

// DependencyEdge points from a version to another project.
type DependencyEdge struct {
	Target Identity       `json:"target"`
	Kind   DependencyKind `json:"kind"`
}

// Version is one published build of a project.
type Version struct {
	ID               string           `json:"id"`
	Identity         Identity         `json:"identity"`
	Number           string           `json:"number"`
	PlatformVersions []string         `json:"platform_versions"`
	Loaders          []string         `json:"loaders"`
	DownloadRef      string           `json:"download_ref"`
	FileName         string           `json:"file_name"`
	Checksum         Checksum         `json:"checksum"`
	PublishedAt      time.Time        `json:"published_at"`
	Dependencies     []DependencyEdge `json:"dependencies,omitempty"`
}

// Match reports how this version fits the given target.
func (v *Version) Match(t platform.Target) platform.Match {
	return platform.Evaluate(t, v.PlatformVersions, v.Loaders)
}

// Newer reports whether v was published after other.
func (v *Version) Newer(other *Version) bool {
	return platform.Newer(v.PublishedAt, v.Number, other.PublishedAt, other.Number)
}

// Constraints select versions during resolution.
type Constraints struct {
	Target platform.Target
	// Provider restricts identity inference to one catalog when set.
	Provider ProviderTag
}

// Validate checks constraints before any resolution work starts.
func (c Constraints) Validate() error {
	if err := platform.ValidateTarget(c.Target); err != nil {
		return err
	}
	if c.Provider != "" {
		if _, err := ParseProviderTag(string(c.Provider)); err != nil {
			return err
		}
	}
	return nil
}
