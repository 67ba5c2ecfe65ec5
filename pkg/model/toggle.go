package model

import (
	"path/filepath"
	"strings"
)

// DisabledSuffix is appended to the canonical file name of a disabled artifact.
const DisabledSuffix = ".disabled"

// ArtifactExt is the extension of installable artifacts.
const ArtifactExt = ".jar"

// ToggleState is derived from a file name and never stored.
type ToggleState string

const (
	Enabled  ToggleState = "enabled"
	Disabled ToggleState = "disabled"
)

// ParseToggleState parses "enabled"/"disabled" and the on/off aliases.
func ParseToggleState(s string) (ToggleState, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enabled", "enable", "on", "true":
		return Enabled, true
	case "disabled", "disable", "off", "false":
		return Disabled, true
	default:
		return "", false
	}
}

// SplitName returns the canonical name and toggle state encoded by a file name.
func SplitName(fileName string) (canonical string, state ToggleState) {
	base := filepath.Base(fileName)
	if c, ok := strings.CutSuffix(base, DisabledSuffix); ok {
		return c, Disabled
	}
	return base, Enabled
}

// FileNameFor returns the file name that encodes state for canonical.
func FileNameFor(canonical string, state ToggleState) string {
	if state == Disabled {
		return canonical + DisabledSuffix
	}
	return canonical
}

// IsArtifactName reports whether a directory entry is an artifact in either state.
func IsArtifactName(fileName string) bool {
	canonical, _ := SplitName(fileName)
	return strings.EqualFold(filepath.Ext(canonical), ArtifactExt) && len(canonical) > len(ArtifactExt)
}

// Artifact is one local mod file.
type Artifact struct {
	Path      string      `json:"path"`
	Canonical string      `json:"canonical"`
	State     ToggleState `json:"state"`
	Record    *Record     `json:"record,omitempty"`
	// MetadataErr holds why an embedded record was discarded.
	MetadataErr error `json:"-"`
}

// NewArtifact derives name and state from path.
func NewArtifact(path string) *Artifact {
	canonical, state := SplitName(path)
	return &Artifact{Path: path, Canonical: canonical, State: state}
}

// Dir returns the directory holding the artifact.
func (a *Artifact) Dir() string { return filepath.Dir(a.Path) }

// Tracked reports whether the artifact carries a valid provenance record.
func (a *Artifact) Tracked() bool { return a.Record != nil }
