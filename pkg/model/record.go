package model

import (
	"fmt"
	"time"
)

// Record is the provenance data embedded in an installed artifact.
type Record struct {
	Provider        ProviderTag `json:"provider"`
	ProjectID       string      `json:"project_id"`
	Slug            string      `json:"slug,omitempty"`
	VersionID       string      `json:"version_id"`
	VersionNumber   string      `json:"version_number,omitempty"`
	PlatformVersion string      `json:"platform_version"`
	Loader          string      `json:"loader"`
	InstalledAt     time.Time   `json:"installed_at"`
}

// Validate checks the fields that make a record usable as an identity.
func (r *Record) Validate() error {
	if r == nil {
		return fmt.Errorf("record is nil")
	}
	if _, err := ParseProviderTag(string(r.Provider)); err != nil {
		return err
	}
	if r.ProjectID == "" {
		return fmt.Errorf("record has no project id")
	}
	if r.VersionID == "" {
		return fmt.Errorf("record has no version id")
	}
	return nil
}

// Identity returns the identity the record binds the artifact to.
func (r *Record) Identity() Identity {
	return Identity{Provider: r.Provider, ID: r.ProjectID, Slug: r.Slug}
}

// NewRecord builds the record written after installing v for target.
func NewRecord(v *Version, c Constraints, now time.Time) *Record {
	return &Record{
		Provider:        v.Identity.Provider,
		ProjectID:       v.Identity.ID,
		Slug:            v.Identity.Slug,
		VersionID:       v.ID,
		VersionNumber:   v.Number,
		PlatformVersion: c.Target.GameVersion,
		Loader:          c.Target.Loader,
		InstalledAt:     now.UTC().Truncate(time.Second),
	}
}
