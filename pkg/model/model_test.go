package model

import (
	"testing"
	"time"

	"github.com/glorpus-work/modsync/pkg/platform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitNameAndFileNameForAreInverse(t *testing.T) {
	tests := []struct {
		file      string
		canonical string
		state     ToggleState
	}{
		{"sodium.jar", "sodium.jar", Enabled},
		{"sodium.jar.disabled", "sodium.jar", Disabled},
		{"/mods/lithium-0.11.jar.disabled", "lithium-0.11.jar", Disabled},
	}
	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			canonical, state := SplitName(tt.file)
			assert.Equal(t, tt.canonical, canonical)
			assert.Equal(t, tt.state, state)
			assert.Equal(t, FileNameFor(canonical, state), FileNameFor(tt.canonical, tt.state))
		})
	}
}

func TestIsArtifactName(t *testing.T) {
	assert.True(t, IsArtifactName("sodium.jar"))
	assert.True(t, IsArtifactName("Sodium.JAR.disabled"))
	assert.False(t, IsArtifactName("sodium.jar.bak"))
	assert.False(t, IsArtifactName("readme.txt"))
	assert.False(t, IsArtifactName(".jar"))
}

func TestParseToggleState(t *testing.T) {
	s, ok := ParseToggleState("off")
	require.True(t, ok)
	assert.Equal(t, Disabled, s)
	s, ok = ParseToggleState("Enabled")
	require.True(t, ok)
	assert.Equal(t, Enabled, s)
	_, ok = ParseToggleState("maybe")
	assert.False(t, ok)
}

func TestRecordValidateAndIdentity(t *testing.T) {
	r := &Record{Provider: ProviderModrinth, ProjectID: "AANobbMI", Slug: "sodium", VersionID: "v1"}
	require.NoError(t, r.Validate())
	assert.Equal(t, "modrinth:AANobbMI", r.Identity().Key())

	assert.Error(t, (&Record{Provider: "nexus", ProjectID: "x", VersionID: "y"}).Validate())
	assert.Error(t, (&Record{Provider: ProviderModrinth, VersionID: "y"}).Validate())
	assert.Error(t, (&Record{Provider: ProviderModrinth, ProjectID: "x"}).Validate())
	var nilRecord *Record
	assert.Error(t, nilRecord.Validate())
}

func TestNewRecord(t *testing.T) {
	v := &Version{ID: "v3", Number: "0.6.0", Identity: Identity{Provider: ProviderModrinth, ID: "sodium", Slug: "sodium"}}
	c := Constraints{Target: platform.Target{GameVersion: "1.21", Loader: "fabric"}}
	now := time.Date(2026, 1, 2, 3, 4, 5, 600, time.FixedZone("x", 3600))

	r := NewRecord(v, c, now)
	assert.Equal(t, "v3", r.VersionID)
	assert.Equal(t, "1.21", r.PlatformVersion)
	assert.Equal(t, "fabric", r.Loader)
	assert.Equal(t, time.UTC, r.InstalledAt.Location())
	assert.Equal(t, 0, r.InstalledAt.Nanosecond())
}

func TestConstraintsValidate(t *testing.T) {
	ok := Constraints{Target: platform.Target{GameVersion: "1.21", Loader: "fabric"}}
	assert.NoError(t, ok.Validate())
	ok.Provider = ProviderGitHub
	assert.NoError(t, ok.Validate())
	ok.Provider = "nexus"
	assert.Error(t, ok.Validate())
}

func TestResolutionOrdered(t *testing.T) {
	root := &Version{ID: "root"}
	dep := &Version{ID: "dep"}
	r := &Resolution{Root: root, Dependencies: []*Version{dep}}
	assert.Equal(t, []*Version{dep, root}, r.Ordered())
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		total, failed int
		want          BatchStatus
	}{
		{0, 0, StatusSucceeded},
		{3, 0, StatusSucceeded},
		{3, 1, StatusPartial},
		{3, 3, StatusFailed},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.total, tt.failed))
	}
}
