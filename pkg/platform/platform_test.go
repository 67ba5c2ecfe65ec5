package platform

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeLoader(t *testing.T) {
	tests := map[string]string{
		"Fabric":    LoaderFabric,
		"NeoForged": LoaderNeoForge,
		" quilt ":   LoaderQuilt,
		"*":         LoaderAny,
		"forge":     LoaderForge,
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeLoader(in), in)
	}
}

func TestEvaluate(t *testing.T) {
	target := Target{GameVersion: "1.21", Loader: "fabric"}
	tests := []struct {
		name     string
		target   Target
		versions []string
		loaders  []string
		want     Match
	}{
		{"exact", target, []string{"1.20.6", "1.21"}, []string{"fabric"}, Exact},
		{"wrong game version", target, []string{"1.20"}, []string{"fabric"}, NoMatch},
		{"wrong loader", target, []string{"1.21"}, []string{"forge"}, NoMatch},
		{"wildcard game version", Target{GameVersion: "1.21.1", Loader: "fabric"}, []string{"1.21.x"}, []string{"fabric"}, Compatible},
		{"wildcard does not match sibling minor", Target{GameVersion: "1.210", Loader: "fabric"}, []string{"1.21.x"}, []string{"fabric"}, NoMatch},
		{"constraint range", target, []string{">=1.20, <1.22"}, []string{"fabric"}, Compatible},
		{"constraint range excludes", Target{GameVersion: "1.22", Loader: "fabric"}, []string{">=1.20, <1.22"}, []string{"fabric"}, NoMatch},
		{"quilt accepts fabric", Target{GameVersion: "1.21", Loader: "quilt"}, []string{"1.21"}, []string{"fabric"}, Compatible},
		{"fabric rejects quilt", target, []string{"1.21"}, []string{"quilt"}, NoMatch},
		{"any loader", target, []string{"1.21"}, []string{"any"}, Compatible},
		{"empty sets", target, nil, nil, NoMatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.target, tt.versions, tt.loaders))
		})
	}
}

func TestNewer(t *testing.T) {
	now := time.Now()
	assert.True(t, Newer(now, "1.0.0", now.Add(-time.Hour), "2.0.0"))
	assert.False(t, Newer(now.Add(-time.Hour), "9.0.0", now, "1.0.0"))
	assert.True(t, Newer(now, "2.0.0", now, "1.0.0"))
	assert.True(t, Newer(time.Time{}, "0.5.3", time.Time{}, "0.5.2"))
	assert.False(t, Newer(time.Time{}, "mc1.21-abc", time.Time{}, "mc1.21-abd"))
}

func TestValidateTarget(t *testing.T) {
	assert.NoError(t, ValidateTarget(Target{GameVersion: "1.21", Loader: "Fabric"}))
	assert.Error(t, ValidateTarget(Target{GameVersion: "", Loader: "fabric"}))
	assert.Error(t, ValidateTarget(Target{GameVersion: "1.21", Loader: "bukkit"}))
	assert.Error(t, ValidateTarget(Target{GameVersion: "1. 21", Loader: "fabric"}))
}
