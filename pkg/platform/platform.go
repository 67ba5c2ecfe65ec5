package platform

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
)

// Target is the game version and loader a directory is being synchronized to.
type Target struct {
	GameVersion string `yaml:"game_version" json:"game_version"`
	Loader      string `yaml:"loader" json:"loader"`
}

// String returns a string representation of the target
func (t Target) String() string {
	return fmt.Sprintf("%s/%s", t.GameVersion, t.Loader)
}

// Normalize returns the target with a canonical loader name.
func (t Target) Normalize() Target {
	return Target{GameVersion: strings.TrimSpace(t.GameVersion), Loader: NormalizeLoader(t.Loader)}
}

// NormalizeLoader maps loader spellings found in catalogs and file names to one form.
func NormalizeLoader(loader string) string {
	l := strings.ToLower(strings.TrimSpace(loader))
	switch l {
	case "neo-forge", "neo_forge", "neoforged":
		return LoaderNeoForge
	case "fabricmc", "fabric-loader":
		return LoaderFabric
	case "quiltmc", "quilt-loader":
		return LoaderQuilt
	case "minecraftforge", "mcforge":
		return LoaderForge
	case "*", "":
		return LoaderAny
	default:
		return l
	}
}

// Match describes how well a build fits a target.
type Match int

const (
	// NoMatch means the build cannot run on the target.
	NoMatch Match = iota
	// Compatible means the build runs on the target through a wildcard range
	// or a loader that accepts foreign builds.
	Compatible
	// Exact means the build names the target game version and loader literally.
	Exact
)

// Evaluate reports how a build declaring gameVersions and loaders fits t.
func Evaluate(t Target, gameVersions, loaders []string) Match {
	t = t.Normalize()
	gv := matchGameVersion(t.GameVersion, gameVersions)
	ld := matchLoader(t.Loader, loaders)
	switch {
	case gv == NoMatch || ld == NoMatch:
		return NoMatch
	case gv == Exact && ld == Exact:
		return Exact
	default:
		return Compatible
	}
}

func matchLoader(target string, loaders []string) Match {
	best := NoMatch
	for _, l := range loaders {
		l = NormalizeLoader(l)
		switch {
		case l == target:
			return Exact
		case l == LoaderAny:
			best = Compatible
		case target == LoaderQuilt && l == LoaderFabric:
			// Quilt loads Fabric builds.
			best = Compatible
		}
	}
	return best
}

func matchGameVersion(target string, supported []string) Match {
	best := NoMatch
	for _, s := range supported {
		s = strings.TrimSpace(s)
		if s == target {
			return Exact
		}
		if matchVersionPattern(target, s) {
			best = Compatible
		}
	}
	return best
}

// matchVersionPattern handles "1.21.x" wildcards and go-version constraint
// strings such as ">=1.20, <1.22".
func matchVersionPattern(target, pattern string) bool {
	if prefix, ok := strings.CutSuffix(pattern, ".x"); ok {
		return target == prefix || strings.HasPrefix(target, prefix+".")
	}
	if !strings.ContainsAny(pattern, "<>=~!") {
		return false
	}
	tv, err := version.NewVersion(target)
	if err != nil {
		return false
	}
	c, err := version.NewConstraint(pattern)
	if err != nil {
		return false
	}
	return c.Check(tv)
}

// Newer reports whether build a is more recent than build b. Publication time
// decides first; version numbers break ties when both parse.
func Newer(aPublished time.Time, aNumber string, bPublished time.Time, bNumber string) bool {
	if !aPublished.Equal(bPublished) && !aPublished.IsZero() && !bPublished.IsZero() {
		return aPublished.After(bPublished)
	}
	av, aErr := version.NewVersion(aNumber)
	bv, bErr := version.NewVersion(bNumber)
	if aErr == nil && bErr == nil {
		return av.GreaterThan(bv)
	}
	return false
}
