package platform

import (
	"fmt"
	"slices"
	"strings"
)

// IsValidLoader reports whether loader is a known target loader.
func IsValidLoader(loader string) bool {
	return slices.Contains(ValidLoaders(), NormalizeLoader(loader))
}

// ValidateTarget checks that a target can be used for version selection.
func ValidateTarget(t Target) error {
	if strings.TrimSpace(t.GameVersion) == "" {
		return fmt.Errorf("game version cannot be empty")
	}
	if strings.ContainsAny(t.GameVersion, " \t\n") {
		return fmt.Errorf("game version %q contains whitespace", t.GameVersion)
	}
	if !IsValidLoader(t.Loader) {
		return fmt.Errorf("unknown loader %q (valid: %s)", t.Loader, strings.Join(ValidLoaders(), ", "))
	}
	return nil
}
