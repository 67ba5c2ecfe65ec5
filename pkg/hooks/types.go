package hooks

import "context"

// HookType names the point in the update pipeline a script runs at.
type HookType string

// Supported hook types.
const (
	PreUpdate  HookType = "pre-update"
	PostUpdate HookType = "post-update"
)

// HookTypes returns every supported hook type.
func HookTypes() []HookType {
	return []HookType{PreUpdate, PostUpdate}
}

// HookContext is what a script sees of the artifact being replaced.
type HookContext struct {
	Operation  string // "install" or "update"
	Artifact   string // canonical file name
	Path       string
	Dir        string
	Provider   string
	ProjectID  string
	OldVersion string
	NewVersion string
}

// Runner runs hook scripts.
type Runner interface {
	// Run executes the script registered for hookType. A missing script is not an error.
	Run(ctx context.Context, hookType HookType, hc HookContext) error

	// Has reports whether a script is registered for hookType.
	Has(hookType HookType) bool
}
