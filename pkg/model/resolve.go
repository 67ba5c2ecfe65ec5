package model

// Resolution is the outcome of version selection for one root identity.
type Resolution struct {
	Root *Version
	// Dependencies lists the required closure, dependencies first.
	Dependencies []*Version
	// Optional lists optional edges found while walking the closure. They are never installed.
	Optional []Identity
}

// Ordered returns the install order: every dependency, then the root.
func (r *Resolution) Ordered() []*Version {
	out := make([]*Version, 0, len(r.Dependencies)+1)
	out = append(out, r.Dependencies...)
	if r.Root != nil {
		out = append(out, r.Root)
	}
	return out
}

// ResolvedAction represents the action the engine takes for one version.
type ResolvedAction string

const (
	// ResolvedActionInstall writes a new file.
	ResolvedActionInstall ResolvedAction = "install"
	// ResolvedActionUpdate replaces an existing file.
	ResolvedActionUpdate ResolvedAction = "update"
	// ResolvedActionSkip means the artifact is already at the selected version.
	ResolvedActionSkip ResolvedAction = "skip"
)
